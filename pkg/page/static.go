package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ObscuredAttr marks an element in a static snapshot as covered by another element:
// interactions fail with ErrNotActionable unless forced.
const ObscuredAttr = "data-obscured"

// Action is an interaction recorded by Static.
type Action struct {
	Kind   string // click, fill, select, scroll
	Target string // short element description, e.g. input#email
	Value  string
	Force  bool
}

// ErrNoPage is returned by Static.Goto for a url with no registered page.
var ErrNoPage = errors.New("no page registered")

// Static is an in-memory page backed by an HTML snapshot. Interactions mutate the
// snapshot and are recorded, which makes it usable for deterministic resolution runs
// against saved pages and for tests.
type Static struct {
	mu      sync.Mutex
	doc     *goquery.Document
	url     string
	actions []Action
	pages   map[string]string // url -> html served by Goto
}

// NewStatic parses htmlBody into a page reporting url as its location.
func NewStatic(url, htmlBody string) (*Static, error) {
	s := &Static{url: url, pages: map[string]string{}}
	if err := s.SetHTML(htmlBody); err != nil {
		return nil, err
	}
	return s, nil
}

// SetHTML replaces the whole document. Elements obtained before the call become detached.
func (s *Static) SetHTML(htmlBody string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// AddPage registers htmlBody to be loaded when Goto is called with url.
func (s *Static) AddPage(url, htmlBody string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = htmlBody
}

// Remove detaches every element matching selector.
func (s *Static) Remove(selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Find(selector).Remove()
}

// Append parses fragment and appends it to every element matching selector.
func (s *Static) Append(selector, fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Find(selector).AppendHtml(fragment)
}

// Actions returns a copy of the recorded interactions.
func (s *Static) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]Action, len(s.actions))
	copy(res, s.actions)
	return res
}

// HTML returns the current document markup.
func (s *Static) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.doc.Html()
	if err != nil {
		return ""
	}
	return res
}

// Goto switches to a page registered with AddPage. Going to the current url keeps the
// document as is; any other url is an error and changes nothing.
func (s *Static) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	body, ok := s.pages[url]
	current := s.url == url
	s.mu.Unlock()
	switch {
	case ok:
		if err := s.SetHTML(body); err != nil {
			return err
		}
	case !current:
		return fmt.Errorf("goto %s: %w", url, ErrNoPage)
	}
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
	return nil
}

// Query returns elements matching selector in document order.
func (s *Static) Query(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Element
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		res = append(res, &staticElement{page: s, sel: sel})
	})
	return res, nil
}

// URL returns the current location.
func (s *Static) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

type staticElement struct {
	page *Static
	sel  *goquery.Selection
}

func (e *staticElement) Text(ctx context.Context) (string, error) {
	if err := e.check(ctx); err != nil {
		return "", err
	}
	defer e.page.mu.Unlock()
	return e.sel.Text(), nil
}

// VisibleText approximates innerText: script, style, template and hidden subtrees are
// skipped, block elements are separated by spaces.
func (e *staticElement) VisibleText(ctx context.Context) (string, error) {
	if err := e.check(ctx); err != nil {
		return "", err
	}
	defer e.page.mu.Unlock()
	n := e.sel.Nodes[0]
	if hiddenWithin(n) {
		return "", nil
	}
	var b strings.Builder
	renderText(n, &b)
	return strings.TrimSpace(b.String()), nil
}

// Visible reports whether the element would render a box: not hidden itself or by an
// ancestor, and either showing text or being an embed/control that has a box without it.
func (e *staticElement) Visible(ctx context.Context) (bool, error) {
	if err := e.check(ctx); err != nil {
		return false, err
	}
	defer e.page.mu.Unlock()
	n := e.sel.Nodes[0]
	if hiddenWithin(n) {
		return false, nil
	}
	if boxedTags[n.Data] {
		return true, nil
	}
	var b strings.Builder
	renderText(n, &b)
	return strings.TrimSpace(b.String()) != "", nil
}

func (e *staticElement) Attributes(ctx context.Context) (map[string]string, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	defer e.page.mu.Unlock()
	res := map[string]string{}
	for _, a := range e.sel.Nodes[0].Attr {
		res[a.Key] = a.Val
	}
	return res, nil
}

func (e *staticElement) Options(ctx context.Context) ([]Option, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	defer e.page.mu.Unlock()
	if goquery.NodeName(e.sel) != "select" {
		return nil, nil
	}
	var res []Option
	e.sel.Find("option").Each(func(_ int, o *goquery.Selection) {
		label := strings.TrimSpace(o.Text())
		if l, ok := o.Attr("label"); ok {
			label = l
		}
		value, ok := o.Attr("value")
		if !ok {
			value = label
		}
		_, disabled := o.Attr("disabled")
		res = append(res, Option{Value: value, Label: label, Disabled: disabled})
	})
	return res, nil
}

func (e *staticElement) ScrollIntoView(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	e.record("scroll", "", false)
	return nil
}

func (e *staticElement) Click(ctx context.Context, opts ActionOptions) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	if err := e.actionable(opts); err != nil {
		return err
	}
	e.record("click", "", opts.Force)
	return nil
}

func (e *staticElement) Fill(ctx context.Context, value string, opts ActionOptions) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	if err := e.actionable(opts); err != nil {
		return err
	}
	if goquery.NodeName(e.sel) == "textarea" {
		e.sel.SetText(value)
	} else {
		e.sel.SetAttr("value", value)
	}
	e.record("fill", value, opts.Force)
	return nil
}

func (e *staticElement) SelectValue(ctx context.Context, value string, opts ActionOptions) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	if err := e.actionable(opts); err != nil {
		return err
	}
	var found bool
	e.sel.Find("option").Each(func(_ int, o *goquery.Selection) {
		v, ok := o.Attr("value")
		if !ok {
			v = strings.TrimSpace(o.Text())
		}
		if v == value && !found {
			o.SetAttr("selected", "selected")
			found = true
			return
		}
		o.RemoveAttr("selected")
	})
	if !found {
		return fmt.Errorf("no option with value %q in %s", value, describe(e.sel.Nodes[0]))
	}
	e.record("select", value, opts.Force)
	return nil
}

// check validates ctx and attachment, leaving the page lock held on success.
func (e *staticElement) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	if !attached(e.sel.Nodes[0], e.page.doc) {
		e.page.mu.Unlock()
		return ErrDetached
	}
	return nil
}

func (e *staticElement) actionable(opts ActionOptions) error {
	if _, obscured := e.sel.Attr(ObscuredAttr); obscured && !opts.Force {
		return fmt.Errorf("%s: %w", describe(e.sel.Nodes[0]), ErrNotActionable)
	}
	return nil
}

func (e *staticElement) record(kind, value string, force bool) {
	e.page.actions = append(e.page.actions, Action{Kind: kind, Target: describe(e.sel.Nodes[0]), Value: value, Force: force})
}

// nonRenderedTags never produce visible output.
var nonRenderedTags = map[string]bool{"head": true, "script": true, "style": true, "template": true, "noscript": true}

// boxedTags render a box without text; their content, if any, is not page text.
var boxedTags = map[string]bool{"iframe": true, "img": true, "embed": true, "object": true, "video": true,
	"canvas": true, "input": true, "select": true, "textarea": true}

var blockTags = map[string]bool{"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "footer": true, "form": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true}

// hiddenNode reports whether n itself hides its subtree.
func hiddenNode(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if nonRenderedTags[n.Data] {
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			st := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(st, "display:none") || strings.Contains(st, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

// hiddenWithin reports whether n or any of its ancestors is hidden.
func hiddenWithin(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if hiddenNode(cur) {
			return true
		}
	}
	return false
}

func renderText(n *html.Node, b *strings.Builder) {
	switch {
	case n.Type == html.TextNode:
		b.WriteString(n.Data)
		return
	case hiddenNode(n), n.Type == html.ElementNode && boxedTags[n.Data]:
		return
	}
	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(c, b)
	}
	if block {
		b.WriteByte(' ')
	}
}

// attached reports whether n is still reachable from the document root.
func attached(n *html.Node, doc *goquery.Document) bool {
	if len(doc.Nodes) == 0 {
		return false
	}
	root := doc.Nodes[0]
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

// describe renders a node as tag#id, tag[name=...] or the bare tag.
func describe(n *html.Node) string {
	var id, name string
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			id = a.Val
		case "name":
			name = a.Val
		}
	}
	switch {
	case id != "":
		return n.Data + "#" + id
	case name != "":
		return fmt.Sprintf("%s[name=%s]", n.Data, name)
	default:
		return n.Data
	}
}
