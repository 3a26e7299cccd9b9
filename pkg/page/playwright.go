package page

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultActionTimeout bounds a single playwright call when no timeout is given.
const DefaultActionTimeout = 10 * time.Second

const attributesScript = `el => Object.fromEntries(Array.from(el.attributes).map(a => [a.name, a.value]))`

const optionsScript = `el => el.tagName === 'SELECT'
	? Array.from(el.options).map(o => ({value: o.value, label: o.label || o.text, disabled: o.disabled}))
	: []`

// Playwright adapts a playwright page to the Page contract.
type Playwright struct {
	page    playwright.Page
	timeout time.Duration
}

// NewPlaywright wraps pw. timeout applies to navigation and interactions, zero uses
// DefaultActionTimeout.
func NewPlaywright(pw playwright.Page, timeout time.Duration) *Playwright {
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	return &Playwright{page: pw, timeout: timeout}
}

// Goto navigates to url and waits for DOMContentLoaded.
func (p *Playwright) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms(p.timeout)),
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

// Query returns handles for all elements matching selector, in document order.
func (p *Playwright) Query(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		if navigating(err) {
			return nil, nil // the next poll sees the new document
		}
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	res := make([]Element, 0, len(handles))
	for _, h := range handles {
		res = append(res, &pwElement{handle: h, page: p.page, timeout: p.timeout})
	}
	return res, nil
}

// URL returns the current page URL.
func (p *Playwright) URL() string {
	return p.page.URL()
}

// Screenshot captures the full page as PNG.
func (p *Playwright) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

// pwElement adapts a playwright element handle.
type pwElement struct {
	handle  playwright.ElementHandle
	page    playwright.Page
	timeout time.Duration
}

func (e *pwElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.handle.TextContent()
	if err != nil {
		return "", classify(err)
	}
	return text, nil
}

func (e *pwElement) VisibleText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.handle.InnerText()
	if err != nil {
		return "", classify(err)
	}
	return text, nil
}

func (e *pwElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.handle.IsVisible()
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func (e *pwElement) Attributes(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := e.handle.Evaluate(attributesScript)
	if err != nil {
		return nil, classify(err)
	}
	res := map[string]string{}
	if m, ok := raw.(map[string]any); ok {
		for k, v := range m {
			res[k] = fmt.Sprint(v)
		}
	}
	return res, nil
}

func (e *pwElement) Options(ctx context.Context) ([]Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := e.handle.Evaluate(optionsScript)
	if err != nil {
		return nil, classify(err)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	res := make([]Option, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		opt := Option{Value: fmt.Sprint(m["value"]), Label: fmt.Sprint(m["label"])}
		if d, ok := m["disabled"].(bool); ok {
			opt.Disabled = d
		}
		res = append(res, opt)
	}
	return res, nil
}

func (e *pwElement) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.handle.ScrollIntoViewIfNeeded(playwright.ElementHandleScrollIntoViewIfNeededOptions{
		Timeout: playwright.Float(ms(e.timeout)),
	})
	return classify(err)
}

func (e *pwElement) Click(ctx context.Context, opts ActionOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.handle.Click(playwright.ElementHandleClickOptions{
		Force:   playwright.Bool(opts.Force),
		Timeout: playwright.Float(ms(e.timeoutFor(opts))),
	})
	if err != nil {
		return classify(err)
	}
	// a click on a link commits the navigation before returning, the next step must
	// not see a half-parsed document
	err = e.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(ms(e.timeout)),
	})
	if err != nil {
		return fmt.Errorf("wait for page after click: %w", err)
	}
	return nil
}

func (e *pwElement) Fill(ctx context.Context, value string, opts ActionOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.handle.Fill(value, playwright.ElementHandleFillOptions{
		Force:   playwright.Bool(opts.Force),
		Timeout: playwright.Float(ms(e.timeoutFor(opts))),
	})
	return classify(err)
}

func (e *pwElement) SelectValue(ctx context.Context, value string, opts ActionOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := e.handle.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}},
		playwright.ElementHandleSelectOptionOptions{
			Force:   playwright.Bool(opts.Force),
			Timeout: playwright.Float(ms(e.timeoutFor(opts))),
		})
	return classify(err)
}

func (e *pwElement) timeoutFor(opts ActionOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return e.timeout
}

// navigating reports errors of queries racing a navigation.
func navigating(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution context was destroyed") || strings.Contains(msg, "navigation")
}

// classify maps playwright errors about detached handles to ErrDetached.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not attached to the dom") || strings.Contains(msg, "is disposed") ||
		strings.Contains(msg, "detached") {
		return fmt.Errorf("%w: %v", ErrDetached, err)
	}
	return err
}

func ms(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}
