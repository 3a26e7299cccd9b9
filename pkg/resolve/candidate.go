// Package resolve finds a UI element under uncertain markup: it enumerates candidates in a
// scope and picks one through an ordered cascade of match criteria, where the first
// criterion with any match wins.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/regcheck/pkg/page"
)

// default enumeration timings.
const (
	DefaultEnumerateTimeout = 15 * time.Second
	DefaultPollInterval     = 250 * time.Millisecond
)

// descriptiveAttrs are attributes folded into the searchable text of a candidate.
var descriptiveAttrs = []string{"alt", "title", "aria-label"}

// Candidate is an element considered during one resolution call.
type Candidate struct {
	Index   int               // position in enumeration order, 0-based
	Text    string            // whitespace-collapsed text content
	Attrs   map[string]string // element attributes
	Element page.Element
}

// Haystack returns lower-cased text plus descriptive attributes, used by field criteria.
func (c Candidate) Haystack() string {
	parts := []string{c.Text}
	for _, a := range descriptiveAttrs {
		if v := c.Attrs[a]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.ToLower(NormalizeText(strings.Join(parts, " ")))
}

// NormalizeText collapses runs of whitespace into single spaces and trims the ends.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// EnumerateOptions bound the enumeration window.
type EnumerateOptions struct {
	Timeout      time.Duration // zero uses DefaultEnumerateTimeout
	PollInterval time.Duration // zero uses DefaultPollInterval
}

func (o EnumerateOptions) withDefaults() EnumerateOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultEnumerateTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Enumerate polls scope until at least one element exists and returns the elements as
// candidates in document order. Elements detached while being read are skipped.
// returns ElementNotFoundError if the scope stays empty for the whole window.
func Enumerate(ctx context.Context, p page.Page, scope string, opts EnumerateOptions) ([]Candidate, error) {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)

	for {
		els, err := p.Query(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("enumerate %q: %w", scope, err)
		}
		cands, err := readCandidates(ctx, els)
		if err != nil {
			return nil, fmt.Errorf("enumerate %q: %w", scope, err)
		}
		if len(cands) > 0 {
			return cands, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &ElementNotFoundError{Scope: scope, Waited: opts.Timeout}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(min(opts.PollInterval, remaining)):
		}
	}
}

func readCandidates(ctx context.Context, els []page.Element) ([]Candidate, error) {
	res := make([]Candidate, 0, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		if errors.Is(err, page.ErrDetached) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read text: %w", err)
		}
		attrs, err := el.Attributes(ctx)
		if errors.Is(err, page.ErrDetached) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read attributes: %w", err)
		}
		res = append(res, Candidate{Index: len(res), Text: NormalizeText(text), Attrs: attrs, Element: el})
	}
	return res, nil
}
