// Package page defines the browser page contract used by element resolution, form filling
// and outcome classification, with playwright and static-snapshot implementations.
package page

import (
	"context"
	"errors"
	"time"
)

// ErrDetached indicates the element was removed or replaced after it was resolved.
var ErrDetached = errors.New("element is detached from the document")

// ErrNotActionable indicates the element exists but can't receive the interaction
// without forcing it, e.g. it is covered by another element.
var ErrNotActionable = errors.New("element is not actionable")

// Page is a single browser page owned by one scenario run.
type Page interface {
	Goto(ctx context.Context, url string) error
	Query(ctx context.Context, selector string) ([]Element, error) // elements in document order
	URL() string
}

// Element is a handle to a DOM node returned by Page.Query.
type Element interface {
	Text(ctx context.Context) (string, error)        // raw text content, script and hidden nodes included
	VisibleText(ctx context.Context) (string, error) // rendered text only, empty for hidden elements
	Visible(ctx context.Context) (bool, error)
	Attributes(ctx context.Context) (map[string]string, error)
	Options(ctx context.Context) ([]Option, error) // options of a select element, empty for others
	ScrollIntoView(ctx context.Context) error
	Click(ctx context.Context, opts ActionOptions) error
	Fill(ctx context.Context, value string, opts ActionOptions) error
	SelectValue(ctx context.Context, value string, opts ActionOptions) error
}

// Screenshotter is implemented by pages able to capture their rendered state.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// ActionOptions control a single interaction.
type ActionOptions struct {
	Force   bool          // skip visibility and actionability checks
	Timeout time.Duration // zero uses the implementation default
}

// Option is one entry of a select element.
type Option struct {
	Value    string
	Label    string
	Disabled bool
}
