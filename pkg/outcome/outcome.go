// Package outcome classifies the page state after a registration submission by waiting
// for the first of several prioritized signals to appear.
package outcome

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/regcheck/pkg/page"
	"github.com/umputun/regcheck/pkg/resolve"
	"github.com/umputun/regcheck/pkg/status"
)

// defaults for Classifier.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// maxEvidence caps the evidence snippet length.
const maxEvidence = 200

// Signal is one observable sign of a submission outcome. A signal is present when
// Selector matches an element whose rendered text contains Text; empty Text means any
// visible matching element, empty Selector searches the rendered body text.
type Signal struct {
	Kind     status.Outcome
	Selector string
	Text     string        // case-insensitive, whitespace-collapsed substring
	Hold     time.Duration // lower-priority signals are not accepted before Hold has passed
}

func (s Signal) String() string {
	switch {
	case s.Selector != "" && s.Text != "":
		return fmt.Sprintf("%s[%s ~ %q]", s.Kind, s.Selector, s.Text)
	case s.Selector != "":
		return fmt.Sprintf("%s[%s]", s.Kind, s.Selector)
	default:
		return fmt.Sprintf("%s[%q]", s.Kind, s.Text)
	}
}

// DefaultSignals is the standard priority list for the registration flow: explicit
// confirmation, payment embed, generic thanks, explicit error. The payment embed gets a
// hold window because paid workshops show a generic thank-you before the gateway loads.
func DefaultSignals() []Signal {
	return []Signal{
		{Kind: status.OutcomeSuccess, Text: "registration successful"},
		{Kind: status.OutcomeSuccess, Text: "successfully registered"},
		{Kind: status.OutcomePaymentPending, Selector: `iframe[src*="razorpay"], iframe[src*="payment"], iframe[name*="payment"]`, Hold: 5 * time.Second},
		{Kind: status.OutcomeGenericSuccess, Text: "thank you"},
		{Kind: status.OutcomeGenericSuccess, Text: "success"},
		{Kind: status.OutcomeFailure, Selector: `.error, .alert-danger, [role="alert"]`},
		{Kind: status.OutcomeFailure, Text: "something went wrong"},
	}
}

// Outcome is the classified result with the evidence that decided it.
type Outcome struct {
	Kind     status.Outcome
	Signal   Signal // zero for timeout
	Evidence string // text snippet of the matched element
	Elapsed  time.Duration
}

// TimeoutError is returned when no signal appeared within the wait budget or the wait
// was cancelled.
type TimeoutError struct {
	Waited  time.Duration
	Checked []string // signals evaluated, in priority order
	Err     error    // context error when cancelled
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("outcome wait aborted after %s: %v", e.Waited, e.Err)
	}
	return fmt.Sprintf("no outcome signal within %s, checked %v", e.Waited, e.Checked)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Logger is the diagnostic sink for classification decisions.
type Logger interface {
	Print(format string, args ...any)
}

// Classifier waits for outcome signals.
type Classifier struct {
	Log          Logger
	Timeout      time.Duration // wait budget, zero uses DefaultTimeout
	PollInterval time.Duration // zero uses DefaultPollInterval
}

// Classify polls the page until a signal is accepted. Signals are checked in slice order;
// the first present signal is accepted once the hold windows of all signals before it have
// passed. At the deadline the first present signal is accepted regardless of holds.
// Nothing present, or ctx done, returns a Timeout outcome with *TimeoutError.
func (c *Classifier) Classify(ctx context.Context, p page.Page, signals []Signal) (Outcome, error) {
	timeout, poll := c.Timeout, c.PollInterval
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	checked := make([]string, 0, len(signals))
	for _, s := range signals {
		checked = append(checked, s.String())
	}

	start := time.Now()
	for {
		elapsed := time.Since(start)
		final := elapsed >= timeout

		idx, evidence, err := firstPresent(ctx, p, signals)
		if err != nil {
			return c.timedOut(elapsed, checked, err)
		}
		if idx >= 0 && (final || holdsPassed(signals[:idx], elapsed)) {
			res := Outcome{Kind: signals[idx].Kind, Signal: signals[idx], Evidence: evidence, Elapsed: elapsed}
			c.print("outcome %s after %s: %s matched %q", res.Kind, elapsed.Round(time.Millisecond), signals[idx], evidence)
			return res, nil
		}
		if final {
			return c.timedOut(elapsed, checked, nil)
		}

		wait := min(poll, timeout-elapsed)
		if err := sleep(ctx, wait); err != nil {
			return c.timedOut(time.Since(start), checked, err)
		}
	}
}

func (c *Classifier) timedOut(elapsed time.Duration, checked []string, err error) (Outcome, error) {
	terr := &TimeoutError{Waited: elapsed, Checked: checked, Err: err}
	c.print("outcome %s: %v", status.OutcomeTimeout, terr)
	return Outcome{Kind: status.OutcomeTimeout, Elapsed: elapsed}, terr
}

func (c *Classifier) print(format string, args ...any) {
	if c.Log != nil {
		c.Log.Print(format, args...)
	}
}

func holdsPassed(higher []Signal, elapsed time.Duration) bool {
	for _, s := range higher {
		if elapsed < s.Hold {
			return false
		}
	}
	return true
}

// firstPresent returns the index of the first present signal and its evidence, -1 if none.
// only context errors are returned; a failing query counts as an absent signal.
func firstPresent(ctx context.Context, p page.Page, signals []Signal) (int, string, error) {
	for i, s := range signals {
		evidence, ok := present(ctx, p, s)
		if err := ctx.Err(); err != nil {
			return -1, "", err
		}
		if ok {
			return i, evidence, nil
		}
	}
	return -1, "", nil
}

// present matches against rendered text only, so script sources and hidden templates
// never count. A selector-only signal needs a visible element: hidden or empty
// placeholders such as an idle alert region are absent.
func present(ctx context.Context, p page.Page, s Signal) (string, bool) {
	selector := s.Selector
	if selector == "" {
		selector = "body"
	}
	els, err := p.Query(ctx, selector)
	if err != nil {
		return "", false
	}
	needle := strings.ToLower(resolve.NormalizeText(s.Text))
	for _, el := range els {
		text, err := el.VisibleText(ctx)
		if err != nil {
			continue // detached between query and read
		}
		norm := resolve.NormalizeText(text)
		if needle == "" {
			if norm != "" {
				return snippet(norm, 0, maxEvidence), true
			}
			if visible, err := el.Visible(ctx); err == nil && visible {
				return embedEvidence(ctx, el), true // textless boxes, e.g. a payment iframe
			}
			continue
		}
		lower := strings.ToLower(norm)
		if pos := strings.Index(lower, needle); pos >= 0 {
			if len(lower) != len(norm) {
				norm = lower // case folding changed byte offsets
			}
			return snippet(norm, pos, maxEvidence), true
		}
	}
	return "", false
}

// embedEvidence describes a textless element by its source.
func embedEvidence(ctx context.Context, el page.Element) string {
	attrs, err := el.Attributes(ctx)
	if err != nil {
		return ""
	}
	for _, k := range []string{"src", "data", "name"} {
		if v := attrs[k]; v != "" {
			return snippet(k+"="+v, 0, maxEvidence)
		}
	}
	return ""
}

// snippet cuts up to n bytes of text starting a little before pos.
func snippet(text string, pos, n int) string {
	from := max(0, pos-40)
	to := min(len(text), from+n)
	return strings.TrimSpace(text[from:to])
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
