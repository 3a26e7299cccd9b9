// Package interact performs clicks, typing and option selection on resolved elements,
// with an optional scroll-into-view pre-step and a single forced fallback attempt.
package interact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/umputun/regcheck/pkg/page"
)

// DefaultSettleDelay is the pause after scrolling, letting animated scroll finish.
const DefaultSettleDelay = 300 * time.Millisecond

// Kind is the interaction type.
type Kind string

// interaction kinds.
const (
	KindClick  Kind = "click"
	KindType   Kind = "type"
	KindSelect Kind = "select"
)

// Action describes one interaction with an element.
type Action struct {
	Kind   Kind
	Target string // element description for logs and errors
	Value  string // literal text for type, option value for select
	Force  bool   // skip actionability checks from the first attempt
	Scroll bool   // scroll the element into view before interacting
}

// InteractionError reports an interaction that failed, including after the forced fallback.
type InteractionError struct {
	Kind   Kind
	Target string
	Stale  bool // element detached between resolution and interaction
	Forced bool // the failing attempt was forced
	Err    error
}

func (e *InteractionError) Error() string {
	reason := ""
	switch {
	case e.Stale:
		reason = " (stale element)"
	case e.Forced:
		reason = " (forced)"
	}
	return fmt.Sprintf("%s on %s failed%s: %v", e.Kind, e.Target, reason, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

// Logger is the diagnostic sink for interaction fallbacks.
type Logger interface {
	Print(format string, args ...any)
}

// Executor performs interactions. A non-forced attempt failing for any reason other than
// a stale element is retried once with force when ForceFallback is set.
type Executor struct {
	Log           Logger
	SettleDelay   time.Duration // pause after scroll, zero uses DefaultSettleDelay
	ForceFallback bool
	Timeout       time.Duration // per-attempt timeout passed to the page, zero uses page default
}

// Do runs a on el. Stale elements are never retried here; callers decide whether to
// resolve again.
func (e *Executor) Do(ctx context.Context, el page.Element, a Action) error {
	if a.Scroll {
		if err := e.scroll(ctx, el, a); err != nil {
			return err
		}
	}

	err := e.perform(ctx, el, a, a.Force)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s on %s: %w", a.Kind, a.Target, ctxErr)
	}
	if errors.Is(err, page.ErrDetached) {
		return &InteractionError{Kind: a.Kind, Target: a.Target, Stale: true, Forced: a.Force, Err: err}
	}
	if a.Force || !e.ForceFallback {
		return &InteractionError{Kind: a.Kind, Target: a.Target, Forced: a.Force, Err: err}
	}

	e.print("[WARN] %s on %s failed (%v), retrying forced", a.Kind, a.Target, err)
	if err := e.perform(ctx, el, a, true); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s on %s: %w", a.Kind, a.Target, ctxErr)
		}
		return &InteractionError{Kind: a.Kind, Target: a.Target, Stale: errors.Is(err, page.ErrDetached), Forced: true, Err: err}
	}
	return nil
}

func (e *Executor) scroll(ctx context.Context, el page.Element, a Action) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		if errors.Is(err, page.ErrDetached) {
			return &InteractionError{Kind: a.Kind, Target: a.Target, Stale: true, Err: err}
		}
		if ctx.Err() != nil {
			return fmt.Errorf("scroll to %s: %w", a.Target, ctx.Err())
		}
		// not fatal, forced interactions don't need the element in view
		e.print("[WARN] scroll to %s failed: %v", a.Target, err)
	}

	delay := e.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	if err := Sleep(ctx, delay); err != nil {
		return fmt.Errorf("settle after scroll to %s: %w", a.Target, err)
	}
	return nil
}

func (e *Executor) perform(ctx context.Context, el page.Element, a Action, force bool) error {
	opts := page.ActionOptions{Force: force, Timeout: e.Timeout}
	switch a.Kind {
	case KindClick:
		return el.Click(ctx, opts)
	case KindType:
		return el.Fill(ctx, a.Value, opts)
	case KindSelect:
		return el.SelectValue(ctx, a.Value, opts)
	default:
		return fmt.Errorf("unknown interaction kind %q", a.Kind)
	}
}

func (e *Executor) print(format string, args ...any) {
	if e.Log != nil {
		e.Log.Print(format, args...)
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
