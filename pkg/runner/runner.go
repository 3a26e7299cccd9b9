// Package runner drives one registration scenario through the run state machine:
// open the page, resolve and click through to the form, fill it, submit and classify
// the outcome. Failed, timed out and aborted runs are reported in the background.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/umputun/regcheck/pkg/form"
	"github.com/umputun/regcheck/pkg/interact"
	"github.com/umputun/regcheck/pkg/notify"
	"github.com/umputun/regcheck/pkg/outcome"
	"github.com/umputun/regcheck/pkg/page"
	"github.com/umputun/regcheck/pkg/resolve"
	"github.com/umputun/regcheck/pkg/status"
)

// DefaultReportTimeout bounds a single background report, screenshot capture included.
const DefaultReportTimeout = 30 * time.Second

// Config holds runner configuration.
type Config struct {
	EnumerateTimeout time.Duration // candidate enumeration window per target
	PollInterval     time.Duration // DOM polling interval for enumeration and outcome signals
	SettleDelay      time.Duration // pause after scroll-into-view
	FieldDelay       time.Duration // pause after each filled form field
	OutcomeTimeout   time.Duration // wait budget for outcome signals after submit
	ActionTimeout    time.Duration // per-interaction timeout passed to the page
	ForceFallback    bool          // retry a failed interaction once forced
	ReportTimeout    time.Duration // bound for a background report, zero uses DefaultReportTimeout
	Revision         string        // suite revision attached to reports
}

//go:generate moq -out mocks/logger.go -pkg mocks -skip-ensure -fmt goimports . Logger
//go:generate moq -out mocks/reporter.go -pkg mocks -skip-ensure -fmt goimports . Reporter

// Logger is the diagnostic sink of a run.
type Logger interface {
	SetState(state status.State)
	Print(format string, args ...any)
}

// Reporter receives reports of failed, timed out and aborted runs. Implementations must
// honor ctx, the runner cancels it after ReportTimeout.
type Reporter interface {
	Send(ctx context.Context, r notify.Report)
}

// Step is a click-through on the way to the registration form, e.g. the workshop card
// and its register button.
type Step struct {
	Target resolve.Target
	Scroll bool
	Force  bool
}

// Scenario is a single registration flow with its data.
type Scenario struct {
	Name    string
	URL     string
	Steps   []Step
	Fields  []form.FieldSpec
	Submit  *Step // nil when the flow has no submit, e.g. a read-only listing check
	Signals []outcome.Signal
}

// Result is the record of one run.
type Result struct {
	Scenario    string
	State       status.State // terminal state
	Trail       []status.State
	Outcome     outcome.Outcome
	Resolutions []resolve.Resolution
	Fill        form.Report
	Err         error
	Duration    time.Duration
}

// Runner executes scenarios. A Runner may run scenarios concurrently, each on its own page;
// all per-run state lives in the returned Result.
type Runner struct {
	cfg        Config
	log        Logger
	reporter   Reporter
	resolver   *resolve.Resolver
	exec       *interact.Executor
	filler     *form.Filler
	classifier *outcome.Classifier
	wg         sync.WaitGroup
}

// New creates a Runner. reporter may be nil, in which case nothing is reported.
func New(cfg Config, log Logger, reporter Reporter) *Runner {
	exec := &interact.Executor{Log: log, SettleDelay: cfg.SettleDelay, ForceFallback: cfg.ForceFallback, Timeout: cfg.ActionTimeout}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = DefaultReportTimeout
	}
	return &Runner{
		cfg:        cfg,
		log:        log,
		reporter:   reporter,
		resolver:   &resolve.Resolver{Log: log, Timeout: cfg.EnumerateTimeout, PollInterval: cfg.PollInterval},
		exec:       exec,
		filler:     &form.Filler{Exec: exec, Log: log, FieldDelay: cfg.FieldDelay},
		classifier: &outcome.Classifier{Log: log, Timeout: cfg.OutcomeTimeout, PollInterval: cfg.PollInterval},
	}
}

// Run executes sc on p and returns the run record. The returned error is the run error
// for aborted and timed out runs and nil when an outcome signal was classified, failure
// included; callers check Result.State for pass or fail.
func (r *Runner) Run(ctx context.Context, p page.Page, sc Scenario) (Result, error) {
	start := time.Now()
	var states status.StateHolder
	states.OnChange(func(_, cur status.State) { r.log.SetState(cur) })

	res := Result{Scenario: sc.Name}
	finish := func(state status.State, err error) (Result, error) {
		states.Set(state)
		res.State, res.Trail, res.Err = state, states.Trail(), err
		res.Duration = time.Since(start)
		if err != nil {
			r.log.Print("%s: %s: %v", sc.Name, state, err)
		} else {
			r.log.Print("%s: %s in %s", sc.Name, state, res.Duration.Round(time.Millisecond))
		}
		if state.Reportable() {
			r.report(p, res)
		}
		return res, err
	}

	states.Set(status.StateStart)
	r.log.Print("%s: opening %s", sc.Name, sc.URL)
	if err := p.Goto(ctx, sc.URL); err != nil {
		return finish(abortState(ctx, err), fmt.Errorf("open %s: %w", sc.URL, err))
	}
	states.Set(status.StatePageLoaded)

	for _, step := range sc.Steps {
		rs, err := r.clickThrough(ctx, p, step)
		if err != nil {
			return finish(abortState(ctx, err), err)
		}
		res.Resolutions = append(res.Resolutions, rs)
	}
	states.Set(status.StateElementResolved)

	if len(sc.Fields) > 0 {
		fill, err := r.filler.Fill(ctx, p, sc.Fields)
		res.Fill = fill
		if err != nil {
			return finish(abortState(ctx, err), fmt.Errorf("fill form: %w", err))
		}
	}
	states.Set(status.StateFormFilled)

	if sc.Submit == nil {
		return finish(status.StateSuccess, nil)
	}
	rs, err := r.clickThrough(ctx, p, *sc.Submit)
	if err != nil {
		return finish(abortState(ctx, err), fmt.Errorf("submit: %w", err))
	}
	res.Resolutions = append(res.Resolutions, rs)
	states.Set(status.StateSubmitted)

	signals := sc.Signals
	if len(signals) == 0 {
		signals = outcome.DefaultSignals()
	}
	out, err := r.classifier.Classify(ctx, p, signals)
	res.Outcome = out
	if err != nil {
		return finish(status.StateTimeout, err)
	}
	return finish(out.Kind.State(), nil)
}

// clickThrough resolves the step target and clicks it. A stale element is resolved
// again once; other errors are returned as is.
func (r *Runner) clickThrough(ctx context.Context, p page.Page, step Step) (resolve.Resolution, error) {
	action := interact.Action{Kind: interact.KindClick, Target: step.Target.Name, Scroll: step.Scroll, Force: step.Force}

	rs, err := r.resolver.Resolve(ctx, p, step.Target)
	if err != nil {
		return rs, err
	}
	err = r.exec.Do(ctx, rs.Candidate.Element, action)
	var ie *interact.InteractionError
	if err == nil || !errors.As(err, &ie) || !ie.Stale {
		return rs, err
	}

	r.log.Print("[WARN] %s went stale before click, resolving again", step.Target.Name)
	if rs, err = r.resolver.Resolve(ctx, p, step.Target); err != nil {
		return rs, err
	}
	return rs, r.exec.Do(ctx, rs.Candidate.Element, action)
}

// report hands res to the reporter in the background. The screenshot, when the page
// supports it, is captured before returning so the report shows the failing state.
func (r *Runner) report(p page.Page, res Result) {
	if r.reporter == nil {
		return
	}
	rep := notify.Report{
		Scenario: res.Scenario,
		URL:      p.URL(),
		Outcome:  string(res.State),
		Evidence: res.Outcome.Evidence,
		Duration: res.Duration.Round(time.Millisecond).String(),
		Revision: r.cfg.Revision,
	}
	if res.Err != nil {
		rep.Error = res.Err.Error()
	}

	if sh, ok := p.(page.Screenshotter); ok {
		// the run context may be gone already, capture under the report budget instead
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ReportTimeout)
		data, err := sh.Screenshot(ctx)
		cancel()
		if err != nil {
			r.log.Print("[WARN] screenshot for %s failed: %v", res.Scenario, err)
		}
		rep.Screenshot = data
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ReportTimeout)
		defer cancel()
		r.reporter.Send(ctx, rep)
	}()
}

// Wait blocks until all background reports are done. A reporter ignoring its context
// can't hold Wait longer than ReportTimeout; returns false in that case.
func (r *Runner) Wait() bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(r.cfg.ReportTimeout):
		r.log.Print("[WARN] pending reports abandoned after %s", r.cfg.ReportTimeout)
		return false
	}
}

// abortState maps a run error to its terminal state. Cancellation and deadline of the
// run context count as timeout, everything else aborts the run.
func abortState(ctx context.Context, err error) status.State {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.StateTimeout
	}
	return status.StateAborted
}
