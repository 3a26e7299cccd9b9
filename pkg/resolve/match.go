package resolve

import (
	"context"
	"time"

	"github.com/umputun/regcheck/pkg/page"
)

// Logger is the diagnostic sink for resolution decisions.
type Logger interface {
	Print(format string, args ...any)
}

// Resolution is a resolved candidate together with the criterion that picked it.
type Resolution struct {
	Candidate  Candidate
	Criterion  string   // name of the winning criterion
	Level      int      // 1-based priority of the winning criterion
	Enumerated int      // number of candidates enumerated
	Attempted  []string // criteria evaluated, the winner included
}

// Match returns the first candidate, in enumeration order, satisfying the highest-priority
// criterion that matches anything. Lower-priority criteria are evaluated only when every
// criterion above them matched nothing.
// returns ElementNotFoundError without evaluating criteria when cands is empty.
func Match(cands []Candidate, criteria []Criterion) (Resolution, error) {
	if len(cands) == 0 {
		return Resolution{}, &ElementNotFoundError{}
	}

	attempted := make([]string, 0, len(criteria))
	for i, cr := range criteria {
		attempted = append(attempted, cr.Name())
		for _, c := range cands {
			if cr.Match(c) {
				return Resolution{
					Candidate:  c,
					Criterion:  cr.Name(),
					Level:      i + 1,
					Enumerated: len(cands),
					Attempted:  attempted,
				}, nil
			}
		}
	}
	return Resolution{}, &ElementNotFoundError{Enumerated: len(cands), Attempted: attempted}
}

// Target describes what to resolve: a scope of candidates and the criteria cascade.
type Target struct {
	Name     string // used in logs and errors
	Scope    string // CSS selector enumerating candidates
	Criteria []Criterion
	Timeout  time.Duration // enumeration window, zero uses the resolver default
}

// Resolver enumerates and matches targets on a page, logging which criterion level won.
type Resolver struct {
	Log          Logger
	Timeout      time.Duration // default enumeration window
	PollInterval time.Duration
}

// Resolve enumerates t.Scope and matches the candidates against t.Criteria.
func (r *Resolver) Resolve(ctx context.Context, p page.Page, t Target) (Resolution, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = r.Timeout
	}

	cands, err := Enumerate(ctx, p, t.Scope, EnumerateOptions{Timeout: timeout, PollInterval: r.PollInterval})
	if err != nil {
		if nf, ok := err.(*ElementNotFoundError); ok { //nolint:errorlint // Enumerate returns it unwrapped
			nf.Target = t.Name
			r.print("%s: no elements appeared in %q within %s", t.Name, t.Scope, nf.Waited)
		}
		return Resolution{}, err
	}

	res, err := Match(cands, t.Criteria)
	if err != nil {
		if nf, ok := err.(*ElementNotFoundError); ok { //nolint:errorlint // Match returns it unwrapped
			nf.Target, nf.Scope = t.Name, t.Scope
			r.print("%s: no criterion matched %d candidates in %q, tried %v", t.Name, nf.Enumerated, t.Scope, nf.Attempted)
		}
		return Resolution{}, err
	}

	r.print("%s: criterion-%d matched candidate #%d of %d (%s)",
		t.Name, res.Level, res.Candidate.Index+1, res.Enumerated, res.Criterion)
	return res, nil
}

func (r *Resolver) print(format string, args ...any) {
	if r.Log != nil {
		r.Log.Print(format, args...)
	}
}
