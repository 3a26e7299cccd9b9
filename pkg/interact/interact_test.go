package interact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/regcheck/pkg/page"
)

const formHTML = `<html><body>
<button id="register">Register</button>
<button id="covered" data-obscured>Pay</button>
<input id="phone" type="tel">
<select id="city"><option value="">Select city</option><option value="che">Chennai</option></select>
</body></html>`

type mockLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *mockLogger) Print(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func (l *mockLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.msgs, "\n")
}

// countingElement fails every click with err and counts attempts.
type countingElement struct {
	page.Element
	err    error
	clicks []bool // force flag per attempt
}

func (c *countingElement) Click(_ context.Context, opts page.ActionOptions) error {
	c.clicks = append(c.clicks, opts.Force)
	return c.err
}

func newFormPage(t *testing.T) *page.Static {
	t.Helper()
	p, err := page.NewStatic("http://test/register", formHTML)
	require.NoError(t, err)
	return p
}

func element(t *testing.T, p *page.Static, selector string) page.Element {
	t.Helper()
	els, err := p.Query(context.Background(), selector)
	require.NoError(t, err)
	require.Len(t, els, 1)
	return els[0]
}

func TestExecutor_Do(t *testing.T) {
	t.Run("click without force", func(t *testing.T) {
		p := newFormPage(t)
		e := &Executor{ForceFallback: true}
		err := e.Do(context.Background(), element(t, p, "#register"), Action{Kind: KindClick, Target: "register"})
		require.NoError(t, err)
		assert.Equal(t, []page.Action{{Kind: "click", Target: "button#register"}}, p.Actions())
	})

	t.Run("obscured element falls back to forced click", func(t *testing.T) {
		p := newFormPage(t)
		log := &mockLogger{}
		e := &Executor{Log: log, ForceFallback: true}
		err := e.Do(context.Background(), element(t, p, "#covered"), Action{Kind: KindClick, Target: "pay"})
		require.NoError(t, err)
		assert.Equal(t, []page.Action{{Kind: "click", Target: "button#covered", Force: true}}, p.Actions())
		assert.Contains(t, log.joined(), "retrying forced")
	})

	t.Run("obscured element without fallback fails", func(t *testing.T) {
		p := newFormPage(t)
		e := &Executor{}
		err := e.Do(context.Background(), element(t, p, "#covered"), Action{Kind: KindClick, Target: "pay"})
		var ie *InteractionError
		require.ErrorAs(t, err, &ie)
		assert.False(t, ie.Stale)
		assert.False(t, ie.Forced)
		require.ErrorIs(t, err, page.ErrNotActionable)
		assert.Empty(t, p.Actions())
	})

	t.Run("forced from the start", func(t *testing.T) {
		p := newFormPage(t)
		e := &Executor{}
		err := e.Do(context.Background(), element(t, p, "#covered"), Action{Kind: KindClick, Target: "pay", Force: true})
		require.NoError(t, err)
		assert.True(t, p.Actions()[0].Force)
	})

	t.Run("stale element is not retried", func(t *testing.T) {
		p := newFormPage(t)
		el := element(t, p, "#register")
		p.Remove("#register")

		e := &Executor{ForceFallback: true}
		err := e.Do(context.Background(), el, Action{Kind: KindClick, Target: "register"})
		var ie *InteractionError
		require.ErrorAs(t, err, &ie)
		assert.True(t, ie.Stale)
		require.ErrorIs(t, err, page.ErrDetached)
		assert.Contains(t, err.Error(), "stale element")
		assert.Empty(t, p.Actions())
	})

	t.Run("at most one fallback attempt", func(t *testing.T) {
		el := &countingElement{err: errors.New("timeout 10000ms exceeded")}
		e := &Executor{ForceFallback: true}
		err := e.Do(context.Background(), el, Action{Kind: KindClick, Target: "flaky"})
		var ie *InteractionError
		require.ErrorAs(t, err, &ie)
		assert.True(t, ie.Forced)
		assert.Equal(t, []bool{false, true}, el.clicks)
	})

	t.Run("scroll then settle before click", func(t *testing.T) {
		p := newFormPage(t)
		e := &Executor{SettleDelay: 30 * time.Millisecond}
		start := time.Now()
		err := e.Do(context.Background(), element(t, p, "#register"), Action{Kind: KindClick, Target: "register", Scroll: true})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
		acts := p.Actions()
		require.Len(t, acts, 2)
		assert.Equal(t, "scroll", acts[0].Kind)
		assert.Equal(t, "click", acts[1].Kind)
	})

	t.Run("canceled during settle", func(t *testing.T) {
		p := newFormPage(t)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)
		e := &Executor{SettleDelay: 5 * time.Second}
		err := e.Do(ctx, element(t, p, "#register"), Action{Kind: KindClick, Target: "register", Scroll: true})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("type literal value", func(t *testing.T) {
		p := newFormPage(t)
		e := &Executor{}
		err := e.Do(context.Background(), element(t, p, "#phone"), Action{Kind: KindType, Target: "phone", Value: "09876543210"})
		require.NoError(t, err)
		assert.Equal(t, "09876543210", p.Actions()[0].Value, "leading zero preserved")
		assert.Contains(t, p.HTML(), `value="09876543210"`)
	})

	t.Run("select by value", func(t *testing.T) {
		p := newFormPage(t)
		e := &Executor{}
		err := e.Do(context.Background(), element(t, p, "#city"), Action{Kind: KindSelect, Target: "city", Value: "che"})
		require.NoError(t, err)
		assert.Equal(t, page.Action{Kind: "select", Target: "select#city", Value: "che"}, p.Actions()[0])
	})
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), 0))
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Second), context.Canceled)
}
