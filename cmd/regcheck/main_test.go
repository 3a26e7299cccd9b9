package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/regcheck/pkg/assist"
	"github.com/umputun/regcheck/pkg/assist/mocks"
	"github.com/umputun/regcheck/pkg/config"
	"github.com/umputun/regcheck/pkg/outcome"
	"github.com/umputun/regcheck/pkg/page"
	"github.com/umputun/regcheck/pkg/progress"
	"github.com/umputun/regcheck/pkg/resolve"
	"github.com/umputun/regcheck/pkg/runner"
	"github.com/umputun/regcheck/pkg/scenario"
	"github.com/umputun/regcheck/pkg/status"
)

const formHTML = `<html><body>
<form id="reg"><input id="email" type="email"><button id="submit" type="submit">Submit</button></form>
<div class="error">Registration closed for Chennai</div>
</body></html>`

// staticSession serves a fresh static page per run.
type staticSession struct {
	html   string
	err    error
	opened int
	closed int
}

func (s *staticSession) NewPage(context.Context) (page.Page, func(), error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	p, err := page.NewStatic("http://localhost/workshops", s.html)
	if err != nil {
		return nil, nil, err
	}
	s.opened++
	return p, func() { s.closed++ }, nil
}

func (s *staticSession) Close() error { return nil }

func testColors() *progress.Colors { return progress.NewColors(config.ColorConfig{}) }

func newTestSuite(t *testing.T, session browserSession) (*suite, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	colors := testColors()
	return &suite{
		values: config.Values{PollIntervalMs: 10, EnumerateTimeoutMs: 50, OutcomeTimeoutMs: 200,
			ActionTimeoutMs: 100, ReportTimeoutMs: 1000},
		prompt:   "summarize {{SCENARIO}}: {{ERROR}} {{EVIDENCE}}",
		colors:   colors,
		revision: "main@abc1234",
		logsDir:  t.TempDir(),
		noColor:  true,
		session:  session,
		console:  &consoleLogger{colors: colors, out: &buf},
		out:      &buf,
	}, &buf
}

func submitStep(scope string) *runner.Step {
	return &runner.Step{Target: resolve.Target{Name: "submit", Scope: scope, Timeout: 50 * time.Millisecond,
		Criteria: []resolve.Criterion{resolve.FirstAvailable{}}}}
}

func TestSuite_runOne(t *testing.T) {
	t.Run("passes without submit", func(t *testing.T) {
		session := &staticSession{html: formHTML}
		s, _ := newTestSuite(t, session)
		res := s.runOne(t.Context(), runner.Scenario{Name: "listing", URL: "http://localhost/workshops"})
		assert.Equal(t, status.StateSuccess, res.State)
		require.NoError(t, res.Err)
		assert.Equal(t, 1, session.opened)
		assert.Equal(t, 1, session.closed)
		assert.FileExists(t, filepath.Join(s.logsDir, "progress-listing.txt"))
	})

	t.Run("failure is summarized", func(t *testing.T) {
		s, _ := newTestSuite(t, &staticSession{html: formHTML})
		summarizer := &mocks.SummarizerMock{SummarizeFunc: func(context.Context, string) (string, error) {
			return "registration is closed for the selected city", nil
		}}
		s.summarizer = summarizer

		sc := runner.Scenario{Name: "closed", URL: "http://localhost/workshops", Submit: submitStep("#submit"),
			Signals: []outcome.Signal{{Kind: status.OutcomeSuccess, Text: "registration successful"},
				{Kind: status.OutcomeFailure, Selector: ".error"}}}
		res := s.runOne(t.Context(), sc)
		assert.Equal(t, status.StateFailure, res.State)

		require.Len(t, summarizer.SummarizeCalls(), 1)
		assert.Contains(t, summarizer.SummarizeCalls()[0].Prompt, "summarize closed:")
		assert.Contains(t, summarizer.SummarizeCalls()[0].Prompt, "Registration closed for Chennai")

		content, err := os.ReadFile(filepath.Join(s.logsDir, "progress-closed.txt"))
		require.NoError(t, err)
		assert.Contains(t, string(content), "registration is closed for the selected city")
		assert.Contains(t, string(content), "Revision: main@abc1234")
	})

	t.Run("unresolved submit aborts", func(t *testing.T) {
		s, _ := newTestSuite(t, &staticSession{html: formHTML})
		res := s.runOne(t.Context(), runner.Scenario{Name: "broken", URL: "http://localhost/workshops",
			Submit: submitStep("#missing")})
		assert.Equal(t, status.StateAborted, res.State)
		require.Error(t, res.Err)
	})

	t.Run("page error aborts", func(t *testing.T) {
		s, buf := newTestSuite(t, &staticSession{err: errors.New("browser crashed")})
		res := s.runOne(t.Context(), runner.Scenario{Name: "crash", URL: "http://localhost"})
		assert.Equal(t, status.StateAborted, res.State)
		require.EqualError(t, res.Err, "browser crashed")
		assert.Contains(t, buf.String(), "[WARN] crash: browser crashed")
	})
}

func TestSuite_runAll_Canceled(t *testing.T) {
	session := &staticSession{html: formHTML}
	s, _ := newTestSuite(t, session)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	res := s.runAll(ctx, []runner.Scenario{{Name: "a", URL: "http://x"}, {Name: "b", URL: "http://x"}})
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, status.StateAborted, r.State)
		require.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, session.opened)
}

func TestSuite_reporter(t *testing.T) {
	s, _ := newTestSuite(t, &staticSession{})
	assert.Nil(t, s.reporter(nil), "nothing configured")

	s.ocr = &mocks.TextReaderMock{}
	rep, ok := s.reporter(nil).(*assist.Reporter)
	require.True(t, ok)
	assert.Nil(t, rep.Next, "no notifier configured")
	assert.Equal(t, s.prompt, rep.Prompt)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	results := []runner.Result{
		{Scenario: "free", State: status.StateSuccess, Duration: 1500 * time.Millisecond},
		{Scenario: "paid", State: status.StatePaymentPending, Duration: time.Second},
		{Scenario: "closed", State: status.StateAborted, Err: errors.New("no candidates for workshop card")},
	}
	failed := printSummary(&buf, testColors(), results)
	assert.Equal(t, 1, failed)
	out := buf.String()
	assert.Contains(t, out, "PASS  free")
	assert.Contains(t, out, "PASS  paid")
	assert.Contains(t, out, "FAIL  closed")
	assert.Contains(t, out, "no candidates for workshop card")
	assert.Contains(t, out, "3 scenario(s), 2 passed, 1 failed")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(fmt.Errorf("2 of 3: %w", errFailed)))
	assert.Equal(t, 2, exitCode(errors.New("load config: bad")))
}

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{Values: config.Values{BaseURL: "http://localhost:8080", Browser: "chromium", Headless: true,
		ScenariosDir: "scenarios", AssistEnabled: true}}
	applyOverrides(cfg, opts{})
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.True(t, cfg.Headless)

	applyOverrides(cfg, opts{Dir: "qa", BaseURL: "https://staging.example.com/", Browser: "firefox", Headed: true,
		SlowMo: 250, NoAssist: true})
	assert.Equal(t, "qa", cfg.ScenariosDir)
	assert.Equal(t, "https://staging.example.com", cfg.BaseURL)
	assert.Equal(t, "firefox", cfg.Browser)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 250, cfg.SlowMoMs)
	assert.False(t, cfg.AssistEnabled)
}

func TestEnvFile(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", ".env"), envFile(opts{}, "scenarios"))
	assert.Equal(t, "staging.env", envFile(opts{EnvFile: "staging.env"}, "scenarios"))
}

func TestSelectScenarios(t *testing.T) {
	all := []runner.Scenario{{Name: "free"}, {Name: "paid"}, {Name: "listing"}}

	res, err := selectScenarios(all, nil)
	require.NoError(t, err)
	assert.Len(t, res, 3)

	res, err = selectScenarios(all, []string{"listing", "free"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "listing", res[0].Name)
	assert.Equal(t, "free", res[1].Name)

	_, err = selectScenarios(all, []string{"nope"})
	require.EqualError(t, err, `unknown scenario "nope"`)
}

func TestChangedScenarios(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}
	free := write("free.yml", "url: ${BASE_URL}/free\n")
	write("paid.yml", "url: ${BASE_URL}/paid\n")
	env := write(".env", "CITY=Chennai\n")
	loader := &scenario.Loader{Defaults: map[string]string{"BASE_URL": "http://localhost"}, DotEnv: env,
		LookupEnv: func(string) (string, bool) { return "", false }}

	res, err := changedScenarios(loader, dir, []string{free}, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "free", res[0].Name)
	assert.Equal(t, "http://localhost/free", res[0].URL)

	res, err = changedScenarios(loader, dir, []string{env}, nil)
	require.NoError(t, err)
	assert.Len(t, res, 2, "vars change reloads all")

	res, err = changedScenarios(loader, dir, []string{env}, []string{"paid"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "paid", res[0].Name)

	res, err = changedScenarios(loader, dir, []string{filepath.Join(dir, "removed.yml")}, nil)
	require.NoError(t, err)
	assert.Empty(t, res)

	write("bad.yml", "url: [\n")
	_, err = changedScenarios(loader, dir, []string{filepath.Join(dir, "bad.yml")}, nil)
	require.Error(t, err)
}

func TestRunnerConfig(t *testing.T) {
	rc := runnerConfig(config.Values{PollIntervalMs: 250, EnumerateTimeoutMs: 15000, OutcomeTimeoutMs: 30000,
		ActionTimeoutMs: 10000, SettleDelayMs: 300, FieldDelayMs: 150, ForceFallback: true, ReportTimeoutMs: 5000}, "rev")
	assert.Equal(t, 250*time.Millisecond, rc.PollInterval)
	assert.Equal(t, 15*time.Second, rc.EnumerateTimeout)
	assert.Equal(t, 30*time.Second, rc.OutcomeTimeout)
	assert.Equal(t, 10*time.Second, rc.ActionTimeout)
	assert.Equal(t, 300*time.Millisecond, rc.SettleDelay)
	assert.Equal(t, 150*time.Millisecond, rc.FieldDelay)
	assert.Equal(t, 5*time.Second, rc.ReportTimeout)
	assert.True(t, rc.ForceFallback)
	assert.Equal(t, "rev", rc.Revision)
}

func TestAssistants(t *testing.T) {
	found := func(string) (string, error) { return "/usr/bin/x", nil }
	missing := func(string) (string, error) { return "", errors.New("not found") }
	noKey := func(string) string { return "" }
	key := func(string) string { return "sk-test" }

	t.Run("claude and tesseract", func(t *testing.T) {
		var buf bytes.Buffer
		sum, ocr := assistants(config.Values{AssistProvider: "claude", ClaudeCommand: "claude",
			ClaudeArgs: "--print --verbose", OCRCommand: "tesseract"}, noKey, found, &consoleLogger{colors: testColors(), out: &buf})
		c, ok := sum.(*assist.Claude)
		require.True(t, ok)
		assert.Equal(t, []string{"--print", "--verbose"}, c.Args)
		assert.IsType(t, &assist.Tesseract{}, ocr)
		assert.Empty(t, buf.String())
	})

	t.Run("openai", func(t *testing.T) {
		var buf bytes.Buffer
		sum, _ := assistants(config.Values{AssistProvider: "openai", OpenAIModel: "gpt-4o-mini"}, key, found,
			&consoleLogger{colors: testColors(), out: &buf})
		assert.IsType(t, &assist.OpenAI{}, sum)
	})

	t.Run("missing parts are disabled", func(t *testing.T) {
		var buf bytes.Buffer
		log := &consoleLogger{colors: testColors(), out: &buf}
		sum, ocr := assistants(config.Values{AssistProvider: "claude", ClaudeCommand: "claude", OCRCommand: "tesseract"},
			noKey, missing, log)
		assert.Nil(t, sum)
		assert.Nil(t, ocr)
		assert.Contains(t, buf.String(), "[WARN] claude not found")
		assert.Contains(t, buf.String(), "[WARN] tesseract not found")

		buf.Reset()
		sum, _ = assistants(config.Values{AssistProvider: "openai"}, noKey, found, log)
		assert.Nil(t, sum)
		assert.Contains(t, buf.String(), "OPENAI_API_KEY is not set")
	})
}
