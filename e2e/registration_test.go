//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/regcheck/pkg/notify"
	"github.com/umputun/regcheck/pkg/page"
	"github.com/umputun/regcheck/pkg/runner"
	"github.com/umputun/regcheck/pkg/scenario"
	"github.com/umputun/regcheck/pkg/status"
)

// loadExample loads a scenario from the repo's scenarios directory against the fixture site.
func loadExample(t *testing.T, name string) runner.Scenario {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	dir := filepath.Join(filepath.Dir(cwd), "scenarios")
	l := &scenario.Loader{Defaults: map[string]string{"BASE_URL": site.URL}, DotEnv: filepath.Join(dir, ".env"),
		LookupEnv: func(string) (string, bool) { return "", false }}
	sc, err := l.LoadFile(filepath.Join(dir, name+".yml"))
	require.NoError(t, err)
	return sc
}

// reportRecorder collects reports sent by the runner.
type reportRecorder struct {
	mu      sync.Mutex
	reports []notify.Report
}

func (r *reportRecorder) Send(_ context.Context, rep notify.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

func (r *reportRecorder) all() []notify.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Report(nil), r.reports...)
}

func TestRegistration_FreeWorkshop(t *testing.T) {
	log := &testLog{}
	rec := &reportRecorder{}
	r := runner.New(runnerConfig(), log, rec)

	p := newPage(t)
	res, err := r.Run(t.Context(), p, loadExample(t, "free-workshop"))
	require.NoError(t, err)
	require.True(t, r.Wait())

	assert.Equal(t, status.StateSuccess, res.State, log.String())
	assert.Equal(t, []status.State{status.StateStart, status.StatePageLoaded, status.StateElementResolved,
		status.StateFormFilled, status.StateSubmitted, status.StateSuccess}, res.Trail)
	assert.Equal(t, []string{"name", "email", "phone", "college"}, res.Fill.Filled)
	assert.GreaterOrEqual(t, res.Outcome.Elapsed, 250*time.Millisecond, "matched only once the result rendered")
	assert.Contains(t, res.Outcome.Evidence, "Registration successful for QA Student")
	result := resultText(t, p)
	assert.Contains(t, result, "Registration successful for QA Student", "evidence comes from #result")
	require.Len(t, res.Resolutions, 3)
	assert.Equal(t, 1, res.Resolutions[0].Candidate.Index, "Go Basics card")
	assert.Equal(t, 1, res.Resolutions[0].Level)
	assert.Empty(t, rec.all(), "passed runs are not reported")
}

func TestRegistration_FreeWorkshopValidationFails(t *testing.T) {
	log := &testLog{}
	rec := &reportRecorder{}
	r := runner.New(runnerConfig(), log, rec)

	sc := loadExample(t, "free-workshop")
	sc.Name, sc.URL, sc.Steps = "incomplete", site.URL+"/register/free", nil
	sc.Fields = sc.Fields[:2] // name and email, phone and college left empty
	res, err := r.Run(t.Context(), newPage(t), sc)
	require.NoError(t, err)
	require.True(t, r.Wait())

	assert.Equal(t, status.StateFailure, res.State, log.String())
	assert.Equal(t, status.OutcomeFailure, res.Outcome.Kind)
	assert.Contains(t, res.Outcome.Evidence, "All fields are required")
	require.Len(t, rec.all(), 1)
}

// resultText reads the rendered text of the fixture's #result block.
func resultText(t *testing.T, p *page.Playwright) string {
	t.Helper()
	els, err := p.Query(t.Context(), "#result")
	require.NoError(t, err)
	require.Len(t, els, 1)
	text, err := els[0].VisibleText(t.Context())
	require.NoError(t, err)
	return text
}

func TestRegistration_PaidWorkshop(t *testing.T) {
	log := &testLog{}
	r := runner.New(runnerConfig(), log, nil)

	res, err := r.Run(t.Context(), newPage(t), loadExample(t, "paid-workshop"))
	require.NoError(t, err)
	assert.Equal(t, status.StatePaymentPending, res.State, log.String())
	assert.Equal(t, status.OutcomePaymentPending, res.Outcome.Kind)
}

func TestRegistration_Listing(t *testing.T) {
	r := runner.New(runnerConfig(), &testLog{}, nil)
	res, err := r.Run(t.Context(), newPage(t), loadExample(t, "listing"))
	require.NoError(t, err)
	assert.Equal(t, status.StateSuccess, res.State)
	assert.Equal(t, "category-only[workshop]", res.Resolutions[0].Criterion)
}

func TestRegistration_ClosedIsReportedWithScreenshot(t *testing.T) {
	log := &testLog{}
	rec := &reportRecorder{}
	r := runner.New(runnerConfig(), log, rec)

	sc := loadExample(t, "free-workshop")
	sc.Name, sc.URL, sc.Steps, sc.Fields = "closed", site.URL+"/register/closed", nil, sc.Fields[1:2]
	res, err := r.Run(t.Context(), newPage(t), sc)
	require.NoError(t, err)
	require.True(t, r.Wait())

	assert.Equal(t, status.StateFailure, res.State)
	reports := rec.all()
	require.Len(t, reports, 1)
	rep := reports[0]
	assert.Equal(t, "closed", rep.Scenario)
	assert.Equal(t, string(status.StateFailure), rep.Outcome)
	assert.Contains(t, rep.Evidence, "Registration closed for Chennai")
	assert.Equal(t, "e2e", rep.Revision)
	require.Greater(t, len(rep.Screenshot), 8)
	assert.True(t, bytes.HasPrefix(rep.Screenshot, []byte("\x89PNG")), "png screenshot")
}

func TestRegistration_MissingCardAborts(t *testing.T) {
	rec := &reportRecorder{}
	cfg := runnerConfig()
	cfg.EnumerateTimeout = 300 * time.Millisecond
	r := runner.New(cfg, &testLog{}, rec)

	sc := loadExample(t, "free-workshop")
	sc.URL = site.URL + "/empty"
	res, err := r.Run(t.Context(), newPage(t), sc)
	require.Error(t, err)
	require.True(t, r.Wait())
	assert.Equal(t, status.StateAborted, res.State)
	require.Len(t, rec.all(), 1)
	assert.Equal(t, string(status.StateAborted), rec.all()[0].Outcome)
}

func TestCLI_RunsExampleScenarios(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	logs := t.TempDir()

	cmd := exec.CommandContext(t.Context(), binaryPath, "--dir", filepath.Join(filepath.Dir(cwd), "scenarios"),
		"--base-url", site.URL, "--logs", logs, "--config", t.TempDir(), "--no-notify", "--no-assist", "--no-color")
	cmd.Dir = t.TempDir() // no local .regcheck
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	assert.Regexp(t, regexp.MustCompile(`PASS\s+free-workshop\s+success`), string(out))
	assert.Regexp(t, regexp.MustCompile(`PASS\s+paid-workshop\s+payment-pending`), string(out))
	assert.Regexp(t, regexp.MustCompile(`PASS\s+listing\s+success`), string(out))
	assert.Contains(t, string(out), "3 scenario(s), 3 passed, 0 failed")
	for _, name := range []string{"free-workshop", "paid-workshop", "listing"} {
		assert.FileExists(t, filepath.Join(logs, "progress-"+name+".txt"))
	}
}

func TestCLI_FailureExitCode(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	cmd := exec.CommandContext(t.Context(), binaryPath, "--dir", filepath.Join(filepath.Dir(cwd), "scenarios"),
		"--base-url", site.URL+"/nowhere", "--logs", t.TempDir(), "--config", t.TempDir(), "--no-notify",
		"--no-assist", "--no-color", "listing")
	cmd.Dir = t.TempDir()
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "expected exit error, got %v\n%s", err, out)
	assert.Equal(t, 1, exitErr.ExitCode(), string(out))
	assert.Contains(t, string(out), "FAIL  listing")
}
