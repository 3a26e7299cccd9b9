// Package main provides regcheck, a browser check of workshop registration flows.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/regcheck/pkg/assist"
	"github.com/umputun/regcheck/pkg/config"
	"github.com/umputun/regcheck/pkg/git"
	"github.com/umputun/regcheck/pkg/notify"
	"github.com/umputun/regcheck/pkg/progress"
	"github.com/umputun/regcheck/pkg/render"
	"github.com/umputun/regcheck/pkg/runner"
	"github.com/umputun/regcheck/pkg/scenario"
	"github.com/umputun/regcheck/pkg/status"
	"github.com/umputun/regcheck/pkg/watch"
)

// opts holds all command-line options.
type opts struct {
	ConfigDir string `long:"config" env:"REGCHECK_CONFIG" description:"global config directory (default ~/.config/regcheck)"`
	Dir       string `short:"d" long:"dir" description:"scenarios directory, overrides scenarios_dir"`
	BaseURL   string `short:"u" long:"base-url" description:"target site, overrides base_url"`
	Browser   string `short:"b" long:"browser" choice:"chromium" choice:"firefox" choice:"webkit" description:"browser engine"`
	Headed    bool   `long:"headed" description:"show the browser window"`
	SlowMo    int    `long:"slow-mo" description:"delay between browser operations, ms"`
	EnvFile   string `short:"e" long:"env" description:"vars file, default <dir>/.env"`
	Logs      string `short:"l" long:"logs" default:"logs" description:"directory for progress files"`
	Watch     bool   `short:"w" long:"watch" description:"re-run scenarios when their files change"`
	Install   bool   `long:"install" description:"install the configured browser and exit"`
	NoNotify  bool   `long:"no-notify" description:"don't send failure notifications"`
	NoAssist  bool   `long:"no-assist" description:"don't summarize failures"`
	NoColor   bool   `long:"no-color" description:"disable color output"`
	Version   bool   `short:"v" long:"version" description:"print version and exit"`

	Args struct {
		Scenarios []string `positional-arg-name:"scenario" description:"scenario names, all if omitted"`
	} `positional-args:"yes"`
}

var revision = "unknown"

// errFailed reports a completed run with failed scenarios, as opposed to a setup error.
var errFailed = errors.New("scenarios failed")

func main() {
	fmt.Printf("regcheck %s\n", revision)

	var o opts
	parser := flags.NewParser(&o, flags.Default)
	parser.Usage = "[OPTIONS] [scenario...]"
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if o.Version {
		os.Exit(0)
	}

	restore := disableCtrlCEcho()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, o)
	cancel()
	restore()
	os.Exit(exitCode(err))
}

// exitCode maps run errors: 0 all passed, 1 some scenario failed, 2 setup error.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailed):
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
}

func run(ctx context.Context, o opts) error {
	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(cfg, o)
	if o.NoColor {
		color.NoColor = true
	}
	colors := progress.NewColors(cfg.Colors)
	console := &consoleLogger{colors: colors, out: os.Stdout}

	if o.Install {
		if err := installBrowser(cfg.Browser); err != nil {
			return err
		}
		colors.Info().Printf("installed %s\n", cfg.Browser)
		return nil
	}

	loader := &scenario.Loader{Defaults: map[string]string{"BASE_URL": cfg.BaseURL}, DotEnv: envFile(o, cfg.ScenariosDir)}
	all, err := loader.LoadDir(cfg.ScenariosDir)
	if err != nil {
		return fmt.Errorf("load scenarios: %w", err)
	}
	scenarios, err := selectScenarios(all, o.Args.Scenarios)
	if err != nil {
		return err
	}

	rev, err := git.Open(cfg.ScenariosDir)
	if err != nil {
		console.Print("[WARN] no suite revision: %v", err)
	}

	notifier, err := notify.New(cfg.NotifyParams(), console)
	if err != nil {
		return fmt.Errorf("init notifications: %w", err)
	}
	if o.NoNotify {
		notifier = nil
	}

	session, err := startBrowser(browserConfig{
		Engine:   cfg.Browser,
		Headless: cfg.Headless,
		SlowMo:   config.Duration(cfg.SlowMoMs),
		Timeout:  config.Duration(cfg.ActionTimeoutMs),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			console.Print("[WARN] close browser: %v", err)
		}
	}()

	s := &suite{
		values:   cfg.Values,
		prompt:   cfg.Prompts.Summary,
		colors:   colors,
		revision: rev.String(),
		logsDir:  o.Logs,
		noColor:  o.NoColor,
		session:  session,
		notifier: notifier,
		console:  console,
		out:      os.Stdout,
	}
	if cfg.AssistEnabled {
		s.summarizer, s.ocr = assistants(cfg.Values, os.Getenv, exec.LookPath, console)
	}

	colors.Info().Printf("running %d scenario(s) from %s against %s\n", len(scenarios), cfg.ScenariosDir, cfg.BaseURL)
	if s.revision != "" {
		colors.Info().Printf("suite revision %s\n", s.revision)
	}
	results := s.runAll(ctx, scenarios)
	failed := printSummary(s.out, colors, results)

	if !o.Watch {
		if failed > 0 {
			return fmt.Errorf("%d of %d: %w", failed, len(results), errFailed)
		}
		return nil
	}

	colors.Info().Printf("watching %s for changes, ctrl+c to stop\n", cfg.ScenariosDir)
	w := &watch.Watcher{Dir: cfg.ScenariosDir, Log: console}
	return w.Run(ctx, func(ctx context.Context, files []string) {
		changed, err := changedScenarios(loader, cfg.ScenariosDir, files, o.Args.Scenarios)
		if err != nil {
			console.Print("[WARN] reload scenarios: %v", err)
			return
		}
		if len(changed) == 0 {
			return
		}
		printSummary(s.out, colors, s.runAll(ctx, changed))
	})
}

// applyOverrides applies command-line values on top of the loaded config.
func applyOverrides(cfg *config.Config, o opts) {
	if o.Dir != "" {
		cfg.ScenariosDir = o.Dir
	}
	if o.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(o.BaseURL, "/")
	}
	if o.Browser != "" {
		cfg.Browser = o.Browser
	}
	if o.Headed {
		cfg.Headless = false
	}
	if o.SlowMo > 0 {
		cfg.SlowMoMs = o.SlowMo
	}
	if o.NoAssist {
		cfg.AssistEnabled = false
	}
}

func envFile(o opts, dir string) string {
	if o.EnvFile != "" {
		return o.EnvFile
	}
	return filepath.Join(dir, ".env")
}

// selectScenarios keeps scenarios named in names, in the given order. Empty names keep all.
func selectScenarios(all []runner.Scenario, names []string) ([]runner.Scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	res := make([]runner.Scenario, 0, len(names))
	for _, name := range names {
		idx := slices.IndexFunc(all, func(sc runner.Scenario) bool { return sc.Name == name })
		if idx < 0 {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		res = append(res, all[idx])
	}
	return res, nil
}

// changedScenarios reloads scenarios affected by changed files. A changed vars file
// affects every scenario, removed files are skipped.
func changedScenarios(loader *scenario.Loader, dir string, files, names []string) ([]runner.Scenario, error) {
	var res []runner.Scenario
	for _, f := range files {
		if filepath.Base(f) == ".env" {
			all, err := loader.LoadDir(dir)
			if err != nil {
				return nil, err
			}
			return filterNamed(all, names), nil
		}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		sc, err := loader.LoadFile(f)
		if err != nil {
			return nil, err
		}
		res = append(res, sc)
	}
	return filterNamed(res, names), nil
}

func filterNamed(scs []runner.Scenario, names []string) []runner.Scenario {
	if len(names) == 0 {
		return scs
	}
	return slices.DeleteFunc(scs, func(sc runner.Scenario) bool { return !slices.Contains(names, sc.Name) })
}

// runnerConfig maps config values to runner settings.
func runnerConfig(v config.Values, rev string) runner.Config {
	return runner.Config{
		EnumerateTimeout: config.Duration(v.EnumerateTimeoutMs),
		PollInterval:     config.Duration(v.PollIntervalMs),
		SettleDelay:      config.Duration(v.SettleDelayMs),
		FieldDelay:       config.Duration(v.FieldDelayMs),
		OutcomeTimeout:   config.Duration(v.OutcomeTimeoutMs),
		ActionTimeout:    config.Duration(v.ActionTimeoutMs),
		ForceFallback:    v.ForceFallback,
		ReportTimeout:    config.Duration(v.ReportTimeoutMs),
		Revision:         rev,
	}
}

// assistants builds the failure summarizer and the screenshot reader. A missing
// executable or api key disables that part with a warning, the run goes on without it.
func assistants(v config.Values, getenv func(string) string, lookPath func(string) (string, error),
	log *consoleLogger) (assist.Summarizer, assist.TextReader) {
	var summarizer assist.Summarizer
	switch v.AssistProvider {
	case "openai":
		if key := getenv("OPENAI_API_KEY"); key != "" {
			summarizer = assist.NewOpenAI(key, v.OpenAIBaseURL, v.OpenAIModel)
		} else {
			log.Print("[WARN] OPENAI_API_KEY is not set, failure summaries disabled")
		}
	default:
		if _, err := lookPath(v.ClaudeCommand); err == nil {
			summarizer = &assist.Claude{Command: v.ClaudeCommand, Args: strings.Fields(v.ClaudeArgs)}
		} else {
			log.Print("[WARN] %s not found, failure summaries disabled", v.ClaudeCommand)
		}
	}

	var ocr assist.TextReader
	if v.OCRCommand != "" {
		if _, err := lookPath(v.OCRCommand); err == nil {
			ocr = &assist.Tesseract{Command: v.OCRCommand}
		} else {
			log.Print("[WARN] %s not found, screenshot text disabled", v.OCRCommand)
		}
	}
	return summarizer, ocr
}

// suite runs scenarios one by one, each with its own progress log and browser context.
type suite struct {
	values     config.Values
	prompt     string
	colors     *progress.Colors
	revision   string
	logsDir    string
	noColor    bool
	session    browserSession
	notifier   *notify.Service
	summarizer assist.Summarizer
	ocr        assist.TextReader
	console    *consoleLogger
	out        io.Writer
}

func (s *suite) runAll(ctx context.Context, scenarios []runner.Scenario) []runner.Result {
	res := make([]runner.Result, 0, len(scenarios))
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			res = append(res, runner.Result{Scenario: sc.Name, State: status.StateAborted, Err: ctx.Err()})
			continue
		}
		res = append(res, s.runOne(ctx, sc))
	}
	return res
}

func (s *suite) runOne(ctx context.Context, sc runner.Scenario) runner.Result {
	aborted := func(err error) runner.Result {
		s.console.Print("[WARN] %s: %v", sc.Name, err)
		return runner.Result{Scenario: sc.Name, State: status.StateAborted, Err: err}
	}

	plog, err := progress.NewLogger(progress.Config{Scenario: sc.Name, URL: sc.URL, Revision: s.revision,
		Dir: s.logsDir, NoColor: s.noColor, Colors: s.colors})
	if err != nil {
		return aborted(err)
	}
	defer func() {
		if err := plog.Close(); err != nil {
			s.console.Print("[WARN] %v", err)
		}
	}()

	p, closePage, err := s.session.NewPage(ctx)
	if err != nil {
		return aborted(err)
	}

	r := runner.New(runnerConfig(s.values, s.revision), plog, s.reporter(plog))
	res, _ := r.Run(ctx, p, sc) // the run error is kept in res.Err
	closePage()
	r.Wait()
	plog.Print("progress log: %s", plog.Path())
	return res
}

// reporter assembles the failure reporting chain for one run: the optional assistant
// in front of the notifier. Returns nil when nothing would be reported.
func (s *suite) reporter(plog *progress.Logger) runner.Reporter {
	hasAssist := s.summarizer != nil || s.ocr != nil
	if s.notifier == nil && !hasAssist {
		return nil
	}
	if !hasAssist {
		return s.notifier
	}
	rep := &assist.Reporter{
		Summarizer: s.summarizer,
		OCR:        s.ocr,
		Prompt:     s.prompt,
		Log:        plog,
		OnSummary: func(r notify.Report) {
			text, err := render.Summary(r, render.DefaultWidth, s.noColor)
			if err != nil {
				text = render.SummaryMarkdown(r)
			}
			plog.PrintAligned(text)
		},
	}
	if s.notifier != nil {
		rep.Next = s.notifier
	}
	return rep
}

// printSummary writes one line per result and returns the number of failed scenarios.
func printSummary(w io.Writer, colors *progress.Colors, results []runner.Result) int {
	failed := 0
	fmt.Fprintln(w)
	for _, r := range results {
		mark := "PASS"
		if !r.State.Passed() {
			mark = "FAIL"
			failed++
		}
		line := fmt.Sprintf("%s  %-30s %-16s %s", mark, r.Scenario, r.State, r.Duration.Round(time.Millisecond))
		if r.Err != nil {
			line += "  " + r.Err.Error()
		}
		colors.State(r.State).Fprintln(w, line)
	}
	colors.Info().Fprintf(w, "%d scenario(s), %d passed, %d failed\n", len(results), len(results)-failed, failed)
	return failed
}

// consoleLogger prints suite-level messages that don't belong to a single run.
type consoleLogger struct {
	colors *progress.Colors
	out    io.Writer
}

func (c *consoleLogger) Print(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if strings.HasPrefix(msg, "[WARN]") {
		c.colors.Warn().Fprintln(c.out, msg)
		return
	}
	c.colors.Info().Fprintln(c.out, msg)
}
