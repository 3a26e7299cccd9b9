package main

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/umputun/regcheck/pkg/page"
)

// browserSession hands out isolated pages, one per scenario run.
type browserSession interface {
	NewPage(ctx context.Context) (p page.Page, closePage func(), err error)
	Close() error
}

type browserConfig struct {
	Engine   string // chromium, firefox or webkit
	Headless bool
	SlowMo   time.Duration
	Timeout  time.Duration // navigation and interaction timeout
}

// playwrightSession owns the playwright driver and one browser. Every page lives in its
// own browser context, so cookies and storage never leak between scenarios.
type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	timeout time.Duration
}

func startBrowser(cfg browserConfig) (*playwrightSession, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright (try --install): %w", err)
	}

	bt, err := browserType(pw, cfg.Engine)
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}
	browser, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		SlowMo:   playwright.Float(float64(cfg.SlowMo / time.Millisecond)),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch %s: %w", cfg.Engine, err)
	}
	return &playwrightSession{pw: pw, browser: browser, timeout: cfg.Timeout}, nil
}

func browserType(pw *playwright.Playwright, engine string) (playwright.BrowserType, error) {
	switch engine {
	case "", "chromium":
		return pw.Chromium, nil
	case "firefox":
		return pw.Firefox, nil
	case "webkit":
		return pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unknown browser %q", engine)
	}
}

func (s *playwrightSession) NewPage(ctx context.Context) (page.Page, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	bctx, err := s.browser.NewContext()
	if err != nil {
		return nil, nil, fmt.Errorf("new browser context: %w", err)
	}
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, nil, fmt.Errorf("new page: %w", err)
	}
	return page.NewPlaywright(pg, s.timeout), func() { _ = bctx.Close() }, nil
}

func (s *playwrightSession) Close() error {
	if err := s.browser.Close(); err != nil {
		_ = s.pw.Stop()
		return fmt.Errorf("close browser: %w", err)
	}
	if err := s.pw.Stop(); err != nil {
		return fmt.Errorf("stop playwright: %w", err)
	}
	return nil
}

// installBrowser downloads the playwright driver and the browser engine.
func installBrowser(engine string) error {
	if engine == "" {
		engine = "chromium"
	}
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{engine}}); err != nil {
		return fmt.Errorf("install %s: %w", engine, err)
	}
	return nil
}
