package assist

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/umputun/regcheck/pkg/notify"
)

//go:generate moq -out mocks/sender.go -pkg mocks -skip-ensure -fmt goimports . Sender

// maxPageText caps the OCR text passed to the prompt and kept in the report.
const maxPageText = 4000

// Sender delivers a report, notify.Service satisfies it.
type Sender interface {
	Send(ctx context.Context, r notify.Report)
}

// Logger is used for best-effort warnings.
type Logger interface {
	Print(format string, args ...any)
}

// Reporter fills PageText and Summary of a report and passes it to Next.
// Both steps are best effort: failures are logged and the report is sent anyway.
type Reporter struct {
	Next       Sender
	Summarizer Summarizer            // nil skips the summary
	OCR        TextReader            // nil skips text recognition
	Prompt     string                // template with {{SCENARIO}}, {{URL}}, {{OUTCOME}}, {{ERROR}}, {{EVIDENCE}}, {{PAGE_TEXT}}
	Log        Logger                // nil discards warnings
	OnSummary  func(r notify.Report) // called with the enriched report before sending, can be nil
}

// Send enriches r and forwards it.
func (a *Reporter) Send(ctx context.Context, r notify.Report) {
	if a.OCR != nil && len(r.Screenshot) > 0 && r.PageText == "" {
		text, err := a.OCR.ReadText(ctx, r.Screenshot)
		switch {
		case err != nil:
			a.warn("ocr for %s failed: %v", r.Scenario, err)
		default:
			r.PageText = truncate(text, maxPageText)
		}
	}

	if a.Summarizer != nil && a.Prompt != "" && r.Summary == "" {
		summary, err := a.Summarizer.Summarize(ctx, BuildPrompt(a.Prompt, r))
		if err != nil {
			a.warn("summary for %s failed: %v", r.Scenario, err)
		} else {
			r.Summary = summary
		}
	}

	if a.OnSummary != nil && r.Summary != "" {
		a.OnSummary(r)
	}
	if a.Next != nil {
		a.Next.Send(ctx, r)
	}
}

func (a *Reporter) warn(format string, args ...any) {
	if a.Log != nil {
		a.Log.Print("[WARN] "+format, args...)
	}
}

// BuildPrompt substitutes report fields into tmpl. Missing values read as "(none)".
func BuildPrompt(tmpl string, r notify.Report) string {
	or := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "(none)"
		}
		return s
	}
	return strings.NewReplacer(
		"{{SCENARIO}}", or(r.Scenario),
		"{{URL}}", or(r.URL),
		"{{OUTCOME}}", or(r.Outcome),
		"{{ERROR}}", or(r.Error),
		"{{EVIDENCE}}", or(r.Evidence),
		"{{PAGE_TEXT}}", or(truncate(r.PageText, maxPageText)),
	).Replace(tmpl)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
