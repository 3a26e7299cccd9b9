// Package render formats failure summaries for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/umputun/regcheck/pkg/notify"
)

// DefaultWidth is the word wrap width when none is given.
const DefaultWidth = 80

// Markdown renders markdown for terminal display, wrapped at width.
// With noColor the content is returned unchanged.
func Markdown(content string, width int, noColor bool) (string, error) {
	if noColor {
		return content, nil
	}
	if width <= 0 {
		width = DefaultWidth
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	result, err := renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return result, nil
}

// SummaryMarkdown builds the markdown document shown for an enriched report:
// a heading with scenario and outcome, the error, then the assistant's summary.
func SummaryMarkdown(r notify.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s: %s\n\n", r.Scenario, r.Outcome)
	if r.Error != "" {
		fmt.Fprintf(&b, "`%s`\n\n", strings.ReplaceAll(r.Error, "`", "'"))
	}
	if r.Evidence != "" {
		fmt.Fprintf(&b, "> %s\n\n", r.Evidence)
	}
	b.WriteString(strings.TrimSpace(r.Summary))
	b.WriteString("\n")
	return b.String()
}

// Summary renders SummaryMarkdown(r) for the terminal.
func Summary(r notify.Report, width int, noColor bool) (string, error) {
	return Markdown(SummaryMarkdown(r), width, noColor)
}
