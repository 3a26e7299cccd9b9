package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/regcheck/pkg/notify"
)

func TestMarkdown(t *testing.T) {
	t.Run("with color enabled renders markdown", func(t *testing.T) {
		content := "# Heading\n\nSome **bold** text."
		result, err := Markdown(content, 0, false)
		require.NoError(t, err)
		assert.NotEqual(t, content, result)
		assert.Contains(t, result, "Heading")
		assert.Contains(t, result, "bold")
	})

	t.Run("with noColor returns plain content", func(t *testing.T) {
		content := "# Heading\n\nSome **bold** text."
		result, err := Markdown(content, 40, true)
		require.NoError(t, err)
		assert.Equal(t, content, result)
	})

	t.Run("handles empty content", func(t *testing.T) {
		result, err := Markdown("", 0, false)
		require.NoError(t, err)
		assert.Empty(t, strings.TrimSpace(result))
	})

	t.Run("handles lists", func(t *testing.T) {
		result, err := Markdown("- item 1\n- item 2", 60, false)
		require.NoError(t, err)
		assert.Contains(t, result, "item 1")
		assert.Contains(t, result, "item 2")
	})
}

func TestSummaryMarkdown(t *testing.T) {
	r := notify.Report{Scenario: "paid", Outcome: "failure", Error: "outcome `failure`",
		Evidence: "Payment declined", Summary: "\n- card rejected by gateway\n"}
	assert.Equal(t, "## paid: failure\n\n`outcome 'failure'`\n\n> Payment declined\n\n- card rejected by gateway\n",
		SummaryMarkdown(r))

	assert.Equal(t, "## free: timeout\n\nno signal\n", SummaryMarkdown(notify.Report{Scenario: "free",
		Outcome: "timeout", Summary: "no signal"}))
}

func TestSummary(t *testing.T) {
	r := notify.Report{Scenario: "free", Outcome: "timeout", Summary: "- page never answered"}
	plain, err := Summary(r, 0, true)
	require.NoError(t, err)
	assert.Equal(t, SummaryMarkdown(r), plain)

	rendered, err := Summary(r, 0, false)
	require.NoError(t, err)
	assert.Contains(t, rendered, "page never answered")
}
