// Package assist enriches failure reports before they are sent: OCR text of the page
// screenshot and an LLM summary of what most likely went wrong. Summaries come from the
// claude CLI or an OpenAI-compatible API, OCR from the tesseract CLI.
package assist

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

//go:generate moq -out mocks/command_runner.go -pkg mocks -skip-ensure -fmt goimports . CommandRunner
//go:generate moq -out mocks/summarizer.go -pkg mocks -skip-ensure -fmt goimports . Summarizer
//go:generate moq -out mocks/text_reader.go -pkg mocks -skip-ensure -fmt goimports . TextReader

// Summarizer turns a prompt into a short markdown answer.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// TextReader recognizes text on a PNG image.
type TextReader interface {
	ReadText(ctx context.Context, png []byte) (string, error)
}

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout io.Reader, wait func() error, err error)
}

// execCommandRunner runs commands in their own process group, killed with ctx.
type execCommandRunner struct{}

func (r *execCommandRunner) Run(ctx context.Context, name string, args ...string) (io.Reader, func() error, error) {
	cmd := exec.Command(name, args...) //nolint:gosec // command comes from config
	// claude CLI uses its own auth, an API key in env would override it
	cmd.Env = filterEnv(os.Environ(), "ANTHROPIC_API_KEY")
	setupProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start %s: %w", name, err)
	}
	pg := newProcessGroupCleanup(cmd, ctx.Done())
	return stdout, pg.Wait, nil
}

// filterEnv returns a copy of env with the given keys removed.
func filterEnv(env []string, keys ...string) []string {
	res := make([]string, 0, len(env))
	for _, e := range env {
		skip := false
		for _, key := range keys {
			if strings.HasPrefix(e, key+"=") {
				skip = true
				break
			}
		}
		if !skip {
			res = append(res, e)
		}
	}
	return res
}
