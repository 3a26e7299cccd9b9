package assist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Tesseract recognizes text with the tesseract CLI.
type Tesseract struct {
	Command string // executable, "tesseract" if empty
	Runner  CommandRunner
}

// ReadText writes png to a temp file and runs "tesseract <file> stdout".
func (t *Tesseract) ReadText(ctx context.Context, png []byte) (string, error) {
	if len(png) == 0 {
		return "", errors.New("empty image")
	}
	f, err := os.CreateTemp("", "regcheck-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(png); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp image: %w", err)
	}

	command := t.Command
	if command == "" {
		command = "tesseract"
	}
	runner := t.Runner
	if runner == nil {
		runner = &execCommandRunner{}
	}
	stdout, wait, err := runner.Run(ctx, command, f.Name(), "stdout")
	if err != nil {
		return "", err
	}
	data, readErr := io.ReadAll(stdout)
	if err := wait(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%s: %w, output: %s", command, err, strings.TrimSpace(string(data)))
	}
	if readErr != nil {
		return "", fmt.Errorf("read %s output: %w", command, readErr)
	}
	return cleanOCR(string(data)), nil
}

// cleanOCR drops blank lines and trailing spaces tesseract leaves around text blocks.
func cleanOCR(s string) string {
	var lines []string
	for line := range strings.SplitSeq(s, "\n") {
		if line = strings.TrimRight(line, " \t\r\f"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
