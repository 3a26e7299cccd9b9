package assist

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultClaudeArgs are used when Claude.Args is empty; the prompt is appended last.
var DefaultClaudeArgs = []string{"--print", "--output-format", "stream-json", "--verbose"}

// streamEvent is a JSON event of claude CLI stream output.
type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Result json.RawMessage `json:"result"`
}

// Claude summarizes with the claude CLI in stream-json mode.
type Claude struct {
	Command string   // executable, "claude" if empty
	Args    []string // DefaultClaudeArgs if empty
	Runner  CommandRunner
}

// Summarize runs the CLI with prompt and collects the assistant text.
func (c *Claude) Summarize(ctx context.Context, prompt string) (string, error) {
	command := c.Command
	if command == "" {
		command = "claude"
	}
	args := c.Args
	if len(args) == 0 {
		args = DefaultClaudeArgs
	}
	args = append(append([]string{}, args...), prompt)

	runner := c.Runner
	if runner == nil {
		runner = &execCommandRunner{}
	}

	stdout, wait, err := runner.Run(ctx, command, args...)
	if err != nil {
		return "", err
	}
	out, streamErr := parseStream(stdout)
	if err := wait(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// non-zero exit might still have produced the answer
		if out == "" {
			return "", fmt.Errorf("%s exited with error: %w", command, err)
		}
	}
	if streamErr != nil {
		return out, streamErr
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("empty summary")
	}
	return out, nil
}

// parseStream collects text from claude stream-json output. Non-JSON lines are kept as-is.
// Final "result" events repeat the assistant text and are used only when nothing else came.
func parseStream(r io.Reader) (string, error) {
	var out strings.Builder
	var result string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			out.WriteString(line)
			out.WriteString("\n")
			continue
		}
		switch ev.Type {
		case "assistant":
			for _, c := range ev.Message.Content {
				if c.Type == "text" {
					out.WriteString(c.Text)
				}
			}
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" {
				out.WriteString(ev.Delta.Text)
			}
		case "result":
			result = resultText(ev.Result)
		}
	}
	if err := scanner.Err(); err != nil {
		return out.String(), fmt.Errorf("stream read: %w", err)
	}
	if out.Len() == 0 {
		return result, nil
	}
	return out.String(), nil
}

// resultText handles both {"result":"text"} and {"result":{"output":"text"}}.
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Output
	}
	return ""
}
