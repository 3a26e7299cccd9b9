package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

const summaryPromptFile = "summary.txt"

// Prompts holds prompt templates for the failure assistant, each overridable by a .txt
// file in the local or global prompts directory.
type Prompts struct {
	Summary string // failure summary; {{SCENARIO}}, {{URL}}, {{OUTCOME}}, {{ERROR}}, {{EVIDENCE}}, {{PAGE_TEXT}}
}

type promptLoader struct {
	embedFS embed.FS
}

func newPromptLoader(embedFS embed.FS) *promptLoader {
	return &promptLoader{embedFS: embedFS}
}

// Load reads every prompt, local dir first, then global, then embedded. An empty
// localDir skips the local lookup.
func (p *promptLoader) Load(localDir, globalDir string) (Prompts, error) {
	summary, err := p.prompt(summaryPromptFile, localDir, globalDir)
	if err != nil {
		return Prompts{}, fmt.Errorf("load summary prompt: %w", err)
	}
	return Prompts{Summary: summary}, nil
}

// prompt returns the first non-empty version of name found in dirs, falling back to the
// embedded default. Comment lines don't count as content.
func (p *promptLoader) prompt(name string, dirs ...string) (string, error) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		data, err := readLayer(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		if text := promptText(data); text != "" {
			return text, nil
		}
	}

	data, err := p.embedFS.ReadFile("defaults/prompts/" + name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read embedded prompt %s: %w", name, err)
	}
	return promptText(data), nil
}

func promptText(data []byte) string {
	return strings.TrimSpace(stripComments(string(data)))
}

// stripComments drops lines starting with # (after indentation). Inline # is content.
func stripComments(content string) string {
	var b strings.Builder
	first := true
	for line := range strings.Lines(strings.ReplaceAll(content, "\r\n", "\n")) {
		line = strings.TrimSuffix(line, "\n")
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		first = false
	}
	return b.String()
}
