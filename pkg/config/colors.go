package config

import (
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// ColorConfig holds RGB color values ("r,g,b") for console output.
type ColorConfig struct {
	Step      string // in-flight run states
	Success   string
	Pending   string // payment-pending outcome
	Failure   string
	Timeout   string
	Warn      string
	Error     string
	Timestamp string
	Info      string
}

// fields pairs config keys with the fields they set.
func (c *ColorConfig) fields() []struct {
	key string
	val *string
} {
	return []struct {
		key string
		val *string
	}{
		{"color_step", &c.Step}, {"color_success", &c.Success}, {"color_pending", &c.Pending},
		{"color_failure", &c.Failure}, {"color_timeout", &c.Timeout}, {"color_warn", &c.Warn},
		{"color_error", &c.Error}, {"color_timestamp", &c.Timestamp}, {"color_info", &c.Info},
	}
}

// mergeFrom copies the colors set in src.
func (c *ColorConfig) mergeFrom(src *ColorConfig) {
	dst, from := c.fields(), src.fields()
	for i := range dst {
		if *from[i].val != "" {
			*dst[i].val = *from[i].val
		}
	}
}

type colorLoader struct {
	embedFS embed.FS
}

func newColorLoader(embedFS embed.FS) *colorLoader {
	return &colorLoader{embedFS: embedFS}
}

// Load merges color_* keys of embedded defaults, global and local config, local wins.
func (cl *colorLoader) Load(localConfigPath, globalConfigPath string) (ColorConfig, error) {
	return loadLayered(cl.embedFS, localConfigPath, globalConfigPath, parseColors, (*ColorConfig).mergeFrom)
}

// parseColors reads "#rrggbb" values and converts them to "r,g,b".
func parseColors(data []byte) (ColorConfig, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return ColorConfig{}, fmt.Errorf("parse config: %w", err)
	}
	section := cfg.Section("")

	var colors ColorConfig
	for _, f := range colors.fields() {
		hex := strings.TrimSpace(section.Key(f.key).String())
		if hex == "" {
			continue
		}
		r, g, b, err := parseHexColor(hex)
		if err != nil {
			return ColorConfig{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.val = fmt.Sprintf("%d,%d,%d", r, g, b)
	}
	return colors, nil
}

// parseHexColor splits "#rrggbb" into its components.
func parseHexColor(hex string) (r, g, b int, err error) {
	digits, ok := strings.CutPrefix(hex, "#")
	if !ok || len(digits) != 6 {
		return 0, 0, 0, errors.New("expected #rrggbb")
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return int(v >> 16), int(v >> 8 & 0xff), int(v & 0xff), nil
}
