package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const embeddedConfig = "defaults/config"

// readLayer returns the content of one config layer. An empty path or a missing file
// is an absent layer, nil without error.
func readLayer(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return data, nil
}

// loadLayered parses embedded defaults, then global, then local config, each merged over
// the previous one. Absent layers are skipped.
func loadLayered[T any](fsys embed.FS, localPath, globalPath string, parse func([]byte) (T, error),
	merge func(dst, src *T)) (T, error) {
	var zero T

	data, err := fsys.ReadFile(embeddedConfig)
	if err != nil {
		return zero, fmt.Errorf("parse embedded defaults: read: %w", err)
	}
	result, err := parse(data)
	if err != nil {
		return zero, fmt.Errorf("parse embedded defaults: %w", err)
	}

	for _, layer := range []struct{ name, path string }{{"global", globalPath}, {"local", localPath}} {
		data, err := readLayer(layer.path)
		if err != nil {
			return zero, fmt.Errorf("parse %s config: %w", layer.name, err)
		}
		if data == nil {
			continue
		}
		v, err := parse(data)
		if err != nil {
			return zero, fmt.Errorf("parse %s config: %w", layer.name, err)
		}
		merge(&result, &v)
	}
	return result, nil
}
