package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type defaultsInstaller struct {
	embedFS embed.FS
}

func newDefaultsInstaller(embedFS embed.FS) *defaultsInstaller {
	return &defaultsInstaller{embedFS: embedFS}
}

// Install mirrors the embedded defaults tree (config, prompts/*.txt) into configDir.
// Files already present are left alone, so user edits survive upgrades.
func (d *defaultsInstaller) Install(configDir string) error {
	const root = "defaults"
	return fs.WalkDir(d.embedFS, root, func(name string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(name, root), "/")
		dest := filepath.Join(configDir, filepath.FromSlash(rel))
		if e.IsDir() {
			if err := os.MkdirAll(dest, 0o700); err != nil {
				return fmt.Errorf("create %s: %w", dest, err)
			}
			return nil
		}

		if _, err := os.Stat(dest); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("check %s: %w", dest, err)
		}
		data, err := d.embedFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read embedded %s: %w", name, err)
		}
		if err := os.WriteFile(dest, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		return nil
	})
}
