package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
)

// ensureOutDir creates dir (and chip8rt/ beneath it) if missing, mirroring
// cmd/bbcdisasm's extract command's output-directory handling.
func ensureOutDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(dir, "chip8rt"), 0o755); err != nil {
		return errors.Wrapf(err, "creating output directory %s", dir)
	}
	return nil
}

func writeFile(dir, name, content string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func exitErr(err error) error {
	return cli.Exit(err.Error(), 1)
}
