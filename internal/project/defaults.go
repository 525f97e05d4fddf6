package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigDir returns the directory holding the user's defaults.
// On all platforms this is ~/.gerbmerge/
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".gerbmerge")
}

// DefaultDefaultsPath returns the default path of the user defaults file.
func DefaultDefaultsPath() string {
	return filepath.Join(DefaultConfigDir(), "defaults.yaml")
}

// SaveDefaults writes c as the user's defaults. Jobs are not saved.
// It creates any missing parent directories automatically.
func SaveDefaults(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create defaults directory: %w", err)
	}
	c.Jobs = nil
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create defaults file: %w", err)
	}
	if err := Write(f, &c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
