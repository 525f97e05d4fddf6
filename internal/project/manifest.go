package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestVersion is written into every manifest.
const ManifestVersion = "1.0.0"

// Manifest records one merge run: the effective configuration, the panel
// it produced and the files written.
type Manifest struct {
	Version   string   `json:"version"`
	CreatedAt string   `json:"created_at"`
	PanelID   string   `json:"panel_id"`
	Config    Config   `json:"config"`
	Files     []string `json:"files"`
	Warnings  []string `json:"warnings,omitempty"`
}

// NewManifest returns a manifest stamped with the current time.
func NewManifest(panelID string, cfg Config, files, warnings []string) Manifest {
	return Manifest{
		Version:   ManifestVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		PanelID:   panelID,
		Config:    cfg,
		Files:     files,
		Warnings:  warnings,
	}
}

// WriteManifest stores m as indented JSON at path.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version == "" {
		return Manifest{}, fmt.Errorf("invalid manifest: missing version field")
	}
	if m.Files == nil {
		m.Files = []string{}
	}
	return m, nil
}
