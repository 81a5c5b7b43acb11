// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterserver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// PhotoStore persists uploaded meter photos on the server filesystem.
// Saving the same file name twice overwrites the previous bytes, so a
// client retrying an upload after a timeout never creates duplicates.
type PhotoStore struct {
	dir    string
	logger *slog.Logger
}

// NewPhotoStore creates a photo store rooted at dir, creating it if needed
func NewPhotoStore(dir string, logger *slog.Logger) (*PhotoStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &PhotoStore{dir: dir, logger: logger}, nil
}

// Dir returns the uploads directory
func (p *PhotoStore) Dir() string {
	return p.dir
}

// Save writes the photo bytes under fileName and returns the stored name.
// The name is reduced to its base component so a crafted request cannot
// escape the uploads directory.
func (p *PhotoStore) Save(fileName string, data []byte) (string, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid photo file name %q", fileName)
	}

	target := filepath.Join(p.dir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write photo %s: %w", name, err)
	}

	p.logger.Debug("Photo stored", "file", name, "bytes", len(data))
	return name, nil
}

// Path resolves a stored photo name to its on-disk location, applying
// the same base-name reduction as Save so a crafted name cannot read
// outside the uploads directory.
func (p *PhotoStore) Path(fileName string) (string, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid photo file name %q", fileName)
	}
	return filepath.Join(p.dir, name), nil
}
