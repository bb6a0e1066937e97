// Package scaffold writes a starter easel.yml and a demo gesture script for
// `easel init`.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/easel/internal/config"
	"github.com/dyluth/easel/internal/script"
)

//go:embed templates/*
var templatesFS embed.FS

// ScriptsDir holds example gesture scripts.
const ScriptsDir = "scripts"

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes the starter files into dir and returns their paths
// relative to dir. Existing files make it fail unless force is set, in which
// case they are overwritten.
func Initialize(dir string, force bool) ([]string, error) {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return nil, err
		}
	}

	files, err := getTemplateFiles()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Join(dir, ScriptsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", ScriptsDir, err)
	}

	if err := writeFiles(dir, files); err != nil {
		return nil, err
	}

	if err := validateCreatedFiles(dir); err != nil {
		return nil, err
	}

	created := make([]string, 0, len(files))
	for _, f := range files {
		created = append(created, f.Path)
	}
	return created, nil
}

// getTemplateFiles reads the embedded templates
func getTemplateFiles() ([]FileInfo, error) {
	templates := []struct {
		name string
		path string
	}{
		{"easel.yml.tmpl", config.DefaultPath},
		{"demo.yml.tmpl", filepath.Join(ScriptsDir, "demo.yml")},
	}

	files := make([]FileInfo, 0, len(templates))
	for _, t := range templates {
		content, err := templatesFS.ReadFile("templates/" + t.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", t.name, err)
		}
		files = append(files, FileInfo{Path: t.path, Content: content, Permissions: 0644})
	}
	return files, nil
}

// writeFiles writes all template files under dir
func writeFiles(dir string, files []FileInfo) error {
	for _, file := range files {
		path := filepath.Join(dir, file.Path)
		if err := os.WriteFile(path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}
	return nil
}

// validateCreatedFiles loads what was written the same way the CLI will.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, config.DefaultPath), false); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}
	demo := filepath.Join(ScriptsDir, "demo.yml")
	if _, err := script.Load(filepath.Join(dir, demo)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", demo, err)
	}
	return nil
}
