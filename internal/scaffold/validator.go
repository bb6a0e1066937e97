package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/easel/internal/config"
)

// CheckExisting returns an error naming the starter files already in dir.
func CheckExisting(dir string) error {
	var existing []string
	for _, rel := range []string{config.DefaultPath, filepath.Join(ScriptsDir, "demo.yml")} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			existing = append(existing, rel)
		}
	}

	if len(existing) > 0 {
		return fmt.Errorf("already initialized: %s exists (use --force to overwrite)", strings.Join(existing, ", "))
	}
	return nil
}
