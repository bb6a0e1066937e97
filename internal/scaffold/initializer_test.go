package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/easel/internal/config"
	"github.com/dyluth/easel/internal/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	t.Run("creates config and demo script", func(t *testing.T) {
		dir := t.TempDir()

		created, err := Initialize(dir, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"easel.yml", filepath.Join("scripts", "demo.yml")}, created)

		cfg, err := config.Load(filepath.Join(dir, "easel.yml"), false)
		require.NoError(t, err)
		assert.Equal(t, "default", cfg.Board)
		assert.Equal(t, 200, cfg.History.Limit)
		assert.NotEmpty(t, cfg.User.UserID, "an empty user id is generated")

		s, err := script.Load(filepath.Join(dir, "scripts", "demo.yml"))
		require.NoError(t, err)
		assert.Equal(t, "demo", s.Name)
		assert.NotEmpty(t, s.Steps)
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "easel.yml"), []byte("board: mine\n"), 0644))

		_, err := Initialize(dir, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "easel.yml exists")

		content, err := os.ReadFile(filepath.Join(dir, "easel.yml"))
		require.NoError(t, err)
		assert.Equal(t, "board: mine\n", string(content), "existing file is untouched")
	})

	t.Run("force overwrites", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "easel.yml"), []byte("board: mine\n"), 0644))

		_, err := Initialize(dir, true)
		require.NoError(t, err)

		content, err := os.ReadFile(filepath.Join(dir, "easel.yml"))
		require.NoError(t, err)
		assert.Contains(t, string(content), `version: "1.0"`)
	})
}

func TestGetTemplateFiles(t *testing.T) {
	files, err := getTemplateFiles()
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.NotEmpty(t, f.Content, f.Path)
		assert.Equal(t, os.FileMode(0644), f.Permissions)
	}
}

func TestValidateCreatedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ScriptsDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "easel.yml"), []byte("version: \"2.0\"\n"), 0644))

	err := validateCreatedFiles(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created easel.yml is invalid")
}
