package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExisting(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckExisting(dir))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ScriptsDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ScriptsDir, "demo.yml"), []byte("steps: []\n"), 0644))
	err := CheckExisting(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join("scripts", "demo.yml"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "easel.yml"), []byte("{}\n"), 0644))
	err = CheckExisting(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "easel.yml, scripts")
}
