package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilePath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"001_init.up.sql", "001_init.down.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "init.up.sql"), 0o700))

	name, err := migrationFilePath(dir, "001_init.up")
	require.NoError(t, err)
	assert.Equal(t, "001_init.up.sql", name)

	name, err = migrationFilePath(dir, "init.down")
	require.NoError(t, err)
	assert.Equal(t, "001_init.down.sql", name)

	_, err = migrationFilePath(dir, "002_missing.up")
	assert.Error(t, err)
}

func TestMigrationsDirectoryResolvesInit(t *testing.T) {
	dir := filepath.Join("..", "..", "internal", "adapters", "repository", "postgres", "migrations")

	name, content, err := migrationFileContent(dir, "001_init.up")
	require.NoError(t, err)
	assert.Equal(t, "001_init.up.sql", name)
	assert.Contains(t, string(content), "CREATE TABLE")
}
