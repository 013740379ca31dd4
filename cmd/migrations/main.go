package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/tessera/internal/config"
)

func main() {
	dir := flag.String("dir", filepath.Join(".", "internal", "adapters", "repository", "postgres", "migrations"), "Migrations directory")
	flag.Parse()

	if flag.NArg() < 1 {
		slog.Error("a migration name is required, e.g. 001_init.up")
		os.Exit(2)
	}
	migrationName := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)

	db, err := sql.Open("postgres", cfg.PostgresURL())
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	fileName, fileContent, err := migrationFileContent(*dir, migrationName)
	if err != nil {
		logger.Error("failed to read migration", slog.String("migration", migrationName), slog.Any("error", err))
		os.Exit(1)
	}

	if _, err := db.Exec(string(fileContent)); err != nil {
		logger.Error("failed to execute migration", slog.String("file", fileName), slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("migration executed", slog.String("file", fileName))
}

func migrationFileContent(basePath string, migrationName string) (string, []byte, error) {
	fileName, err := migrationFilePath(basePath, migrationName)
	if err != nil {
		return "", nil, err
	}

	fileContent, err := os.ReadFile(filepath.Join(basePath, fileName))
	if err != nil {
		return "", nil, err
	}

	return fileName, fileContent, nil
}

// migrationFilePath finds the first file in basePath whose name ends with
// "<migrationName>.sql", so "001_init.up" and "init.up" both resolve.
func migrationFilePath(basePath string, migrationName string) (string, error) {
	regex, err := regexp.Compile(fmt.Sprintf(`^.*%s\.sql$`, regexp.QuoteMeta(migrationName)))
	if err != nil {
		return "", fmt.Errorf("invalid migration name: %w", err)
	}

	files, err := os.ReadDir(basePath)
	if err != nil {
		return "", fmt.Errorf("failed to read migrations directory: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}

		if regex.MatchString(f.Name()) {
			return f.Name(), nil
		}
	}

	return "", fmt.Errorf("migration file not found")
}
