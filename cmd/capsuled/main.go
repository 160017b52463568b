package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"timecapsule/internal/config"
	"timecapsule/internal/db"
	"timecapsule/internal/filestore"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// baseDir returns the app data directory, overridable for development via
// CAPSULED_DIR.
func baseDir() (string, error) {
	if dir := os.Getenv("CAPSULED_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".capsuled"), nil
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	dir, err := baseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	database, err := db.Init(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	files := filestore.New(filepath.Join(dir, "images"), cfg.ImageMaxBytes, log)

	app := newCLIApp(dir, database, cfg, files, log)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
