package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from .env files.
//
// Search order (first found wins):
//  1. Explicit paths if provided
//  2. .env in current directory
//  3. .env in home directory (~/.env)
//
// Idempotent and safe to call multiple times. Existing environment
// variables are NOT overwritten.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path != "" {
			if err := loadIfExists(path); err != nil {
				return err
			}
		}
	}

	if err := loadIfExists(".env"); err != nil {
		return err
	}

	if home, err := os.UserHomeDir(); err == nil {
		if err := loadIfExists(filepath.Join(home, ".env")); err != nil {
			return err
		}
	}

	return nil
}

// loadIfExists loads a .env file if it exists without overwriting
// existing environment variables. A missing file is not an error.
func loadIfExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		// .env is optional, log and move on
		slog.Debug("Failed to load .env file", "path", path, "error", err)
		return nil
	}

	slog.Debug("Loaded environment from .env", "path", path)
	return nil
}
