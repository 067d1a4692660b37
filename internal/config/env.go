package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads .env.local then .env from the project root.
// godotenv never overrides variables that are already set, so the process
// environment wins over .env.local, which wins over .env.
func loadEnvFiles(root string) {
	for _, name := range []string{".env.local", ".env"} {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("failed to load env file", "path", p, "error", err)
			continue
		}
		slog.Debug("loaded environment file", "path", p)
	}
}
