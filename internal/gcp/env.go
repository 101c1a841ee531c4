package gcp

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvBool reads a boolean environment variable. Unparseable values fall
// back to the default and are logged.
func GetEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Ignoring invalid boolean environment variable.", "key", key, "value", value)
		return fallback
	}
	return b
}

// GetEnvInt64 reads an integer environment variable with the same fallback
// rules as GetEnvBool.
func GetEnvInt64(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		slog.Warn("Ignoring invalid integer environment variable.", "key", key, "value", value)
		return fallback
	}
	return n
}

// LoadDotEnv loads variables from the given .env files (".env" if none) into
// the process environment. Variables that are already set win. A missing file
// is not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			slog.Debug("No .env file loaded, using environment variables.", "path", p, "error", err)
		}
	}
}
