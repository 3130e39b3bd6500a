// Package config loads user configuration from a key=value file with
// environment variable fallbacks.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config keys.
const (
	KeyStoreURL = "store-url"
	KeyToken    = "token"
	KeySpoolDir = "spool-dir"
)

// Environment variable fallbacks.
const (
	EnvStoreURL = "SONOSCRIBE_STORE_URL"
	EnvToken    = "SONOSCRIBE_TOKEN"
	EnvSpoolDir = "SONOSCRIBE_SPOOL_DIR"
)

// Config holds user configuration loaded from ~/.config/sonoscribe/config.
type Config struct {
	// StoreURL is the base URL of the queue store, e.g. http://10.0.0.5:8080.
	StoreURL string
	// Token is the shared bearer token for the store API.
	Token string
	// SpoolDir is the directory the store watches for dropped audio files.
	SpoolDir string
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/sonoscribe.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sonoscribe"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "sonoscribe"), nil
}

// path returns the full path to the config file.
func path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config"), nil
}

// Load reads the configuration file and environment variables.
// Precedence: config file values, then environment variable fallbacks.
// Returns an empty Config if the file doesn't exist (not an error).
func Load() (Config, error) {
	var cfg Config

	p, err := path()
	if err != nil {
		return cfg, err
	}

	// Read config file if it exists.
	if data, err := parseFile(p); err == nil {
		cfg.StoreURL = data[KeyStoreURL]
		cfg.Token = data[KeyToken]
		cfg.SpoolDir = data[KeySpoolDir]
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	// Environment variable fallbacks (only if not set in config).
	if cfg.StoreURL == "" {
		cfg.StoreURL = os.Getenv(EnvStoreURL)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv(EnvToken)
	}
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = os.Getenv(EnvSpoolDir)
	}

	return cfg, nil
}

// parseFile reads a key=value config file.
// Format: one key=value per line, # comments, empty lines ignored.
func parseFile(p string) (map[string]string, error) {
	f, err := os.Open(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid syntax at line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		data[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return data, nil
}

// Save writes a single key=value to the config file.
// Creates the config directory and file if they don't exist.
// Preserves existing key=value pairs but discards comments.
func Save(key, value string) error {
	p, err := path()
	if err != nil {
		return err
	}

	// Ensure config directory exists.
	d := filepath.Dir(p)
	if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	// Read existing config (if any).
	existing, _ := parseFile(p)
	if existing == nil {
		existing = make(map[string]string)
	}

	// Update value.
	existing[key] = value

	// Write back.
	return writeFile(p, existing)
}

// writeFile writes the config map to a file.
func writeFile(p string, data map[string]string) error {
	// #nosec G302 G304 -- config file with standard permissions, path from home dir
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for key, value := range data {
		if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
			return fmt.Errorf("cannot write config file: %w", err)
		}
	}

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

// Dir returns the configuration directory path (exported for testing).
func Dir() (string, error) {
	return dir()
}

// ParseFile reads a key=value config file (exported for testing).
func ParseFile(p string) (map[string]string, error) {
	return parseFile(p)
}
