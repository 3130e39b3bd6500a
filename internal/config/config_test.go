package config

import (
	"os"
	"path/filepath"
	"testing"
)

// Notes:
// - White-box testing (package config) to test internal parseFile function.
// - Uses t.TempDir() + t.Setenv("XDG_CONFIG_HOME") for I/O isolation.
// - Tests using t.Setenv are NOT parallel (incompatible with t.Parallel).
//
// Coverage gaps (intentional - rare I/O errors not worth mocking):
// - os.UserHomeDir() failures in dir(), ExpandPath()
// - Write errors in writeFile() (disk full, permission denied mid-write)

// writeConfigFile creates a config file in the given directory.
func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "sonoscribe")
	if err := os.MkdirAll(configDir, 0750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns empty config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv(EnvStoreURL, "")
		t.Setenv(EnvToken, "")
		t.Setenv(EnvSpoolDir, "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg != (Config{}) {
			t.Errorf("Load() = %+v, want zero config", cfg)
		}
	})

	t.Run("reads all keys from file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", dir)
		writeConfigFile(t, dir, `
# queue store connection
store-url = http://10.0.0.5:8080
token = s3cret
spool-dir = /var/spool/audio
`)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.StoreURL != "http://10.0.0.5:8080" {
			t.Errorf("StoreURL = %q", cfg.StoreURL)
		}
		if cfg.Token != "s3cret" {
			t.Errorf("Token = %q", cfg.Token)
		}
		if cfg.SpoolDir != "/var/spool/audio" {
			t.Errorf("SpoolDir = %q", cfg.SpoolDir)
		}
	})

	t.Run("environment fallback fills missing keys", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", dir)
		writeConfigFile(t, dir, "store-url = http://file-wins:8080\n")
		t.Setenv(EnvStoreURL, "http://env-loses:8080")
		t.Setenv(EnvToken, "env-token")
		t.Setenv(EnvSpoolDir, "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.StoreURL != "http://file-wins:8080" {
			t.Errorf("StoreURL = %q, file value must take precedence", cfg.StoreURL)
		}
		if cfg.Token != "env-token" {
			t.Errorf("Token = %q, env must fill keys the file omits", cfg.Token)
		}
	})

	t.Run("invalid syntax is an error", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", dir)
		writeConfigFile(t, dir, "this line has no equals sign\n")

		if _, err := Load(); err == nil {
			t.Fatal("Load() error = nil, want syntax error")
		}
	})
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "config")
	content := `
# comment line
store-url=http://localhost:8080

token = spaced value
`
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	data, err := parseFile(p)
	if err != nil {
		t.Fatalf("parseFile() error = %v", err)
	}
	if data["store-url"] != "http://localhost:8080" {
		t.Errorf("store-url = %q", data["store-url"])
	}
	if data["token"] != "spaced value" {
		t.Errorf("token = %q, surrounding whitespace must be trimmed", data["token"])
	}
	if len(data) != 2 {
		t.Errorf("len(data) = %d, comments and blanks must be skipped", len(data))
	}
}

func TestSave(t *testing.T) {
	t.Run("creates file and preserves existing keys", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		if err := Save(KeyStoreURL, "http://localhost:8080"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := Save(KeyToken, "s3cret"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := Save(KeyStoreURL, "http://updated:9090"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		p, err := path()
		if err != nil {
			t.Fatal(err)
		}
		data, err := parseFile(p)
		if err != nil {
			t.Fatalf("parseFile() error = %v", err)
		}
		if data[KeyStoreURL] != "http://updated:9090" {
			t.Errorf("store-url = %q, want updated value", data[KeyStoreURL])
		}
		if data[KeyToken] != "s3cret" {
			t.Errorf("token = %q, earlier keys must survive", data[KeyToken])
		}
	})
}

func TestExpandPath(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandPath("~/spool"); got != filepath.Join(home, "spool") {
		t.Errorf("ExpandPath(~/spool) = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath(/abs/path) = %q", got)
	}
	if got := ExpandPath("relative"); got != "relative" {
		t.Errorf("ExpandPath(relative) = %q", got)
	}
}
