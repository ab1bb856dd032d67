package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

func TestConfigPath(t *testing.T) {
	t.Log("Testing ConfigPath with XDG and override")

	tests := []struct {
		name     string
		setupEnv func(t *testing.T)
		expected string
	}{
		{
			name: "XDG_CONFIG_HOME",
			setupEnv: func(t *testing.T) {
				t.Setenv("ARRAY_CONFIG_PATH", "")
				t.Setenv("XDG_CONFIG_HOME", "/custom/config")
			},
			expected: "/custom/config/array/config.yaml",
		},
		{
			name: "explicit override wins",
			setupEnv: func(t *testing.T) {
				t.Setenv("XDG_CONFIG_HOME", "/custom/config")
				t.Setenv("ARRAY_CONFIG_PATH", "/elsewhere/array.yaml")
			},
			expected: "/elsewhere/array.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv(t)
			xdg.Reload()
			t.Cleanup(xdg.Reload)

			path, err := ConfigPath()
			if err != nil {
				t.Fatalf("ConfigPath failed: %v", err)
			}
			if path != tt.expected {
				t.Errorf("Expected path %s, got %s", tt.expected, path)
			}
		})
	}
}

func TestConfigSaveLoad(t *testing.T) {
	t.Log("Testing Config Saving and Loading")

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	originalConfig := DefaultConfig()
	originalConfig.WorkspaceRoot = "~/work"
	originalConfig.Remote.Host = "git.example.com"
	originalConfig.Clone.Backend = BackendGoGit
	originalConfig.Clone.ProbeTimeout = 3 * time.Second
	originalConfig.Poll.IntervalMs = 250
	originalConfig.InitTime = time.Now().Unix()

	if err := originalConfig.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %s", err)
	}

	loadedConfig, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %s", err)
	}

	if loadedConfig.WorkspaceRoot != "~/work" {
		t.Errorf("WorkspaceRoot mismatch: expected ~/work, got %s", loadedConfig.WorkspaceRoot)
	}
	if loadedConfig.Remote.Host != "git.example.com" {
		t.Errorf("Remote.Host mismatch: got %s", loadedConfig.Remote.Host)
	}
	if loadedConfig.Clone.Backend != BackendGoGit {
		t.Errorf("Clone.Backend mismatch: got %s", loadedConfig.Clone.Backend)
	}
	if loadedConfig.ProbeTimeout() != 3*time.Second {
		t.Errorf("ProbeTimeout mismatch: got %s", loadedConfig.ProbeTimeout())
	}
	if loadedConfig.PollInterval() != 250*time.Millisecond {
		t.Errorf("PollInterval mismatch: got %s", loadedConfig.PollInterval())
	}
	if loadedConfig.InitTime != originalConfig.InitTime {
		t.Errorf("InitTime mismatch: expected %d, got %d", originalConfig.InitTime, loadedConfig.InitTime)
	}
}

func TestLoadFromFillsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("workspace_root: /srv/code\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.WorkspaceRoot != "/srv/code" {
		t.Errorf("WorkspaceRoot mismatch: got %s", cfg.WorkspaceRoot)
	}
	if cfg.Clone.Backend != BackendExec {
		t.Errorf("Expected default backend %q, got %q", BackendExec, cfg.Clone.Backend)
	}
	if cfg.Host() != "github.com" {
		t.Errorf("Expected default host, got %s", cfg.Host())
	}
	if cfg.PollInterval() != time.Second {
		t.Errorf("Expected 1s poll interval, got %s", cfg.PollInterval())
	}
}

func TestConfigInitTime(t *testing.T) {
	t.Log("Testing Config InitTime on Save")

	configPath := filepath.Join(t.TempDir(), "config.yaml")

	config := DefaultConfig()

	before := time.Now().Unix()
	if err := config.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %s", err)
	}
	after := time.Now().Unix()

	if config.InitTime < before || config.InitTime > after {
		t.Errorf("InitTime %d should be between %d and %d", config.InitTime, before, after)
	}
}

func TestConfigFilePermissions(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	config := DefaultConfig()
	if err := config.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %s", err)
	}

	fileInfo, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Failed to stat config file: %s", err)
	}

	mode := fileInfo.Mode()
	if mode&0077 != 0 {
		t.Errorf("Config file should not be readable by group/others, got mode %o", mode)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Version == "" {
		t.Error("Default config should have a version")
	}
	if config.WorkspaceRoot != "" {
		t.Error("Default config should leave the workspace root unset")
	}
	if config.Clone.MaxOutputBytes != 10<<20 {
		t.Errorf("Unexpected default max output bytes %d", config.Clone.MaxOutputBytes)
	}
	if config.InitTime != 0 {
		t.Error("Default config InitTime should be 0 (will be set on save)")
	}
}

func TestSetWorkspaceRoot(t *testing.T) {
	t.Run("creates the directory and keeps the tilde form", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		cfg := DefaultConfig()
		if err := cfg.SetWorkspaceRoot("~/work"); err != nil {
			t.Fatalf("SetWorkspaceRoot failed: %v", err)
		}

		if cfg.WorkspaceRoot != "~/work" {
			t.Errorf("Expected ~/work, got %s", cfg.WorkspaceRoot)
		}
		if info, err := os.Stat(filepath.Join(home, "work")); err != nil || !info.IsDir() {
			t.Errorf("Workspace directory was not created: %v", err)
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		cfg := DefaultConfig()
		if err := cfg.SetWorkspaceRoot("  "); err == nil {
			t.Error("Should reject an empty workspace root")
		}
	})

	t.Run("rejects traversal", func(t *testing.T) {
		cfg := DefaultConfig()
		if err := cfg.SetWorkspaceRoot("~/../outside"); err == nil {
			t.Error("Should reject path traversal")
		}
	})

	t.Run("rejects system directories", func(t *testing.T) {
		cfg := DefaultConfig()
		if err := cfg.SetWorkspaceRoot("/etc"); err == nil {
			t.Error("Should reject /etc")
		}
		if cfg.WorkspaceRoot != "" {
			t.Errorf("WorkspaceRoot should be unchanged, got %s", cfg.WorkspaceRoot)
		}
	})
}

func TestCreateNewConfigAndLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "nested", "config.yaml")
	t.Setenv("ARRAY_CONFIG_PATH", configPath)

	if !IsFirstRun() {
		t.Fatal("Expected first run before any config exists")
	}
	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without a config file")
	}

	root := filepath.Join(dir, "workspace")
	if _, err := CreateNewConfig(root); err != nil {
		t.Fatalf("CreateNewConfig failed: %v", err)
	}

	if IsFirstRun() {
		t.Error("Config should exist after CreateNewConfig")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WorkspaceRoot != root {
		t.Errorf("Expected workspace root %s, got %s", root, cfg.WorkspaceRoot)
	}

	// A second load sees edits made on disk.
	cfg.WorkspaceRoot = filepath.Join(dir, "other")
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reloaded, err := Load()
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if reloaded.WorkspaceRoot != cfg.WorkspaceRoot {
		t.Errorf("Reload did not pick up the new root: %s", reloaded.WorkspaceRoot)
	}
}

func TestResolvedStatePath(t *testing.T) {
	t.Run("environment override", func(t *testing.T) {
		t.Setenv("ARRAY_STATE_PATH", "/var/tmp/array.db")
		cfg := DefaultConfig()
		cfg.StatePath = "/ignored.db"
		if got := cfg.ResolvedStatePath(); got != "/var/tmp/array.db" {
			t.Errorf("Expected env override, got %s", got)
		}
	})

	t.Run("config value", func(t *testing.T) {
		t.Setenv("ARRAY_STATE_PATH", "")
		cfg := DefaultConfig()
		cfg.StatePath = "/data/state.db"
		if got := cfg.ResolvedStatePath(); got != "/data/state.db" {
			t.Errorf("Expected config value, got %s", got)
		}
	})

	t.Run("xdg default", func(t *testing.T) {
		t.Setenv("ARRAY_STATE_PATH", "")
		t.Setenv("XDG_DATA_HOME", "/custom/data")
		xdg.Reload()
		t.Cleanup(xdg.Reload)

		cfg := DefaultConfig()
		if got := cfg.ResolvedStatePath(); got != "/custom/data/array/state.db" {
			t.Errorf("Expected xdg data path, got %s", got)
		}
	})
}

func TestConfigErrorHandling(t *testing.T) {
	t.Run("load non-existent file", func(t *testing.T) {
		_, err := LoadFrom("/non/existent/file.yaml")
		if err == nil {
			t.Error("Should error when loading non-existent file")
		}
	})

	t.Run("load invalid YAML", func(t *testing.T) {
		invalidFile := filepath.Join(t.TempDir(), "invalid.yaml")
		os.WriteFile(invalidFile, []byte("invalid: yaml: content: ["), 0644)

		_, err := LoadFrom(invalidFile)
		if err == nil {
			t.Error("Should error when loading invalid YAML")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "config.yaml")
		os.WriteFile(file, []byte("clone:\n  backend: rsync\n"), 0600)

		_, err := LoadFrom(file)
		if err == nil {
			t.Error("Should reject an unknown clone backend")
		}
	})

	t.Run("save to read-only directory", func(t *testing.T) {
		if os.Getuid() == 0 {
			t.Skip("Skipping test as root user")
		}

		config := DefaultConfig()
		err := config.SaveTo("/root/config.yaml")
		if err == nil {
			t.Error("Should error when saving to read-only directory")
		}
	})
}
