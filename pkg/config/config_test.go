package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "ruggedgo.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Ellipsoid.Model != "wgs84" {
					t.Errorf("expected default ellipsoid 'wgs84', got %q", cfg.Ellipsoid.Model)
				}
				if cfg.Algorithm.Name != "duvenhage" {
					t.Errorf("expected default algorithm 'duvenhage', got %q", cfg.Algorithm.Name)
				}
				if cfg.Cache.MaxTiles != 12 {
					t.Errorf("expected default max_tiles 12, got %d", cfg.Cache.MaxTiles)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "model: wgs84") {
					t.Error("config file missing default ellipsoid model")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				err := os.WriteFile(configPath, []byte("ellipsoid:\n  model: grs80\ncache:\n  max_tiles: 20\n  overlapping: true\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Ellipsoid.Model != "grs80" {
					t.Errorf("expected ellipsoid 'grs80', got %q", cfg.Ellipsoid.Model)
				}
				if cfg.Cache.MaxTiles != 20 {
					t.Errorf("expected max_tiles 20, got %d", cfg.Cache.MaxTiles)
				}
				if !cfg.Cache.Overlapping {
					t.Error("expected overlapping true")
				}
			},
		},
		{
			name: "InvalidEllipsoid",
			setup: func() {
				err := os.WriteFile(configPath, []byte("ellipsoid:\n  model: mars\n"), 0o644)
				if err != nil {
					t.Fatal(err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if tt.expectedError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	tempDir := t.TempDir()
	p := filepath.Join(tempDir, "sub", "ruggedgo.yaml")

	if err := GenerateDefault(p); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}

	if err := os.WriteFile(p, []byte("ellipsoid:\n  model: grs80\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateDefault(p); err != nil {
		t.Fatalf("GenerateDefault (existing) failed: %v", err)
	}
	data, _ := os.ReadFile(p)
	if !strings.Contains(string(data), "grs80") {
		t.Error("GenerateDefault should not overwrite an existing file")
	}
}
