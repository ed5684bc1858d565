package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.LoadLookbackDays != 90 {
		t.Errorf("LoadLookbackDays = %d, want 90", cfg.LoadLookbackDays)
	}
	esc := cfg.EscalationDefaults()
	if esc.TimeoutMinutes != [3]int{15, 15, 30} || esc.MaxAttemptsPerLevel != 3 || esc.MinIntervalMinutes != 5 {
		t.Errorf("unexpected escalation defaults: %+v", esc)
	}
	if cfg.Events.Transport != "log" {
		t.Errorf("Transport = %q, want log", cfg.Events.Transport)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	cfg := Default()
	cfg.LoadLookbackDays = 30
	cfg.Events.Transport = "redis"
	cfg.Events.RedisAddr = "localhost:6379"
	cfg.Escalation.TimeoutMinutes = [3]int{5, 10, 20}

	path, err := Save(dir, cfg)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(dir, ".garde", "config.json") {
		t.Errorf("unexpected path %s", path)
	}

	loaded, err := Load("", dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LoadLookbackDays != 30 || loaded.Events.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected loaded config: %+v", loaded)
	}
	if loaded.Escalation.TimeoutMinutes != [3]int{5, 10, 20} {
		t.Errorf("TimeoutMinutes = %v", loaded.Escalation.TimeoutMinutes)
	}
}

func TestLoad_Resolution(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name     string
		setup    func(t *testing.T, dir string) string // returns explicit path
		wantDays int
		wantErr  bool
	}{
		{
			name:     "no file uses defaults",
			setup:    func(t *testing.T, dir string) string { return "" },
			wantDays: 90,
		},
		{
			name: "partial file keeps defaults for missing keys",
			setup: func(t *testing.T, dir string) string {
				writeFile(t, filepath.Join(dir, ".garde", "config.json"), `{"load_lookback_days": 45}`)
				return ""
			},
			wantDays: 45,
		},
		{
			name: "explicit path wins",
			setup: func(t *testing.T, dir string) string {
				writeFile(t, filepath.Join(dir, ".garde", "config.json"), `{"load_lookback_days": 45}`)
				explicit := filepath.Join(dir, "other.json")
				writeFile(t, explicit, `{"load_lookback_days": 7}`)
				return explicit
			},
			wantDays: 7,
		},
		{
			name: "malformed file",
			setup: func(t *testing.T, dir string) string {
				writeFile(t, filepath.Join(dir, ".garde", "config.json"), `{`)
				return ""
			},
			wantErr: true,
		},
		{
			name: "invalid values",
			setup: func(t *testing.T, dir string) string {
				writeFile(t, filepath.Join(dir, ".garde", "config.json"), `{"events": {"transport": "kafka"}}`)
				return ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			explicit := tt.setup(t, dir)

			cfg, err := Load(explicit, dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.LoadLookbackDays != tt.wantDays {
				t.Errorf("LoadLookbackDays = %d, want %d", cfg.LoadLookbackDays, tt.wantDays)
			}
			if cfg.Escalation.MaxAttemptsPerLevel != 3 {
				t.Errorf("MaxAttemptsPerLevel = %d, want default 3", cfg.Escalation.MaxAttemptsPerLevel)
			}
		})
	}
}

func TestLoad_HomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeFile(t, filepath.Join(home, ".garde", "config.json"), `{"log_level": "debug"}`)

	cfg, err := Load("", t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
