package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://localhost:8000/")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("STORAGE_PATH", "/tmp/portal/storage.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BackendURL != "http://localhost:8000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendURL)
	}
	if cfg.StorageDriver != StorageDriverFile {
		t.Fatalf("expected file driver default, got %q", cfg.StorageDriver)
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.RefreshTimeout != 10*time.Second {
		t.Fatalf("unexpected timeouts: http=%v refresh=%v", cfg.HTTPTimeout, cfg.RefreshTimeout)
	}
	if cfg.StorageKeyPrefix != "alumni_portal" {
		t.Fatalf("unexpected key prefix %q", cfg.StorageKeyPrefix)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://localhost:8000")
	t.Setenv("HTTP_TIMEOUT", "soon")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse HTTP_TIMEOUT") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			BackendURL:     "https://portal.example.edu",
			HTTPTimeout:    time.Second,
			RefreshTimeout: time.Second,
			StorageDriver:  StorageDriverMemory,
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing backend", mutate: func(c *Config) { c.BackendURL = "" }, wantErr: "BACKEND_URL is required"},
		{name: "relative backend", mutate: func(c *Config) { c.BackendURL = "/api" }, wantErr: "absolute http(s) URL"},
		{name: "ftp backend", mutate: func(c *Config) { c.BackendURL = "ftp://portal" }, wantErr: "absolute http(s) URL"},
		{name: "zero timeout", mutate: func(c *Config) { c.HTTPTimeout = 0 }, wantErr: "HTTP_TIMEOUT"},
		{name: "unknown driver", mutate: func(c *Config) { c.StorageDriver = "s3" }, wantErr: "not supported"},
		{name: "sqlite without dsn", mutate: func(c *Config) { c.StorageDriver = StorageDriverSQLite }, wantErr: "DATABASE_URL"},
		{name: "file without path", mutate: func(c *Config) { c.StorageDriver = StorageDriverFile }, wantErr: "STORAGE_PATH"},
		{name: "bad ratio", mutate: func(c *Config) { c.OTELTraceSamplingRatio = 2 }, wantErr: "SAMPLING_RATIO"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
