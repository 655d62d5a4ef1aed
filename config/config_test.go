package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		configured string
		want       string
	}{
		{"proxy override wins", map[string]string{"AGENT_PROXY_BASE": "http://proxy:9000/api", "API_BASE": "http://api/api"}, "http://file/api", "http://proxy:9000/api"},
		{"api base next", map[string]string{"API_BASE": "http://api:5000/api/"}, "http://file/api", "http://api:5000/api"},
		{"config file value", nil, "http://file/api", "http://file/api"},
		{"default", nil, "", DefaultBaseURL},
		{"blank env ignored", map[string]string{"AGENT_PROXY_BASE": "  "}, "", DefaultBaseURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveBaseURL(envFrom(tt.env), tt.configured)
			if got != tt.want {
				t.Errorf("ResolveBaseURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBaseURLOverride(t *testing.T) {
	key, v, ok := BaseURLOverride(envFrom(map[string]string{"API_BASE": "http://api:5000/api/"}))
	if !ok || key != "API_BASE" || v != "http://api:5000/api" {
		t.Errorf("BaseURLOverride = %q %q %v", key, v, ok)
	}
	key, _, _ = BaseURLOverride(envFrom(map[string]string{"AGENT_PROXY_BASE": "http://p/api", "API_BASE": "http://a/api"}))
	if key != "AGENT_PROXY_BASE" {
		t.Errorf("key = %q, want AGENT_PROXY_BASE", key)
	}
	if _, _, ok := BaseURLOverride(envFrom(nil)); ok {
		t.Error("override reported with empty environment")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AGENT_PROXY_BASE", "")
	t.Setenv("API_BASE", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.Backend.BaseURL, DefaultBaseURL)
	}
	if cfg.Agent.Delay != time.Second {
		t.Errorf("Agent.Delay = %v, want 1s", cfg.Agent.Delay)
	}
	if cfg.Agent.Source != "mock" {
		t.Errorf("Agent.Source = %q, want mock", cfg.Agent.Source)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arogyadash.yaml")
	data := []byte("backend:\n  base_url: http://file:5000/api\n  cache_ttl: 3s\nweb:\n  port: 9999\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AGENT_PROXY_BASE", "")
	t.Setenv("API_BASE", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://file:5000/api" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.CacheTTL != 3*time.Second {
		t.Errorf("CacheTTL = %v, want 3s", cfg.Backend.CacheTTL)
	}
	if cfg.Web.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Web.Port)
	}
	// Untouched sections keep defaults.
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}

	t.Setenv("API_BASE", "http://env:5000/api")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://env:5000/api" {
		t.Errorf("BaseURL with API_BASE = %q", cfg.Backend.BaseURL)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("AGENT_PROXY_BASE", "")
	t.Setenv("API_BASE", "")
	path := filepath.Join(t.TempDir(), "out.yaml")

	cfg := Defaults()
	cfg.Backend.BaseURL = "http://saved:1/api"
	cfg.Agent.Source = "proxy"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backend.BaseURL != "http://saved:1/api" {
		t.Errorf("BaseURL = %q", got.Backend.BaseURL)
	}
	if got.Agent.Source != "proxy" {
		t.Errorf("Agent.Source = %q", got.Agent.Source)
	}
}
