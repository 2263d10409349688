package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
identity:
  npub: "npub1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqsmdqd2"
storage:
  driver: memory
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Relays.Local) == 0 {
		t.Error("Expected default local relays")
	}
	for _, relay := range cfg.Relays.Local {
		if len(relay.FeedTypes) != len(AllFeedTypes) {
			t.Errorf("Expected relay %s to serve all feed types, got %v", relay.URL, relay.FeedTypes)
		}
	}
	if cfg.Moderation.ReportThreshold != 5 {
		t.Errorf("Expected report threshold 5, got %d", cfg.Moderation.ReportThreshold)
	}
	if cfg.Moderation.SpamThreshold != 5 {
		t.Errorf("Expected spam threshold 5, got %d", cfg.Moderation.SpamThreshold)
	}
	if cfg.Notify.QuietWindowMs != 100 {
		t.Errorf("Expected quiet window 100ms, got %d", cfg.Notify.QuietWindowMs)
	}
	if cfg.Storage.Path != "" {
		t.Errorf("Expected no storage path for memory driver, got %q", cfg.Storage.Path)
	}
	if len(cfg.Account.ZapAmounts) != 3 {
		t.Errorf("Expected 3 default zap amounts, got %v", cfg.Account.ZapAmounts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NOSTRUM_NSEC", strings.Repeat("1", 64))
	t.Setenv("NOSTRUM_LOG_LEVEL", "debug")

	path := writeConfig(t, `
storage:
  driver: memory
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Identity.Nsec != strings.Repeat("1", 64) {
		t.Errorf("Expected nsec from environment, got %q", cfg.Identity.Nsec)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid default with npub",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "missing identity",
			mutate:  func(cfg *Config) { cfg.Identity.Npub = "" },
			wantErr: "identity.npub",
		},
		{
			name:    "bad npub prefix",
			mutate:  func(cfg *Config) { cfg.Identity.Npub = "nsec1abc" },
			wantErr: "npub1",
		},
		{
			name: "relay without websocket scheme",
			mutate: func(cfg *Config) {
				cfg.Relays.Local = []RelaySetup{{URL: "https://relay.test", Read: true}}
			},
			wantErr: "ws://",
		},
		{
			name: "unknown feed type",
			mutate: func(cfg *Config) {
				cfg.Relays.Local = []RelaySetup{{URL: "wss://relay.test", FeedTypes: []string{"NOPE"}}}
			},
			wantErr: "oneof",
		},
		{
			name:    "unknown storage driver",
			mutate:  func(cfg *Config) { cfg.Storage.Driver = "lmdb" },
			wantErr: "storage driver",
		},
		{
			name:    "invalid log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "trace" },
			wantErr: "log level",
		},
		{
			name:    "zero report threshold",
			mutate:  func(cfg *Config) { cfg.Moderation.ReportThreshold = 0 },
			wantErr: "report_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Identity.Npub = "npub1test"
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetExampleConfig(t *testing.T) {
	data, err := GetExampleConfig()
	if err != nil {
		t.Fatalf("GetExampleConfig() error = %v", err)
	}
	if !strings.Contains(string(data), "relays:") {
		t.Error("Expected example config to contain a relays section")
	}
}

func TestSystemLanguages(t *testing.T) {
	tests := []struct {
		name     string
		language string
		lang     string
		expected []string
	}{
		{
			name:     "LANGUAGE list wins ordering",
			language: "pt_BR:en_US",
			lang:     "de_DE.UTF-8",
			expected: []string{"pt", "en", "de"},
		},
		{
			name:     "LANG only",
			lang:     "fr_FR.UTF-8",
			expected: []string{"fr"},
		},
		{
			name:     "C locale falls back to english",
			lang:     "C",
			expected: []string{"en"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LANGUAGE", tt.language)
			t.Setenv("LC_ALL", "")
			t.Setenv("LANG", tt.lang)

			got := SystemLanguages()
			if strings.Join(got, ",") != strings.Join(tt.expected, ",") {
				t.Errorf("SystemLanguages() = %v, want %v", got, tt.expected)
			}
		})
	}
}
