package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

//go:embed example.yaml
var exampleConfig embed.FS

// Feed types a relay can serve
const (
	FeedFollows     = "FOLLOWS"
	FeedPublicChats = "PUBLIC_CHATS"
	FeedPrivateDMs  = "PRIVATE_DMS"
	FeedGlobal      = "GLOBAL"
	FeedSearch      = "SEARCH"
)

// AllFeedTypes lists every feed type in display order
var AllFeedTypes = []string{FeedFollows, FeedPublicChats, FeedPrivateDMs, FeedGlobal, FeedSearch}

// Config represents the complete nostrum configuration
type Config struct {
	Identity   Identity   `yaml:"identity"`
	Relays     Relays     `yaml:"relays"`
	Account    Account    `yaml:"account"`
	Moderation Moderation `yaml:"moderation"`
	Notify     Notify     `yaml:"notify"`
	Storage    Storage    `yaml:"storage"`
	Logging    Logging    `yaml:"logging"`
}

// Identity contains Nostr identity information
type Identity struct {
	Npub string `yaml:"npub"`
	// Nsec is never read from the file, only from NOSTRUM_NSEC
	Nsec string `yaml:"-"`
}

// Relays contains relay configuration
type Relays struct {
	Local  []RelaySetup `yaml:"local" validate:"dive"`
	Search []string     `yaml:"search"`
	Policy RelayPolicy  `yaml:"policy"`
}

// RelaySetup is one locally configured relay
type RelaySetup struct {
	URL       string   `yaml:"url" validate:"required"`
	Read      bool     `yaml:"read"`
	Write     bool     `yaml:"write"`
	FeedTypes []string `yaml:"feed_types" validate:"dive,oneof=FOLLOWS PUBLIC_CHATS PRIVATE_DMS GLOBAL SEARCH"`
}

// RelayPolicy contains relay connection policies
type RelayPolicy struct {
	ConnectTimeoutMs   int `yaml:"connect_timeout_ms" validate:"gte=0"`
	ReconcileDelayMs   int `yaml:"reconcile_delay_ms" validate:"gte=0"`
	BootstrapTimeoutMs int `yaml:"bootstrap_timeout_ms" validate:"gte=0"`
}

// Account contains per-account defaults used when no snapshot exists yet
type Account struct {
	DefaultChannels []string `yaml:"default_channels"`
	ZapAmounts      []int64  `yaml:"zap_amounts" validate:"dive,gt=0"`
	TranslateTo     string   `yaml:"translate_to"`
	SnapshotPath    string   `yaml:"snapshot_path"`
}

// Moderation contains the moderation policy thresholds
type Moderation struct {
	ReportThreshold int `yaml:"report_threshold" validate:"gte=0"`
	SpamThreshold   int `yaml:"spam_threshold" validate:"gte=0"`
}

// Notify contains state notification settings
type Notify struct {
	QuietWindowMs int `yaml:"quiet_window_ms" validate:"gte=0"`
}

// Storage contains storage backend settings
type Storage struct {
	Driver string `yaml:"driver"` // memory|badger|sqlite
	Path   string `yaml:"path"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// envOverrides holds the NOSTRUM_* environment variables
type envOverrides struct {
	Nsec        string `envconfig:"NSEC"`
	Npub        string `envconfig:"NPUB"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	StoragePath string `envconfig:"STORAGE_PATH"`
}

// applyDefaults fills in missing configuration fields with sensible defaults
func applyDefaults(cfg *Config) {
	defaults := Default()

	if len(cfg.Relays.Local) == 0 {
		cfg.Relays.Local = defaults.Relays.Local
	}
	for i := range cfg.Relays.Local {
		if len(cfg.Relays.Local[i].FeedTypes) == 0 {
			cfg.Relays.Local[i].FeedTypes = append([]string(nil), AllFeedTypes...)
		}
	}
	if cfg.Relays.Search == nil {
		cfg.Relays.Search = defaults.Relays.Search
	}
	if cfg.Relays.Policy.ConnectTimeoutMs == 0 {
		cfg.Relays.Policy.ConnectTimeoutMs = defaults.Relays.Policy.ConnectTimeoutMs
	}
	if cfg.Relays.Policy.ReconcileDelayMs == 0 {
		cfg.Relays.Policy.ReconcileDelayMs = defaults.Relays.Policy.ReconcileDelayMs
	}
	if cfg.Relays.Policy.BootstrapTimeoutMs == 0 {
		cfg.Relays.Policy.BootstrapTimeoutMs = defaults.Relays.Policy.BootstrapTimeoutMs
	}

	if cfg.Account.DefaultChannels == nil {
		cfg.Account.DefaultChannels = defaults.Account.DefaultChannels
	}
	if len(cfg.Account.ZapAmounts) == 0 {
		cfg.Account.ZapAmounts = defaults.Account.ZapAmounts
	}
	if cfg.Account.TranslateTo == "" {
		cfg.Account.TranslateTo = defaults.Account.TranslateTo
	}
	if cfg.Account.SnapshotPath == "" {
		cfg.Account.SnapshotPath = defaults.Account.SnapshotPath
	}

	if cfg.Moderation.ReportThreshold == 0 {
		cfg.Moderation.ReportThreshold = defaults.Moderation.ReportThreshold
	}
	if cfg.Moderation.SpamThreshold == 0 {
		cfg.Moderation.SpamThreshold = defaults.Moderation.SpamThreshold
	}

	if cfg.Notify.QuietWindowMs == 0 {
		cfg.Notify.QuietWindowMs = defaults.Notify.QuietWindowMs
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}
	if cfg.Storage.Path == "" && cfg.Storage.Driver != "memory" {
		cfg.Storage.Path = defaults.Storage.Path
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults for missing fields
	applyDefaults(&cfg)

	// Apply environment variable overrides
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads a .env file into the process environment if present.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies NOSTRUM_* environment variable overrides to config
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("NOSTRUM", &env); err != nil {
		return err
	}

	if env.Nsec != "" {
		cfg.Identity.Nsec = env.Nsec
	}
	if env.Npub != "" {
		cfg.Identity.Npub = env.Npub
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if env.StoragePath != "" {
		cfg.Storage.Path = env.StoragePath
	}

	return nil
}

// GetExampleConfig returns the embedded example configuration
func GetExampleConfig() ([]byte, error) {
	return exampleConfig.ReadFile("example.yaml")
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Relays: Relays{
			Local: []RelaySetup{
				{URL: "wss://nostr.bitcoiner.social", Read: true, Write: true, FeedTypes: append([]string(nil), AllFeedTypes...)},
				{URL: "wss://relay.nostr.bg", Read: true, Write: true, FeedTypes: append([]string(nil), AllFeedTypes...)},
				{URL: "wss://nostr.oxtr.dev", Read: true, Write: true, FeedTypes: append([]string(nil), AllFeedTypes...)},
				{URL: "wss://nostr-pub.wellorder.net", Read: true, Write: true, FeedTypes: append([]string(nil), AllFeedTypes...)},
				{URL: "wss://relay.damus.io", Read: true, Write: true, FeedTypes: append([]string(nil), AllFeedTypes...)},
				{URL: "wss://nos.lol", Read: true, Write: true, FeedTypes: append([]string(nil), AllFeedTypes...)},
			},
			Search: []string{
				"wss://relay.nostr.band",
			},
			Policy: RelayPolicy{
				ConnectTimeoutMs:   5000,
				ReconcileDelayMs:   500,
				BootstrapTimeoutMs: 10000,
			},
		},
		Account: Account{
			DefaultChannels: []string{
				"25e5c82273a271cb1a840d0060391a0bf4965cafeb029d5ab55350b418953fbb",
				"42224859763652914db53052103f0b744df79dfc4efef7e950fc0802fc3df3c5",
			},
			ZapAmounts:   []int64{500, 1000, 5000},
			TranslateTo:  "en",
			SnapshotPath: "./data/account.yaml",
		},
		Moderation: Moderation{
			ReportThreshold: 5,
			SpamThreshold:   5,
		},
		Notify: Notify{
			QuietWindowMs: 100,
		},
		Storage: Storage{
			Driver: "badger",
			Path:   "./data/events",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// validLogLevels defines allowed log levels
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validStorageDrivers defines allowed storage drivers
var validStorageDrivers = map[string]bool{
	"memory": true,
	"badger": true,
	"sqlite": true,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if a configuration is valid
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	// Validate identity
	if cfg.Identity.Npub == "" && cfg.Identity.Nsec == "" {
		return fmt.Errorf("identity.npub or NOSTRUM_NSEC is required")
	}
	if cfg.Identity.Npub != "" && !strings.HasPrefix(cfg.Identity.Npub, "npub1") {
		return fmt.Errorf("identity.npub must start with 'npub1'")
	}
	if cfg.Identity.Nsec != "" && !strings.HasPrefix(cfg.Identity.Nsec, "nsec1") && len(cfg.Identity.Nsec) != 64 {
		return fmt.Errorf("NOSTRUM_NSEC must be an nsec1 string or 64 hex characters")
	}

	// Validate relays
	if len(cfg.Relays.Local) == 0 {
		return fmt.Errorf("at least one local relay is required")
	}
	for _, relay := range cfg.Relays.Local {
		if !strings.HasPrefix(relay.URL, "wss://") && !strings.HasPrefix(relay.URL, "ws://") {
			return fmt.Errorf("relay url must start with ws:// or wss://: %s", relay.URL)
		}
	}
	for _, relay := range cfg.Relays.Search {
		if !strings.HasPrefix(relay, "wss://") && !strings.HasPrefix(relay, "ws://") {
			return fmt.Errorf("search relay must start with ws:// or wss://: %s", relay)
		}
	}

	// Validate storage driver
	if !validStorageDrivers[cfg.Storage.Driver] {
		return fmt.Errorf("invalid storage driver: %s (must be one of: memory, badger, sqlite)", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver != "memory" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for driver %s", cfg.Storage.Driver)
	}

	// Validate log level
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", cfg.Logging.Level)
	}

	if cfg.Moderation.ReportThreshold < 1 {
		return fmt.Errorf("moderation.report_threshold must be at least 1")
	}
	if cfg.Moderation.SpamThreshold < 1 {
		return fmt.Errorf("moderation.spam_threshold must be at least 1")
	}

	return nil
}
