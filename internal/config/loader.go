package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/novalabs/nova/pkg/live/gemini"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Engine.AssistantName == "" {
		cfg.Engine.AssistantName = "Nova"
	}
	if cfg.Engine.Personality == "" {
		cfg.Engine.Personality = PersonalityFriendly
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreSQLite
	}
	if cfg.Store.Backend == StoreSQLite && cfg.Store.Path == "" {
		cfg.Store.Path = "nova.db"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Engine.APIKey == "" {
		errs = append(errs, fmt.Errorf("engine.api_key is required"))
	}
	if cfg.Engine.Personality != "" && !cfg.Engine.Personality.IsValid() {
		errs = append(errs, fmt.Errorf("engine.personality %q is invalid; valid values: professional, friendly, witty, minimalist, custom", cfg.Engine.Personality))
	}
	if cfg.Engine.Personality == PersonalityCustom && cfg.Engine.CustomPersonality == "" {
		errs = append(errs, fmt.Errorf("engine.custom_personality is required when engine.personality is custom"))
	}
	if cfg.Engine.Voice != "" && !slices.Contains(gemini.Voices(), cfg.Engine.Voice) {
		slog.Warn("unknown voice name — may be a typo or a newly released voice",
			"voice", cfg.Engine.Voice,
			"known", gemini.Voices(),
		)
	}

	if cfg.Store.Backend != "" && !cfg.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, sqlite, postgres", cfg.Store.Backend))
	}
	if cfg.Store.Backend == StoreSQLite && cfg.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required when store.backend is sqlite"))
	}
	if cfg.Store.Backend == StorePostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("store.postgres_dsn is required when store.backend is postgres"))
	}
	if cfg.Store.Backend == StoreMemory {
		slog.Warn("store.backend is memory; transcripts and saved facts will not survive a restart")
	}

	return errors.Join(errs...)
}
