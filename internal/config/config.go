// Package config loads process configuration from defaults, AGT_* environment
// variables and explicit overrides, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every recognised environment variable.
const EnvPrefix = "AGT_"

const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
)

type Config struct {
	MemoryCapacity int    `koanf:"memory_capacity" validate:"min=1"`
	MaxHops        int    `koanf:"max_hops"        validate:"min=1"`
	MaxTokens      int    `koanf:"max_tokens"      validate:"min=1"`
	Backend        string `koanf:"backend"         validate:"oneof=anthropic openai"`
	Model          string `koanf:"model"`
	LogLevel       string `koanf:"log_level"       validate:"oneof=debug info warn error disabled"`
	LogJSON        bool   `koanf:"log_json"`
	SystemPrompt   string `koanf:"system_prompt"`
	// Tools enables the read-only workspace tools rooted at ReadRoot.
	Tools    bool   `koanf:"tools"`
	ReadRoot string `koanf:"read_root"`
}

func Default() *Config {
	return &Config{
		MemoryCapacity: 10,
		MaxHops:        8,
		MaxTokens:      1024,
		Backend:        BackendAnthropic,
		LogLevel:       "info",
		Tools:          true,
	}
}

// Load builds the configuration. Keys in overrides use the koanf names, e.g.
// "max_hops".
func Load(overrides map[string]any) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	for key, v := range overrides {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("failed to apply override %q: %w", key, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}
