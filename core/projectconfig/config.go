package projectconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/davidahmann/loom/core/schema/v1/slice"
)

const DefaultPath = ".loom/config.yaml"

type Config struct {
	Slice      SliceDefaults      `yaml:"slice"`
	Policy     PolicyDefaults     `yaml:"policy"`
	Checkpoint CheckpointDefaults `yaml:"checkpoint"`
	Log        LogDefaults        `yaml:"log"`
}

type SliceDefaults struct {
	MaxBytes            int `yaml:"max_bytes"`
	MaxTokens           int `yaml:"max_tokens"`
	MaxItems            int `yaml:"max_items"`
	MaxSummarySentences int `yaml:"max_summary_sentences"`
}

type PolicyDefaults struct {
	Endpoint        string `yaml:"endpoint"`
	Disabled        bool   `yaml:"disabled"`
	FallbackToLocal *bool  `yaml:"fallback_to_local"`
}

type CheckpointDefaults struct {
	Store string `yaml:"store"`
	Path  string `yaml:"path"`
}

type LogDefaults struct {
	Level string `yaml:"level"`
}

func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("project config path is required")
	}

	// #nosec G304 -- project config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read project config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return Config{}, nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse project config: %w", err)
	}
	configuration.normalize()
	if err := configuration.validate(); err != nil {
		return Config{}, err
	}
	return configuration, nil
}

// Budget converts the configured slice limits; zero fields mean
// unconstrained.
func (configuration Config) Budget() slice.Budget {
	return slice.Budget{
		MaxBytes:  configuration.Slice.MaxBytes,
		MaxTokens: configuration.Slice.MaxTokens,
		MaxItems:  configuration.Slice.MaxItems,
	}
}

// FallbackToLocal defaults to true when unset: local rules are the safety
// net when the compiled policy endpoint is unreachable.
func (configuration Config) FallbackToLocal() bool {
	if configuration.Policy.FallbackToLocal == nil {
		return true
	}
	return *configuration.Policy.FallbackToLocal
}

func (configuration *Config) normalize() {
	configuration.Policy.Endpoint = strings.TrimSpace(configuration.Policy.Endpoint)
	configuration.Checkpoint.Store = strings.ToLower(strings.TrimSpace(configuration.Checkpoint.Store))
	configuration.Checkpoint.Path = strings.TrimSpace(configuration.Checkpoint.Path)
	configuration.Log.Level = strings.ToLower(strings.TrimSpace(configuration.Log.Level))
}

func (configuration Config) validate() error {
	if configuration.Slice.MaxBytes < 0 || configuration.Slice.MaxTokens < 0 || configuration.Slice.MaxItems < 0 {
		return fmt.Errorf("slice budget limits must be non-negative")
	}
	switch configuration.Checkpoint.Store {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown checkpoint store %q (want memory or sqlite)", configuration.Checkpoint.Store)
	}
	if configuration.Checkpoint.Store == "sqlite" && configuration.Checkpoint.Path == "" {
		return fmt.Errorf("checkpoint store sqlite requires a path")
	}
	return nil
}
