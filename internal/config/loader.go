package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files.
type Loader interface {
	// Load reads the file at path, applies defaults for unset keys,
	// interpolates ${ENV_VAR} references and validates the result.
	Load(path string) (*Config, error)
}

// viperLoader implements Loader using Viper.
type viperLoader struct {
	validator Validator
}

// NewLoader creates a new Loader instance.
func NewLoader(validator Validator) Loader {
	return &viperLoader{validator: validator}
}

func (l *viperLoader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from the full default tree so a sparse file stays valid.
	cfg := Default()

	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	interpolateEnv(cfg)

	if err := l.validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

var envRefPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// interpolateEnv expands ${VAR} references in the fields that commonly carry
// secrets or deployment-specific paths. Unset variables expand to empty.
func interpolateEnv(cfg *Config) {
	for _, field := range []*string{
		&cfg.MQTT.Broker,
		&cfg.MQTT.Username,
		&cfg.MQTT.Password,
		&cfg.Store.Path,
		&cfg.Daemon.PIDFile,
	} {
		*field = envRefPattern.ReplaceAllStringFunc(*field, func(ref string) string {
			name := envRefPattern.FindStringSubmatch(ref)[1]
			return os.Getenv(name)
		})
	}
}
