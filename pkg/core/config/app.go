// Package config loads the application settings (viper + .env) and the
// scenario documents the pipeline runs on (yaml / hjson).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CW_LOGGING_LEVEL.
const EnvPrefix = "CW"

// AppConfig is the process-level configuration shared by the binaries.
type AppConfig struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Store    StoreConfig    `mapstructure:"store"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type PipelineConfig struct {
	Tolerance        float64 `mapstructure:"tolerance" validate:"gt=0"`
	BatchConcurrency int     `mapstructure:"batch_concurrency" validate:"gte=1"`
}

// StoreConfig selects the scenario store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=file postgres"`
	Dir    string `mapstructure:"dir" validate:"required_if=Driver file"`
	DSN    string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

var defaults = map[string]interface{}{
	"logging.level":              "info",
	"logging.format":             "json",
	"pipeline.tolerance":         0.01,
	"pipeline.batch_concurrency": 4,
	"store.driver":               "file",
	"store.dir":                  "./scenarios",
	"store.dsn":                  "",
	"http.addr":                  ":8080",
}

// Load reads the application config. path may be empty, in which case
// config.{yaml,json} is searched in ./configs and the working directory.
// A missing file is not an error; defaults and CW_* env vars still apply.
func Load(path string) (*AppConfig, error) {
	loadEnvFile()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := newValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up to the module root.
// Variables already set in the environment win.
func loadEnvFile() {
	candidates := []string{".env"}
	if root := findProjectRoot(); root != "" {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			if godotenv.Load(p) == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
