package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

type AIConfig struct {
	Key                  string  `mapstructure:"key"`
	Model                string  `mapstructure:"model"`
	MaxRequestsPerMinute float32 `mapstructure:"max_requests_per_minute"`
	MaxRequestsPerDay    float32 `mapstructure:"max_requests_per_day"`
}

// Enabled is false when no key is configured, classification then runs on keywords only.
func (config AIConfig) Enabled() bool {
	return config.Key != ""
}

func (config AIConfig) validate() error {
	if config.Enabled() && config.Model == "" {
		return fmt.Errorf("missing variable: model")
	}
	return nil
}

func (config AIConfig) bindEnvironmentVariables() error {
	return bindEnv(map[string]string{
		"ai.key":   "AI_KEY",
		"ai.model": "AI_MODEL",
	})
}

type HHConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	Spec                 string   `mapstructure:"spec"`
	Queries              []string `mapstructure:"queries"`
	AreaID               string   `mapstructure:"area_id"`
	PerPage              int      `mapstructure:"per_page"`
	MaxRequestsPerSecond float32  `mapstructure:"max_requests_per_second"`
}

func (config HHConfig) validate() error {
	if !config.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(config.Spec); err != nil {
		return fmt.Errorf("invalid spec: %w", err)
	}
	if config.PerPage <= 0 || config.PerPage > 100 {
		return fmt.Errorf("per_page must be between 1 and 100")
	}
	return nil
}

func (config HHConfig) bindEnvironmentVariables() error {
	return bindEnv(map[string]string{
		"hh.enabled": "HH_ENABLED",
	})
}

type HTTPConfig struct {
	Addr        string `mapstructure:"addr"`
	IngestToken string `mapstructure:"ingest_token"`
}

func (config HTTPConfig) validate() error {
	if config.Addr == "" {
		return fmt.Errorf("missing variable: addr")
	}
	return nil
}

func (config HTTPConfig) bindEnvironmentVariables() error {
	return bindEnv(map[string]string{
		"http.addr":         "HTTP_ADDR",
		"http.ingest_token": "INGEST_TOKEN",
	})
}
