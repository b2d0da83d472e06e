package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type ClassifierConfig struct {
	Threshold       float64 `mapstructure:"threshold"`
	EmbeddingWeight float64 `mapstructure:"embedding_weight"`
}

func (config ClassifierConfig) validate() error {
	if config.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative")
	}
	if config.EmbeddingWeight < 0 {
		return fmt.Errorf("embedding_weight must not be negative")
	}
	return nil
}

func (config ClassifierConfig) bindEnvironmentVariables() error {
	return bindEnv(map[string]string{
		"classifier.threshold":        "CLASSIFIER_THRESHOLD",
		"classifier.embedding_weight": "CLASSIFIER_EMBEDDING_WEIGHT",
	})
}

type DeliveryConfig struct {
	Pacing         time.Duration `mapstructure:"pacing"`
	MaxRetries     int           `mapstructure:"max_retries"`
	EmbeddedWorker bool          `mapstructure:"embedded_worker"`
}

func (config DeliveryConfig) validate() error {
	if config.Pacing < 0 {
		return fmt.Errorf("pacing must not be negative")
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

func (config DeliveryConfig) bindEnvironmentVariables() error {
	return bindEnv(map[string]string{
		"delivery.embedded_worker": "EMBEDDED_WORKER",
	})
}

type SchedulerConfig struct {
	Timezone  string `mapstructure:"timezone"`
	BatchSpec string `mapstructure:"batch_spec"`
	// ExpirySpec drives the subscription expiry notices.
	ExpirySpec string `mapstructure:"expiry_spec"`
}

func (config SchedulerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(config.Timezone)
}

func (config SchedulerConfig) validate() error {
	var errs []error
	if _, err := config.Location(); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone: %w", err))
	}
	if _, err := cron.ParseStandard(config.BatchSpec); err != nil {
		errs = append(errs, fmt.Errorf("invalid batch_spec: %w", err))
	}
	if _, err := cron.ParseStandard(config.ExpirySpec); err != nil {
		errs = append(errs, fmt.Errorf("invalid expiry_spec: %w", err))
	}
	return errors.Join(errs...)
}

func (config SchedulerConfig) bindEnvironmentVariables() error {
	return bindEnv(map[string]string{
		"scheduler.timezone": "TZ_SCHEDULER",
	})
}

type CleanupConfig struct {
	Spec             string        `mapstructure:"spec"`
	BacklogRetention time.Duration `mapstructure:"backlog_retention"`
	VacancyRetention time.Duration `mapstructure:"vacancy_retention"`
}

func (config CleanupConfig) validate() error {
	var errs []error
	if _, err := cron.ParseStandard(config.Spec); err != nil {
		errs = append(errs, fmt.Errorf("invalid spec: %w", err))
	}
	if config.BacklogRetention <= 0 || config.VacancyRetention <= 0 {
		errs = append(errs, fmt.Errorf("retention must be positive"))
	}
	return errors.Join(errs...)
}

func (config CleanupConfig) bindEnvironmentVariables() error {
	return nil
}
