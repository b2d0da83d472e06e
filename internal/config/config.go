package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Bot        BotConfig        `mapstructure:"bot"`
	DB         DBConfig         `mapstructure:"db"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Delivery   DeliveryConfig   `mapstructure:"delivery"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	AI         AIConfig         `mapstructure:"ai"`
	HH         HHConfig         `mapstructure:"hh"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

type section interface {
	validate() error
	bindEnvironmentVariables() error
}

func (config *Config) sections() map[string]section {
	return map[string]section{
		"LoggerConfig":     config.Logger,
		"BotConfig":        config.Bot,
		"DBConfig":         config.DB,
		"QueueConfig":      config.Queue,
		"RedisConfig":      config.Redis,
		"ClassifierConfig": config.Classifier,
		"DeliveryConfig":   config.Delivery,
		"SchedulerConfig":  config.Scheduler,
		"CleanupConfig":    config.Cleanup,
		"AIConfig":         config.AI,
		"HHConfig":         config.HH,
		"HTTPConfig":       config.HTTP,
	}
}

var configFile = "./configs/config.yaml"

func Get() *Config {

	file := configFile
	if value, ok := os.LookupEnv("CONFIG_PATH"); ok {
		file = value
	} else if value, _ := os.LookupEnv("MODE"); value == "test" {
		file = "../../configs/config.yaml"
	}

	config, err := Load(file)
	if err != nil {
		log.Fatal(err)
	}

	return config
}

func Load(file string) (*Config, error) {

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("failed to load .env file: %v", err)
	}

	viper.SetConfigFile(file)
	viper.AutomaticEnv()
	setDefaults()

	if err := bindEnvironmentVariables(); err != nil {
		return nil, err
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Config{}
	if err := viper.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("logger.log_level", LevelInfo)
	viper.SetDefault("logger.output_file", "./logs/errors.log")
	viper.SetDefault("logger.app_name", "vacancy-dispatcher")
	viper.SetDefault("bot.max_requests_per_second", 25)
	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("queue.driver", QueueDriverMemory)
	viper.SetDefault("queue.stream", "vacancy:deliveries")
	viper.SetDefault("queue.group", "delivery-workers")
	viper.SetDefault("queue.max_deliveries", 5)
	viper.SetDefault("queue.claim_idle", "1m")
	viper.SetDefault("queue.fetch_timeout", "5s")
	viper.SetDefault("queue.memory_capacity", 10000)
	viper.SetDefault("redis.embedding_ttl", "720h")
	viper.SetDefault("classifier.threshold", 1.0)
	viper.SetDefault("classifier.embedding_weight", 0.7)
	viper.SetDefault("delivery.pacing", "400ms")
	viper.SetDefault("delivery.max_retries", 3)
	viper.SetDefault("delivery.embedded_worker", true)
	viper.SetDefault("scheduler.timezone", "Europe/Moscow")
	viper.SetDefault("scheduler.batch_spec", "0 */2 * * *")
	viper.SetDefault("scheduler.expiry_spec", "*/10 * * * *")
	viper.SetDefault("cleanup.spec", "35 0 * * *")
	viper.SetDefault("cleanup.backlog_retention", "48h")
	viper.SetDefault("cleanup.vacancy_retention", "48h")
	viper.SetDefault("ai.model", "text-embedding-004")
	viper.SetDefault("ai.max_requests_per_minute", 1500)
	viper.SetDefault("ai.max_requests_per_day", 100000)
	viper.SetDefault("hh.spec", "0 */8 * * *")
	viper.SetDefault("hh.max_requests_per_second", 2)
	viper.SetDefault("hh.per_page", 10)
	viper.SetDefault("hh.area_id", "113")
	viper.SetDefault("http.addr", ":8080")
}

func bindEnvironmentVariables() error {
	var errs []error

	for name, s := range (&Config{}).sections() {
		if err := s.bindEnvironmentVariables(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return createMultiError(errs)
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	for name, s := range config.sections() {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return createMultiError(errs)
	}

	return nil
}

func createMultiError(errs []error) error {
	return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
}

func bindEnv(bindings map[string]string) error {
	var errs []error
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return createMultiError(errs)
	}
	return nil
}
