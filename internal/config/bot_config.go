package config

import (
	"fmt"
	"slices"
	"strings"
)

type BotConfig struct {
	Token                string  `mapstructure:"token"`
	AdminIDs             []int64 `mapstructure:"admin_ids"`
	AdminChatID          int64   `mapstructure:"admin_chat_id"`
	MaxRequestsPerSecond float32 `mapstructure:"max_requests_per_second"`
}

func (config BotConfig) IsAdmin(userID int64) bool {
	return slices.Contains(config.AdminIDs, userID)
}

func (config BotConfig) validate() error {

	var missingFields []string

	if config.Token == "" {
		missingFields = append(missingFields, "token")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missingFields, ", "))
	}

	if config.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("max_requests_per_second must not be negative")
	}

	return nil
}

func (config BotConfig) bindEnvironmentVariables() error {
	return bindEnv(map[string]string{
		"bot.token":         "TOKEN",
		"bot.admin_ids":     "ADMIN_IDS",
		"bot.admin_chat_id": "ADMIN_CHAT_ID",
	})
}
