package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_EnvironmentOverrideWorksCorrect(t *testing.T) {
	t.Setenv("TOKEN", "overrideToken")
	t.Setenv("AI_KEY", "overrideKey")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_CONNECTION_STRING", "host=localhost user=bot")
	t.Setenv("ADMIN_IDS", "1,2")
	t.Setenv("QUEUE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CLASSIFIER_THRESHOLD", "1.5")
	t.Setenv("INGEST_TOKEN", "secret")

	cfg, err := Load("../../configs/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "overrideToken", cfg.Bot.Token)
	assert.Equal(t, "overrideKey", cfg.AI.Key)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "host=localhost user=bot", cfg.DB.ConnectionString)
	assert.Equal(t, []int64{1, 2}, cfg.Bot.AdminIDs)
	assert.True(t, cfg.Bot.IsAdmin(2))
	assert.False(t, cfg.Bot.IsAdmin(3))
	assert.Equal(t, QueueDriverRedis, cfg.Queue.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 1.5, cfg.Classifier.Threshold)
	assert.Equal(t, "secret", cfg.HTTP.IngestToken)
}

func Test_Config_Defaults(t *testing.T) {
	t.Setenv("TOKEN", "token")

	cfg, err := Load("../../configs/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Classifier.EmbeddingWeight)
	assert.Equal(t, 400*time.Millisecond, cfg.Delivery.Pacing)
	assert.Equal(t, 3, cfg.Delivery.MaxRetries)
	assert.Equal(t, 48*time.Hour, cfg.Cleanup.BacklogRetention)
	assert.Equal(t, 5*time.Second, cfg.Queue.FetchTimeout)
	assert.Equal(t, "0 */2 * * *", cfg.Scheduler.BatchSpec)
	assert.Equal(t, "*/10 * * * *", cfg.Scheduler.ExpirySpec)

	loc, err := cfg.Scheduler.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())
}

func Test_Config_Validate_ShouldCollectErrors(t *testing.T) {
	cfg := Config{
		Logger:    LoggerConfig{LogLevel: LevelInfo, OutputFile: "x"},
		DB:        DBConfig{Driver: "mysql", ConnectionString: "x"},
		Queue:     QueueConfig{Driver: "kafka"},
		Scheduler: SchedulerConfig{Timezone: "Mars/Olympus", BatchSpec: "bad"},
		Cleanup:   CleanupConfig{Spec: "35 0 * * *", BacklogRetention: time.Hour, VacancyRetention: time.Hour},
		HTTP:      HTTPConfig{Addr: ":8080"},
	}

	err := cfg.validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "BotConfig")
	assert.Contains(t, err.Error(), "unsupported db driver")
	assert.Contains(t, err.Error(), "unsupported queue driver")
	assert.Contains(t, err.Error(), "invalid timezone")
	assert.Contains(t, err.Error(), "invalid expiry_spec")
}
