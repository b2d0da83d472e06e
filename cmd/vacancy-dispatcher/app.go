package main

import (
	"context"
	"fmt"
	"os"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/vacancy-dispatcher/internal/clients/telegram"
	"github.com/maxaizer/vacancy-dispatcher/internal/config"
	"github.com/maxaizer/vacancy-dispatcher/internal/queue"
	"github.com/maxaizer/vacancy-dispatcher/internal/repositories"
	"github.com/maxaizer/vacancy-dispatcher/internal/services"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type deliveryQueue interface {
	queue.Publisher
	queue.Consumer
}

// runtime holds what both the serve and worker commands need.
type runtime struct {
	cfg       *config.Config
	db        *repositories.DbContext
	redis     redis.UniversalClient
	queue     deliveryQueue
	botApi    *botApi.BotAPI
	sender    *telegram.Sender
	vacancies *repositories.Vacancies
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	dbContext, err := repositories.NewDbContext(cfg.DB.Driver, cfg.DB.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("can't create db context: %w", err)
	}
	rt.db = dbContext
	if err = dbContext.Migrate(); err != nil {
		rt.close()
		return nil, fmt.Errorf("can't migrate db context: %w", err)
	}
	rt.vacancies = repositories.NewVacanciesRepository(dbContext.DB)

	if cfg.Redis.Enabled() {
		rt.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = rt.redis.Ping(ctx).Err(); err != nil {
			rt.close()
			return nil, fmt.Errorf("can't connect to redis: %w", err)
		}
	}

	if rt.queue, err = newQueue(ctx, cfg, rt.redis); err != nil {
		rt.close()
		return nil, err
	}

	rt.botApi, err = botApi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("can't create bot api: %w", err)
	}
	rt.sender = telegram.NewSender(rt.botApi, cfg.Bot.MaxRequestsPerSecond)

	return rt, nil
}

func newQueue(ctx context.Context, cfg *config.Config, client redis.UniversalClient) (deliveryQueue, error) {
	switch cfg.Queue.Driver {
	case config.QueueDriverRedis:
		if client == nil {
			return nil, fmt.Errorf("queue driver %q requires redis.addr", cfg.Queue.Driver)
		}
		consumer := cfg.Queue.Consumer
		if consumer == "" {
			host, _ := os.Hostname()
			consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
		}
		return queue.NewRedisStream(ctx, client, queue.RedisStreamConfig{
			Stream:        cfg.Queue.Stream,
			Group:         cfg.Queue.Group,
			Consumer:      consumer,
			MaxDeliveries: cfg.Queue.MaxDeliveries,
			ClaimIdle:     cfg.Queue.ClaimIdle,
		})
	default:
		return queue.NewMemory(cfg.Queue.MemoryCapacity, cfg.Queue.MaxDeliveries), nil
	}
}

func (rt *runtime) deliveryWorker() *services.DeliveryWorker {
	return services.NewDeliveryWorker(rt.queue, rt.queue, rt.sender, rt.vacancies, services.DeliveryWorkerSettings{
		Pacing:       rt.cfg.Delivery.Pacing,
		FetchTimeout: rt.cfg.Queue.FetchTimeout,
		MaxRetries:   rt.cfg.Delivery.MaxRetries,
	})
}

func (rt *runtime) close() {
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			log.Errorf("failed to close redis client: %v", err)
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			log.Errorf("failed to close db: %v", err)
		}
	}
}
