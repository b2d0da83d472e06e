package services

import (
	"context"
	"time"

	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/maxaizer/vacancy-dispatcher/internal/queue"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

type batchBacklog interface {
	backlogStore
	UsersWithPending(ctx context.Context, partition entities.BacklogPartition) ([]int64, error)
}

type batchUsers interface {
	GetEligibleByMode(ctx context.Context, mode entities.DeliveryMode, now time.Time) ([]entities.User, error)
}

// BatchScheduler flushes the two-hour backlog of every eligible user on a cron schedule.
type BatchScheduler struct {
	users     batchUsers
	backlog   batchBacklog
	publisher queue.Publisher
	cron      *cron.Cron
	now       func() time.Time
}

func NewBatchScheduler(users batchUsers, backlog batchBacklog, publisher queue.Publisher,
	spec string, location *time.Location) (*BatchScheduler, error) {

	s := &BatchScheduler{
		users:     users,
		backlog:   backlog,
		publisher: publisher,
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		now: func() time.Time { return time.Now().UTC() },
	}

	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.FlushNow(context.Background()); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("two-hour flush failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BatchScheduler) Start() {
	s.cron.Start()
	log.Infof("batch scheduler started")
}

func (s *BatchScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// FlushNow runs one firing synchronously and returns the number of enqueued deliveries.
// Only eligible two-hour users that have pending entries are flushed.
func (s *BatchScheduler) FlushNow(ctx context.Context) (int, error) {
	pending, err := s.backlog.UsersWithPending(ctx, entities.PartitionTwoHours)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	eligible, err := s.users.GetEligibleByMode(ctx, entities.ModeTwoHourBatch, s.now())
	if err != nil {
		return 0, err
	}
	userIDs := lo.Intersect(pending, lo.Map(eligible, func(u entities.User, _ int) int64 { return u.TelegramID }))

	total := 0
	for _, userID := range userIDs {
		enqueued, err := flushBacklog(ctx, s.backlog, s.publisher, userID, entities.PartitionTwoHours)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to flush backlog of user %d: %v", userID, err)
			continue
		}
		total += enqueued
	}

	log.Infof("two-hour flush enqueued %d deliveries for %d users", total, len(userIDs))
	return total, nil
}
