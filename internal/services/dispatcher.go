package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/maxaizer/vacancy-dispatcher/internal/metrics"
	"github.com/maxaizer/vacancy-dispatcher/internal/queue"
	log "github.com/sirupsen/logrus"
)

var (
	ErrVacancyNotFound      = errors.New("vacancy not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrSubscriptionInactive = errors.New("subscription is not active")
)

type DispatchReport struct {
	Enqueued   int
	Backlogged int
	Skipped    int
	Failed     int
}

type dispatchVacancies interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Vacancy, error)
	GetProfessionMatches(ctx context.Context, vacancyID uuid.UUID) ([]entities.VacancyProfession, error)
	ReserveSend(ctx context.Context, userID int64, vacancyID uuid.UUID) (bool, error)
	ReleaseSend(ctx context.Context, userID int64, vacancyID uuid.UUID) error
}

type dispatchUsers interface {
	Get(ctx context.Context, telegramID int64) (*entities.User, error)
	GetEligibleByProfession(ctx context.Context, professionID uuid.UUID, now time.Time) ([]entities.User, error)
}

type backlogStore interface {
	Add(ctx context.Context, entry entities.BacklogEntry) (bool, error)
	Claim(ctx context.Context, userID int64, partition entities.BacklogPartition) ([]entities.BacklogEntry, error)
	Release(ctx context.Context, id uuid.UUID) error
}

type Dispatcher struct {
	vacancies dispatchVacancies
	users     dispatchUsers
	backlog   backlogStore
	publisher queue.Publisher
	now       func() time.Time
}

func NewDispatcher(vacancies dispatchVacancies, users dispatchUsers, backlog backlogStore,
	publisher queue.Publisher) *Dispatcher {
	return &Dispatcher{
		vacancies: vacancies,
		users:     users,
		backlog:   backlog,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch fans the vacancy out to every eligible user of each profession it matched.
// Repeated calls never enqueue a second delivery for the same user and vacancy.
func (d *Dispatcher) Dispatch(ctx context.Context, vacancyID uuid.UUID) (DispatchReport, error) {
	var report DispatchReport

	vacancy, err := d.vacancies.GetByID(ctx, vacancyID)
	if err != nil {
		return report, err
	}
	if vacancy == nil {
		return report, ErrVacancyNotFound
	}

	matches, err := d.vacancies.GetProfessionMatches(ctx, vacancyID)
	if err != nil {
		return report, err
	}
	professionIDs := make([]uuid.UUID, 0, len(matches)+1)
	for _, m := range matches {
		professionIDs = append(professionIDs, m.ProfessionID)
	}
	if len(professionIDs) == 0 {
		professionIDs = append(professionIDs, vacancy.ProfessionID)
	}

	now := d.now()
	seen := map[int64]struct{}{}
	for _, professionID := range professionIDs {
		users, err := d.users.GetEligibleByProfession(ctx, professionID, now)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to get users for profession %s: %v", professionID, err)
			report.Failed++
			continue
		}

		for _, user := range users {
			if _, ok := seen[user.TelegramID]; ok {
				continue
			}
			seen[user.TelegramID] = struct{}{}

			if err = d.deliver(ctx, user, *vacancy, professionID, &report); err != nil {
				report.Failed++
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
					Errorf("failed to dispatch vacancy %s to user %d: %v", vacancy.ID, user.TelegramID, err)
			}
		}
	}

	log.Infof("vacancy %s dispatched: %+v", vacancy.ID, report)
	return report, nil
}

func (d *Dispatcher) deliver(ctx context.Context, user entities.User, vacancy entities.Vacancy,
	professionID uuid.UUID, report *DispatchReport) error {

	switch user.DeliveryMode {
	case entities.ModeInstant:
		reserved, err := d.vacancies.ReserveSend(ctx, user.TelegramID, vacancy.ID)
		if err != nil {
			return err
		}
		if !reserved {
			report.Skipped++
			return nil
		}
		if err = d.publisher.Publish(ctx, queue.NewVacancyTask(user.TelegramID, vacancy.ID, vacancy.Text)); err != nil {
			if releaseErr := d.vacancies.ReleaseSend(ctx, user.TelegramID, vacancy.ID); releaseErr != nil {
				log.Errorf("failed to release reservation for user %d: %v", user.TelegramID, releaseErr)
			}
			return fmt.Errorf("publish task: %w", err)
		}
		report.Enqueued++
	case entities.ModeTwoHourBatch, entities.ModePullOnDemand:
		partition, _ := user.DeliveryMode.Partition()
		added, err := d.backlog.Add(ctx, entities.NewBacklogEntry(user.TelegramID, partition, vacancy, professionID))
		if err != nil {
			return err
		}
		if !added {
			report.Skipped++
			return nil
		}
		report.Backlogged++
	default:
		report.Skipped++
		return nil
	}

	metrics.Dispatched.WithLabelValues(string(user.DeliveryMode)).Inc()
	return nil
}

// PullBacklog enqueues everything the user accumulated in pull-on-demand mode and
// returns how many deliveries were enqueued.
func (d *Dispatcher) PullBacklog(ctx context.Context, userID int64) (int, error) {
	user, err := d.users.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}
	if !user.CanReceive(d.now()) {
		return 0, ErrSubscriptionInactive
	}

	return flushBacklog(ctx, d.backlog, d.publisher, userID, entities.PartitionPull)
}

func flushBacklog(ctx context.Context, backlog backlogStore, publisher queue.Publisher, userID int64,
	partition entities.BacklogPartition) (int, error) {

	entries, err := backlog.Claim(ctx, userID, partition)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, entry := range entries {
		task := queue.NewVacancyTask(userID, entry.VacancyID, entry.Text)
		if err = publisher.Publish(ctx, task); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
				Errorf("failed to enqueue backlog entry %s: %v", entry.ID, err)
			if releaseErr := backlog.Release(ctx, entry.ID); releaseErr != nil {
				log.Errorf("failed to release backlog entry %s: %v", entry.ID, releaseErr)
			}
			continue
		}
		enqueued++
	}

	metrics.BatchFlushEnqueued.Add(float64(enqueued))
	return enqueued, nil
}
