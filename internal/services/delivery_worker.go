package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/maxaizer/vacancy-dispatcher/internal/metrics"
	"github.com/maxaizer/vacancy-dispatcher/internal/queue"
	"github.com/maxaizer/vacancy-dispatcher/internal/repositories"
	log "github.com/sirupsen/logrus"
)

type messageSender interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photoRef string, caption string) (int, error)
}

type sendRecords interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Vacancy, error)
	HasBeenSent(ctx context.Context, userID int64, vacancyID uuid.UUID) (bool, error)
	RecordSend(ctx context.Context, userID int64, vacancyID uuid.UUID, messageID int) error
}

type DeliveryWorkerSettings struct {
	Pacing       time.Duration
	FetchTimeout time.Duration
	MaxRetries   int
}

type DeliveryWorker struct {
	consumer  queue.Consumer
	publisher queue.Publisher
	sender    messageSender
	records   sendRecords
	policy    RetryPolicy
	settings  DeliveryWorkerSettings
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewDeliveryWorker(consumer queue.Consumer, publisher queue.Publisher, sender messageSender,
	records sendRecords, settings DeliveryWorkerSettings) *DeliveryWorker {
	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = 5 * time.Second
	}
	return &DeliveryWorker{
		consumer:  consumer,
		publisher: publisher,
		sender:    sender,
		records:   records,
		policy:    RetryPolicy{MaxRetries: settings.MaxRetries},
		settings:  settings,
		sleep:     sleepContext,
	}
}

func (w *DeliveryWorker) Run(ctx context.Context) {
	log.Info("delivery worker started")
	for ctx.Err() == nil {
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).Errorf("failed to fetch task: %v", err)
			_ = w.sleep(ctx, time.Second)
			continue
		}
		if processed {
			_ = w.sleep(ctx, w.settings.Pacing)
		}
	}
	log.Info("delivery worker stopped")
}

// ProcessOne fetches and handles at most one task. It returns false when none arrived.
func (w *DeliveryWorker) ProcessOne(ctx context.Context) (bool, error) {
	delivery, err := w.consumer.Fetch(ctx, w.settings.FetchTimeout)
	if errors.Is(err, queue.ErrNoTask) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	result := w.handle(ctx, delivery)
	metrics.Deliveries.WithLabelValues(result).Inc()
	return true, nil
}

func (w *DeliveryWorker) handle(ctx context.Context, delivery *queue.Delivery) string {
	task := delivery.Task

	if task.IsVacancy() {
		vacancy, err := w.records.GetByID(ctx, *task.VacancyRef)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to load vacancy: %v", err)
			w.nack(ctx, delivery)
			return "error"
		}
		if vacancy == nil {
			log.Infof("vacancy %s was deleted, dropping delivery to %d", task.VacancyRef, task.RecipientID)
			w.ack(ctx, delivery)
			return "retracted"
		}

		sent, err := w.records.HasBeenSent(ctx, task.RecipientID, *task.VacancyRef)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to check send record: %v", err)
			w.nack(ctx, delivery)
			return "error"
		}
		if sent {
			w.ack(ctx, delivery)
			return "duplicate"
		}
	}

	messageID, err := w.send(ctx, task)
	if err == nil {
		if task.IsVacancy() {
			err = w.records.RecordSend(ctx, task.RecipientID, *task.VacancyRef, messageID)
			if errors.Is(err, repositories.ErrVacancyGone) {
				log.Warnf("vacancy %s was deleted while being delivered to %d", task.VacancyRef, task.RecipientID)
			} else if err != nil {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
					Errorf("vacancy %s delivered to %d but not recorded: %v", task.VacancyRef, task.RecipientID, err)
			}
		}
		w.ack(ctx, delivery)
		return "sent"
	}

	verdict := w.policy.Decide(task, err)
	switch verdict.Decision {
	case DecisionRetry:
		log.Warnf("rate limited sending to %d, retry %d in %v", task.RecipientID, task.RetryCount+1, verdict.Delay)
		if sleepErr := w.sleep(ctx, verdict.Delay); sleepErr != nil {
			w.nack(ctx, delivery)
			return "error"
		}
		retry := task
		retry.RetryCount++
		if pubErr := w.publisher.Publish(ctx, retry); pubErr != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).Errorf("failed to republish task: %v", pubErr)
			w.nack(ctx, delivery)
			return "error"
		}
		metrics.DeliveryRetries.Inc()
		w.ack(ctx, delivery)
		return "retried"
	case DecisionGiveUp:
		log.Infof("giving up delivery to %d: %v", task.RecipientID, err)
		w.ack(ctx, delivery)
		return "given_up"
	default:
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("failed to deliver to %d: %v", task.RecipientID, err)
		w.nack(ctx, delivery)
		return "failed"
	}
}

func (w *DeliveryWorker) send(ctx context.Context, task queue.Task) (int, error) {
	if task.PhotoRef != "" {
		return w.sender.SendPhoto(ctx, task.RecipientID, task.PhotoRef, task.PayloadText)
	}
	return w.sender.SendText(ctx, task.RecipientID, task.PayloadText)
}

func (w *DeliveryWorker) ack(ctx context.Context, delivery *queue.Delivery) {
	if err := delivery.Ack(ctx); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).Errorf("failed to ack task %s: %v", delivery.ID, err)
	}
}

func (w *DeliveryWorker) nack(ctx context.Context, delivery *queue.Delivery) {
	if err := delivery.Nack(ctx); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).Errorf("failed to nack task %s: %v", delivery.ID, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
