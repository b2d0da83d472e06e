package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/maxaizer/vacancy-dispatcher/internal/queue"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const subscriptionEndedText = "Ваша подписка закончилась, вакансии больше не приходят. " +
	"Продлите подписку, чтобы снова их получать."

var ErrEmptyBroadcast = errors.New("broadcast has neither text nor photo")

type mailerUsers interface {
	GetAudience(ctx context.Context, audience entities.Audience, now time.Time) ([]int64, error)
	GetNewlyExpired(ctx context.Context, now time.Time) ([]int64, error)
	SetExpiryNotified(ctx context.Context, telegramID int64, notified bool) (bool, error)
}

type mailerProfessions interface {
	GetByName(ctx context.Context, name string) (*entities.Profession, error)
}

// Mailer sends non-vacancy messages through the delivery queue: admin broadcasts and
// subscription expiry notices.
type Mailer struct {
	users       mailerUsers
	professions mailerProfessions
	publisher   queue.Publisher
	cron        *cron.Cron
	now         func() time.Time
}

func NewMailer(users mailerUsers, professions mailerProfessions, publisher queue.Publisher,
	expirySpec string, location *time.Location) (*Mailer, error) {

	m := &Mailer{
		users:       users,
		professions: professions,
		publisher:   publisher,
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		now: func() time.Time { return time.Now().UTC() },
	}

	_, err := m.cron.AddFunc(expirySpec, func() {
		if _, err := m.NotifyExpired(context.Background()); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("expiry notification failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mailer) Start() {
	m.cron.Start()
	log.Info("mailer started")
}

func (m *Mailer) Stop() {
	<-m.cron.Stop().Done()
}

// ParseAudience accepts all, subscribed, unsubscribed, expired or a profession name.
func (m *Mailer) ParseAudience(ctx context.Context, raw string) (entities.Audience, error) {
	raw = strings.TrimSpace(raw)
	switch kind := entities.AudienceKind(strings.ToLower(raw)); kind {
	case entities.AudienceAll, entities.AudienceSubscribed, entities.AudienceUnsubscribed, entities.AudienceExpired:
		return entities.Audience{Kind: kind}, nil
	}

	profession, err := m.professions.GetByName(ctx, raw)
	if err != nil {
		return entities.Audience{}, err
	}
	if profession == nil {
		return entities.Audience{}, ErrProfessionNotFound
	}
	return entities.Audience{Kind: entities.AudienceProfession, ProfessionID: profession.ID}, nil
}

// Broadcast enqueues the message for every user in the audience and returns how many
// tasks were published.
func (m *Mailer) Broadcast(ctx context.Context, rawAudience, text, photoRef string) (int, error) {
	text, photoRef = strings.TrimSpace(text), strings.TrimSpace(photoRef)
	if text == "" && photoRef == "" {
		return 0, ErrEmptyBroadcast
	}
	audience, err := m.ParseAudience(ctx, rawAudience)
	if err != nil {
		return 0, err
	}
	recipients, err := m.users.GetAudience(ctx, audience, m.now())
	if err != nil {
		return 0, err
	}

	published := 0
	for _, recipient := range recipients {
		task := queue.NewMessageTask(recipient, text)
		task.PhotoRef = photoRef
		if err = m.publisher.Publish(ctx, task); err != nil {
			return published, err
		}
		published++
	}

	log.Infof("broadcast to %s enqueued for %d users", rawAudience, published)
	return published, nil
}

// NotifyExpired tells every user whose subscription just ended, once per subscription.
func (m *Mailer) NotifyExpired(ctx context.Context) (int, error) {
	ids, err := m.users.GetNewlyExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}

	notified := 0
	for _, id := range ids {
		claimed, err := m.users.SetExpiryNotified(ctx, id, true)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to mark expiry of user %d: %v", id, err)
			continue
		}
		if !claimed {
			continue
		}
		if err = m.publisher.Publish(ctx, queue.NewMessageTask(id, subscriptionEndedText)); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
				Errorf("failed to enqueue expiry notice for %d: %v", id, err)
			if _, err = m.users.SetExpiryNotified(ctx, id, false); err != nil {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
					Errorf("failed to rearm expiry notice for %d: %v", id, err)
			}
			continue
		}
		notified++
	}

	if notified > 0 {
		log.Infof("notified %d users about expired subscriptions", notified)
	}
	return notified, nil
}
