package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/events"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/maxaizer/vacancy-dispatcher/internal/metrics"
	log "github.com/sirupsen/logrus"
)

type IngestOutcome string

const (
	OutcomeDuplicate IngestOutcome = "duplicate"
	OutcomeBlocked   IngestOutcome = "blocked"
	OutcomeNoMatch   IngestOutcome = "no_match"
	OutcomePersisted IngestOutcome = "persisted"
)

type IngestResult struct {
	Outcome   IngestOutcome
	VacancyID uuid.UUID
	StopWords []string
	Matches   []entities.ProfessionScore
	Dispatch  DispatchReport
}

type textClassifier interface {
	Classify(ctx context.Context, text string) (entities.Classification, error)
}

type vacancyStore interface {
	Persist(ctx context.Context, vacancy entities.Vacancy) (uuid.UUID, bool, error)
	AddProfessionMatch(ctx context.Context, vacancyID, professionID uuid.UUID, score float64) error
}

type vacancyDispatcher interface {
	Dispatch(ctx context.Context, vacancyID uuid.UUID) (DispatchReport, error)
}

// Ingestor runs a scraped message through deduplication, classification, persistence and fan-out.
type Ingestor struct {
	dedup      *Deduplicator
	classifier textClassifier
	vacancies  vacancyStore
	dispatcher vacancyDispatcher
	bus        EventBus.Bus
	locks      *keyedMutex
}

func NewIngestor(dedup *Deduplicator, classifier textClassifier, vacancies vacancyStore,
	dispatcher vacancyDispatcher, bus EventBus.Bus) *Ingestor {
	return &Ingestor{
		dedup:      dedup,
		classifier: classifier,
		vacancies:  vacancies,
		dispatcher: dispatcher,
		bus:        bus,
		locks:      newKeyedMutex(),
	}
}

func (i *Ingestor) Ingest(ctx context.Context, msg entities.ScrapedMessage) (IngestResult, error) {
	result, err := i.ingest(ctx, msg)
	if result.Outcome != "" {
		metrics.IngestedMessages.WithLabelValues(string(result.Outcome)).Inc()
	}
	return result, err
}

func (i *Ingestor) ingest(ctx context.Context, msg entities.ScrapedMessage) (IngestResult, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return IngestResult{Outcome: OutcomeNoMatch}, nil
	}

	hash := entities.Fingerprint(msg.Text)
	unlock := i.locks.Lock(hash)
	defer unlock()

	existing, err := i.dedup.Lookup(ctx, hash)
	if err != nil {
		return IngestResult{}, fmt.Errorf("lookup fingerprint: %w", err)
	}
	if existing != nil {
		return IngestResult{Outcome: OutcomeDuplicate, VacancyID: existing.ID}, nil
	}

	classification, err := i.classifier.Classify(ctx, msg.Text)
	if err != nil {
		return IngestResult{}, fmt.Errorf("classify message: %w", err)
	}
	if classification.Blocked {
		log.Debugf("message from chat %d blocked by stop words %v", msg.OriginChat, classification.StopWords)
		return IngestResult{Outcome: OutcomeBlocked, StopWords: classification.StopWords}, nil
	}
	if !classification.Matched() {
		return IngestResult{Outcome: OutcomeNoMatch}, nil
	}

	best := classification.Matches[0]
	vacancy := entities.Vacancy{
		ID:              uuid.New(),
		Hash:            hash,
		Text:            strings.TrimSpace(msg.Text),
		ProfessionID:    best.ProfessionID,
		Score:           best.Total,
		URL:             msg.Link,
		SourceChat:      msg.OriginChat,
		SourceMessageID: msg.MessageID,
		AuthorName:      msg.SenderName,
		AuthorHandle:    msg.SenderHandle,
		ForwardedFrom:   msg.ForwardedFrom,
	}

	id, created, err := i.vacancies.Persist(ctx, vacancy)
	if err != nil {
		return IngestResult{}, fmt.Errorf("persist vacancy: %w", err)
	}
	i.dedup.Remember(hash, id)
	if !created {
		return IngestResult{Outcome: OutcomeDuplicate, VacancyID: id}, nil
	}
	vacancy.ID = id

	for _, match := range classification.Matches {
		if err = i.vacancies.AddProfessionMatch(ctx, id, match.ProfessionID, match.Total); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to map vacancy %s to profession %s: %v", id, match.Name, err)
		}
	}

	log.Infof("vacancy %s persisted for %s (score %.2f)", id, best.Name, best.Total)
	if i.bus != nil {
		i.bus.Publish(events.VacancyPersistedTopic, events.VacancyPersisted{Vacancy: vacancy, Matches: classification.Matches})
	}

	result := IngestResult{Outcome: OutcomePersisted, VacancyID: id, Matches: classification.Matches}
	result.Dispatch, err = i.dispatcher.Dispatch(ctx, id)
	if err != nil {
		return result, fmt.Errorf("dispatch vacancy %s: %w", id, err)
	}
	return result, nil
}
