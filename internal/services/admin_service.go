package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/clients/telegram"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/events"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/maxaizer/vacancy-dispatcher/internal/repositories"
	log "github.com/sirupsen/logrus"
)

var (
	ErrProfessionNotFound = errors.New("profession not found")
	ErrKeywordNotFound    = errors.New("keyword not found")
	ErrStopWordNotFound   = errors.New("stop word not found")
	ErrInvalidWeight      = fmt.Errorf("weight must be between %.1f and %.1f",
		entities.MinKeywordWeight, entities.MaxKeywordWeight)
	ErrAlreadyExists   = errors.New("already exists")
	ErrRescrapeDenied  = errors.New("job board rescrape is disabled")
	ErrBroadcastDenied = errors.New("broadcasts are disabled")
)

type adminProfessions interface {
	GetAll(ctx context.Context) ([]entities.Profession, error)
	GetByName(ctx context.Context, name string) (*entities.Profession, error)
	Add(ctx context.Context, profession entities.Profession) error
	SetDescription(ctx context.Context, id uuid.UUID, description string) error
	Remove(ctx context.Context, id uuid.UUID) error
	AddKeyword(ctx context.Context, keyword entities.Keyword) error
	RemoveKeyword(ctx context.Context, professionID uuid.UUID, word string) (bool, error)
	SendStats(ctx context.Context) ([]entities.ProfessionStat, error)
}

type adminStopWords interface {
	Add(ctx context.Context, word entities.StopWord) error
	Remove(ctx context.Context, word string) (bool, error)
}

type adminVacancies interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Vacancy, error)
	GetSendRecords(ctx context.Context, vacancyID uuid.UUID) ([]entities.SentVacancy, error)
	Delete(ctx context.Context, vacancy entities.Vacancy) error
}

type messageDeleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Rescraper pulls fresh vacancies from a job board into the ingest path.
type Rescraper interface {
	Run(ctx context.Context) (int, error)
}

type broadcaster interface {
	Broadcast(ctx context.Context, rawAudience, text, photoRef string) (int, error)
}

// RetractionReport counts delivered copies of a deleted vacancy.
type RetractionReport struct {
	Retracted int
	Failed    int
}

type AdminService struct {
	professions adminProfessions
	stopWords   adminStopWords
	vacancies   adminVacancies
	deleter     messageDeleter
	dedup       *Deduplicator
	bus         EventBus.Bus
	rescraper   Rescraper
	mailer      broadcaster
}

func NewAdminService(professions adminProfessions, stopWords adminStopWords, vacancies adminVacancies,
	deleter messageDeleter, dedup *Deduplicator, bus EventBus.Bus) *AdminService {
	return &AdminService{
		professions: professions,
		stopWords:   stopWords,
		vacancies:   vacancies,
		deleter:     deleter,
		dedup:       dedup,
		bus:         bus,
	}
}

func (s *AdminService) SetRescraper(rescraper Rescraper) {
	s.rescraper = rescraper
}

func (s *AdminService) SetMailer(mailer broadcaster) {
	s.mailer = mailer
}

// ParseWeight accepts both "0.5" and "0,5".
func ParseWeight(raw string) (float64, error) {
	weight, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil {
		return 0, ErrInvalidWeight
	}
	if weight < entities.MinKeywordWeight || weight > entities.MaxKeywordWeight {
		return 0, ErrInvalidWeight
	}
	return weight, nil
}

func (s *AdminService) Professions(ctx context.Context) ([]entities.Profession, error) {
	return s.professions.GetAll(ctx)
}

func (s *AdminService) AddProfession(ctx context.Context, name, description string) (entities.Profession, error) {
	profession, err := entities.NewProfession(name, description)
	if err != nil {
		return entities.Profession{}, err
	}
	if err = s.professions.Add(ctx, profession); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return entities.Profession{}, ErrAlreadyExists
		}
		return entities.Profession{}, err
	}
	s.changed("profession added")
	return profession, nil
}

func (s *AdminService) RemoveProfession(ctx context.Context, name string) error {
	profession, err := s.profession(ctx, name)
	if err != nil {
		return err
	}
	if err = s.professions.Remove(ctx, profession.ID); err != nil {
		return err
	}
	s.changed("profession removed")
	return nil
}

func (s *AdminService) SetDescription(ctx context.Context, name, description string) error {
	profession, err := s.profession(ctx, name)
	if err != nil {
		return err
	}
	if err = s.professions.SetDescription(ctx, profession.ID, strings.TrimSpace(description)); err != nil {
		return err
	}
	s.changed("description updated")
	return nil
}

// AddKeyword adds the keyword or updates its weight when the profession already has it.
func (s *AdminService) AddKeyword(ctx context.Context, professionName, word, rawWeight string) (entities.Keyword, error) {
	weight, err := ParseWeight(rawWeight)
	if err != nil {
		return entities.Keyword{}, err
	}
	profession, err := s.profession(ctx, professionName)
	if err != nil {
		return entities.Keyword{}, err
	}
	keyword, err := entities.NewKeyword(profession.ID, word, weight)
	if err != nil {
		return entities.Keyword{}, err
	}
	if err = s.professions.AddKeyword(ctx, keyword); err != nil {
		return entities.Keyword{}, err
	}
	s.changed("keyword added")
	return keyword, nil
}

func (s *AdminService) RemoveKeyword(ctx context.Context, professionName, word string) error {
	profession, err := s.profession(ctx, professionName)
	if err != nil {
		return err
	}
	removed, err := s.professions.RemoveKeyword(ctx, profession.ID, entities.NormalizeText(word))
	if err != nil {
		return err
	}
	if !removed {
		return ErrKeywordNotFound
	}
	s.changed("keyword removed")
	return nil
}

func (s *AdminService) AddStopWord(ctx context.Context, word string) error {
	stopWord, err := entities.NewStopWord(word)
	if err != nil {
		return err
	}
	if err = s.stopWords.Add(ctx, stopWord); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return ErrAlreadyExists
		}
		return err
	}
	s.changed("stop word added")
	return nil
}

func (s *AdminService) RemoveStopWord(ctx context.Context, word string) error {
	removed, err := s.stopWords.Remove(ctx, entities.NormalizeText(word))
	if err != nil {
		return err
	}
	if !removed {
		return ErrStopWordNotFound
	}
	s.changed("stop word removed")
	return nil
}

func (s *AdminService) SendStats(ctx context.Context) ([]entities.ProfessionStat, error) {
	return s.professions.SendStats(ctx)
}

func (s *AdminService) Rescrape(ctx context.Context) (int, error) {
	if s.rescraper == nil {
		return 0, ErrRescrapeDenied
	}
	return s.rescraper.Run(ctx)
}

// Broadcast sends text, and the photo when photoRef is set, to every user in the audience.
func (s *AdminService) Broadcast(ctx context.Context, audience, text, photoRef string) (int, error) {
	if s.mailer == nil {
		return 0, ErrBroadcastDenied
	}
	return s.mailer.Broadcast(ctx, audience, text, photoRef)
}

// DeleteVacancy retracts every delivered copy of the vacancy and removes it with all
// dependent rows. A copy that cannot be retracted does not stop the deletion.
func (s *AdminService) DeleteVacancy(ctx context.Context, id uuid.UUID) (RetractionReport, error) {
	var report RetractionReport

	vacancy, err := s.vacancies.GetByID(ctx, id)
	if err != nil {
		return report, err
	}
	if vacancy == nil {
		return report, ErrVacancyNotFound
	}

	records, err := s.vacancies.GetSendRecords(ctx, id)
	if err != nil {
		return report, err
	}
	for _, record := range records {
		if !record.Delivered() {
			continue
		}
		err = s.deleter.DeleteMessage(ctx, record.UserID, record.MessageID)
		if err != nil {
			report.Failed++
			if !errors.Is(err, telegram.ErrRecipientUnavailable) {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
					Errorf("failed to retract vacancy %s from user %d: %v", id, record.UserID, err)
			}
			continue
		}
		report.Retracted++
	}

	if err = s.vacancies.Delete(ctx, *vacancy); err != nil {
		return report, err
	}
	s.dedup.Forget(vacancy.Hash)

	log.Infof("vacancy %s deleted, retracted %d copies, failed %d", id, report.Retracted, report.Failed)
	return report, nil
}

func (s *AdminService) profession(ctx context.Context, name string) (*entities.Profession, error) {
	profession, err := s.professions.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if profession == nil {
		return nil, ErrProfessionNotFound
	}
	return profession, nil
}

func (s *AdminService) changed(reason string) {
	if s.bus != nil {
		s.bus.Publish(events.ClassifierConfigChangedTopic, events.ClassifierConfigChanged{Reason: reason})
	}
}
