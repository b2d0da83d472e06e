package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maxaizer/vacancy-dispatcher/internal/clients/hh"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	hhCursorKey       = "hh_scraper_last_run"
	hhMaxPages        = 5
	hhInitialLookback = 24 * time.Hour
)

type vacancySearcher interface {
	GetVacancies(ctx context.Context, parameters hh.SearchParameters) ([]hh.VacancyPreview, error)
}

type messageIngestor interface {
	Ingest(ctx context.Context, msg entities.ScrapedMessage) (IngestResult, error)
}

type cursorStore interface {
	Save(ctx context.Context, id string, data []byte) error
	Load(ctx context.Context, id string) ([]byte, error)
}

type professionNames interface {
	GetAll(ctx context.Context) ([]entities.Profession, error)
}

type HHScraperSettings struct {
	Spec    string
	Queries []string
	AreaID  string
	PerPage int
}

// HHScraper feeds vacancies published on hh.ru since its previous run into the ingest path.
// Without configured queries it searches by profession names.
type HHScraper struct {
	searcher    vacancySearcher
	ingestor    messageIngestor
	cursor      cursorStore
	professions professionNames
	settings    HHScraperSettings
	cron        *cron.Cron
	mu          sync.Mutex
	now         func() time.Time
}

func NewHHScraper(searcher vacancySearcher, ingestor messageIngestor, cursor cursorStore,
	professions professionNames, settings HHScraperSettings, location *time.Location) (*HHScraper, error) {

	if settings.AreaID == "" {
		settings.AreaID = hh.AreaRussia
	}
	s := &HHScraper{
		searcher:    searcher,
		ingestor:    ingestor,
		cursor:      cursor,
		professions: professions,
		settings:    settings,
		cron:        cron.New(cron.WithLocation(location)),
		now:         func() time.Time { return time.Now().UTC() },
	}

	_, err := s.cron.AddFunc(settings.Spec, func() {
		if _, err := s.Run(context.Background()); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeHhApi).Errorf("hh rescrape failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HHScraper) Start() {
	s.cron.Start()
	log.Infof("hh scraper started")
}

func (s *HHScraper) Stop() {
	<-s.cron.Stop().Done()
}

// Run performs one rescrape and returns the number of new vacancies persisted.
func (s *HHScraper) Run(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startedAt := s.now()
	dateFrom, err := s.lastRun(ctx)
	if err != nil {
		return 0, err
	}
	if dateFrom.IsZero() {
		dateFrom = startedAt.Add(-hhInitialLookback)
	}

	queries, err := s.queries(ctx)
	if err != nil {
		return 0, err
	}

	persisted := 0
	var errs []error
	for _, query := range queries {
		n, err := s.scrapeQuery(ctx, query, dateFrom)
		persisted += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return persisted, errors.Join(errs...)
	}

	if err = s.cursor.Save(ctx, hhCursorKey, []byte(startedAt.Format(time.RFC3339))); err != nil {
		return persisted, err
	}

	log.Infof("hh rescrape finished: %d queries, %d new vacancies", len(queries), persisted)
	return persisted, nil
}

func (s *HHScraper) scrapeQuery(ctx context.Context, query string, dateFrom time.Time) (int, error) {
	persisted := 0
	for page := 0; page < hhMaxPages; page++ {
		previews, err := s.searcher.GetVacancies(ctx, hh.SearchParameters{
			Text:                   query,
			AreaID:                 s.settings.AreaID,
			OrderByPublicationTime: true,
			DateFrom:               dateFrom,
			Page:                   page,
			PerPage:                s.settings.PerPage,
		})
		if err != nil {
			if errors.Is(err, hh.ErrTooDeepPagination) {
				log.Warningf("too deep pagination for query %q, page: %d", query, page)
				return persisted, nil
			}
			return persisted, err
		}

		for _, preview := range previews {
			result, err := s.ingestor.Ingest(ctx, entities.ScrapedMessage{
				SenderName: preview.Employer.Name,
				Text:       preview.Text(),
				Link:       preview.Url,
				Timestamp:  preview.PublishedAt.Time,
			})
			if err != nil {
				log.Errorf("failed to ingest hh vacancy %s: %v", preview.ID, err)
				continue
			}
			if result.Outcome == OutcomePersisted {
				persisted++
			}
		}

		if len(previews) < s.settings.PerPage {
			break
		}
	}
	return persisted, nil
}

func (s *HHScraper) queries(ctx context.Context) ([]string, error) {
	if len(s.settings.Queries) > 0 {
		return s.settings.Queries, nil
	}
	professions, err := s.professions.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(professions, func(p entities.Profession, _ int) string { return p.Name }), nil
}

func (s *HHScraper) lastRun(ctx context.Context) (time.Time, error) {
	raw, err := s.cursor.Load(ctx, hhCursorKey)
	if err != nil || raw == nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		log.Warnf("ignoring malformed hh cursor %q: %v", raw, err)
		return time.Time{}, nil
	}
	return t, nil
}
