package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type VacancyCleanupRepository interface {
	RemoveOldVacancies(ctx context.Context, expirationTime time.Time) (int64, error)
}

type BacklogCleanupRepository interface {
	RemoveOld(ctx context.Context, expirationTime time.Time) (int64, error)
}

type CleanupSettings struct {
	Spec             string
	BacklogRetention time.Duration
	VacancyRetention time.Duration
}

type VacanciesCleaner struct {
	vacancies VacancyCleanupRepository
	backlog   BacklogCleanupRepository
	cron      *cron.Cron
	settings  CleanupSettings
}

func NewVacanciesCleaner(vacancies VacancyCleanupRepository, backlog BacklogCleanupRepository,
	settings CleanupSettings, location *time.Location) (*VacanciesCleaner, error) {

	if settings.BacklogRetention <= 0 || settings.VacancyRetention <= 0 {
		return nil, errors.New("retention must be greater than zero")
	}

	vc := &VacanciesCleaner{
		vacancies: vacancies,
		backlog:   backlog,
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		settings: settings,
	}

	_, err := vc.cron.AddFunc(settings.Spec, func() { vc.Clean(context.Background()) })
	if err != nil {
		return nil, err
	}

	return vc, nil
}

func (vc *VacanciesCleaner) Start() {
	vc.cron.Start()
	log.Infof("vacancies cleaner started, backlog retention: %v, vacancy retention: %v",
		vc.settings.BacklogRetention, vc.settings.VacancyRetention)
}

// Stop waits for a running sweep to finish.
func (vc *VacanciesCleaner) Stop() {
	<-vc.cron.Stop().Done()
}

func (vc *VacanciesCleaner) Clean(ctx context.Context) {
	now := time.Now().UTC()

	rows, err := vc.backlog.RemoveOld(ctx, now.Add(-vc.settings.BacklogRetention))
	if err != nil {
		log.Errorf("Failed to clean old backlog entries: %v", err)
	} else {
		log.Infof("Old backlog entries were cleaned at %v, affected rows: %v", now, rows)
	}

	rows, err = vc.vacancies.RemoveOldVacancies(ctx, now.Add(-vc.settings.VacancyRetention))
	if err != nil {
		log.Errorf("Failed to clean old vacancies: %v", err)
	} else {
		log.Infof("Old vacancies were cleaned at %v, affected rows: %v", now, rows)
	}
}
