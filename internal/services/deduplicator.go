package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	gocache "github.com/patrickmn/go-cache"
)

type vacancyLookup interface {
	GetByHash(ctx context.Context, hash string) (*entities.Vacancy, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Vacancy, error)
}

// Deduplicator answers whether a fingerprint belongs to a stored vacancy. The database is
// authoritative; the in-process cache only saves the hash lookup and is re-checked by id.
type Deduplicator struct {
	vacancies vacancyLookup
	cache     *gocache.Cache
}

func NewDeduplicator(vacancies vacancyLookup) *Deduplicator {
	return &Deduplicator{vacancies: vacancies, cache: gocache.New(30*time.Minute, time.Hour)}
}

func (d *Deduplicator) Lookup(ctx context.Context, hash string) (*entities.Vacancy, error) {
	if value, found := d.cache.Get(hash); found {
		vacancy, err := d.vacancies.GetByID(ctx, value.(uuid.UUID))
		if err != nil {
			return nil, err
		}
		if vacancy != nil && vacancy.Hash == hash {
			return vacancy, nil
		}
		d.cache.Delete(hash)
	}

	vacancy, err := d.vacancies.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if vacancy != nil {
		d.Remember(hash, vacancy.ID)
	}
	return vacancy, nil
}

func (d *Deduplicator) Remember(hash string, vacancyID uuid.UUID) {
	d.cache.Set(hash, vacancyID, gocache.DefaultExpiration)
}

func (d *Deduplicator) Forget(hash string) {
	d.cache.Delete(hash)
}
