package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrVacancyGone = errors.New("vacancy no longer exists")

type Vacancies struct {
	db *gorm.DB
}

func NewVacanciesRepository(db *gorm.DB) *Vacancies {
	return &Vacancies{db: db}
}

// Persist inserts the vacancy unless one with the same hash exists. The returned id is the
// stored vacancy's id in both cases, created tells which happened.
func (v Vacancies) Persist(ctx context.Context, vacancy entities.Vacancy) (uuid.UUID, bool, error) {
	if vacancy.ID == uuid.Nil {
		vacancy.ID = uuid.New()
	}

	res := v.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
		Create(&vacancy)
	if res.Error != nil {
		return uuid.Nil, false, errors.Wrap(res.Error, "insert vacancy")
	}
	if res.RowsAffected == 1 {
		return vacancy.ID, true, nil
	}

	existing, err := v.GetByHash(ctx, vacancy.Hash)
	if err != nil {
		return uuid.Nil, false, err
	}
	if existing == nil {
		return uuid.Nil, false, errors.Errorf("vacancy with hash %s vanished after conflict", vacancy.Hash)
	}
	return existing.ID, false, nil
}

func (v Vacancies) GetByHash(ctx context.Context, hash string) (*entities.Vacancy, error) {
	return v.first(ctx, "hash = ?", hash)
}

func (v Vacancies) GetByID(ctx context.Context, id uuid.UUID) (*entities.Vacancy, error) {
	return v.first(ctx, "id = ?", id)
}

func (v Vacancies) first(ctx context.Context, query string, args ...any) (*entities.Vacancy, error) {
	var vacancy entities.Vacancy
	err := v.db.WithContext(ctx).Where(query, args...).First(&vacancy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get vacancy")
	}
	return &vacancy, nil
}

func (v Vacancies) AddProfessionMatch(ctx context.Context, vacancyID, professionID uuid.UUID, score float64) error {
	err := v.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vacancy_id"}, {Name: "profession_id"}},
			DoNothing: true,
		}).
		Create(&entities.VacancyProfession{VacancyID: vacancyID, ProfessionID: professionID, Score: score}).Error
	return errors.Wrap(err, "add profession match")
}

func (v Vacancies) GetProfessionMatches(ctx context.Context, vacancyID uuid.UUID) ([]entities.VacancyProfession, error) {
	var matches []entities.VacancyProfession
	err := v.db.WithContext(ctx).
		Where("vacancy_id = ?", vacancyID).
		Order("score DESC").
		Find(&matches).Error
	return matches, errors.Wrap(err, "get profession matches")
}

// ReserveSend creates an undelivered send record for the pair. It returns false when a
// record already exists, whether delivered or only reserved.
func (v Vacancies) ReserveSend(ctx context.Context, userID int64, vacancyID uuid.UUID) (bool, error) {
	res := v.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "vacancy_id"}},
			DoNothing: true,
		}).
		Create(&entities.SentVacancy{UserID: userID, VacancyID: vacancyID})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "reserve send")
	}
	return res.RowsAffected == 1, nil
}

// ReleaseSend drops a reservation that never turned into a delivery.
func (v Vacancies) ReleaseSend(ctx context.Context, userID int64, vacancyID uuid.UUID) error {
	err := v.db.WithContext(ctx).
		Delete(&entities.SentVacancy{}, "user_id = ? AND vacancy_id = ? AND message_id = 0", userID, vacancyID).Error
	return errors.Wrap(err, "release send")
}

// RecordSend stores the delivered message id. It fails with ErrVacancyGone when the
// vacancy was deleted meanwhile, leaving no send record behind.
func (v Vacancies) RecordSend(ctx context.Context, userID int64, vacancyID uuid.UUID, messageID int) error {
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Vacancy{}).Where("id = ?", vacancyID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrVacancyGone
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "vacancy_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"message_id"}),
		}).
			Create(&entities.SentVacancy{UserID: userID, VacancyID: vacancyID, MessageID: messageID}).Error
	})
	if errors.Is(err, ErrVacancyGone) {
		return err
	}
	return errors.Wrap(err, "record send")
}

func (v Vacancies) HasBeenSent(ctx context.Context, userID int64, vacancyID uuid.UUID) (bool, error) {
	var count int64
	err := v.db.WithContext(ctx).
		Model(&entities.SentVacancy{}).
		Where("user_id = ? AND vacancy_id = ? AND message_id <> 0", userID, vacancyID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check send record")
	}
	return count > 0, nil
}

func (v Vacancies) GetSendRecords(ctx context.Context, vacancyID uuid.UUID) ([]entities.SentVacancy, error) {
	var records []entities.SentVacancy
	err := v.db.WithContext(ctx).Where("vacancy_id = ?", vacancyID).Find(&records).Error
	return records, errors.Wrap(err, "get send records")
}

// Delete removes the vacancy together with its send records, profession matches and
// every backlog entry carrying the same text.
func (v Vacancies) Delete(ctx context.Context, vacancy entities.Vacancy) error {
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entities.SentVacancy{}, "vacancy_id = ?", vacancy.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entities.VacancyProfession{}, "vacancy_id = ?", vacancy.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entities.BacklogEntry{}, "vacancy_id = ? OR text_hash = ?", vacancy.ID, vacancy.Hash).
			Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Vacancy{}, "id = ?", vacancy.ID).Error
	})
	return errors.Wrap(err, "delete vacancy")
}

// RemoveOldVacancies deletes vacancies created before expirationTime with their dependent rows.
func (v Vacancies) RemoveOldVacancies(ctx context.Context, expirationTime time.Time) (int64, error) {
	var removed int64
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		if err := tx.Model(&entities.Vacancy{}).
			Where("created_at < ?", expirationTime.UTC()).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Delete(&entities.SentVacancy{}, "vacancy_id IN ?", ids).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entities.VacancyProfession{}, "vacancy_id IN ?", ids).Error; err != nil {
			return err
		}
		res := tx.Delete(&entities.Vacancy{}, "id IN ?", ids)
		removed = res.RowsAffected
		return res.Error
	})
	return removed, errors.Wrap(err, "remove old vacancies")
}
