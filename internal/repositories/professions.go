package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDuplicate = errors.New("record already exists")

type Professions struct {
	db *gorm.DB
}

func NewProfessionsRepository(db *gorm.DB) *Professions {
	return &Professions{db: db}
}

// GetAll returns every profession with its keywords loaded.
func (repo *Professions) GetAll(ctx context.Context) ([]entities.Profession, error) {
	var professions []entities.Profession
	err := repo.db.WithContext(ctx).Preload("Keywords").Order("name").Find(&professions).Error
	return professions, errors.Wrap(err, "get professions")
}

func (repo *Professions) GetByName(ctx context.Context, name string) (*entities.Profession, error) {
	var profession entities.Profession
	err := repo.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&profession).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get profession")
	}
	return &profession, nil
}

func (repo *Professions) Add(ctx context.Context, profession entities.Profession) error {
	res := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&profession)
	if res.Error != nil {
		return errors.Wrap(res.Error, "add profession")
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (repo *Professions) SetDescription(ctx context.Context, id uuid.UUID, description string) error {
	err := repo.db.WithContext(ctx).
		Model(&entities.Profession{}).
		Where("id = ?", id).
		Update("description", description).Error
	return errors.Wrap(err, "set profession description")
}

// Remove deletes the profession and everything that references it: keywords, user
// selections, backlog entries, and the vacancies classified under it with their send
// records and matches.
func (repo *Professions) Remove(ctx context.Context, id uuid.UUID) error {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vacancyIDs []uuid.UUID
		if err := tx.Model(&entities.Vacancy{}).Where("profession_id = ?", id).Pluck("id", &vacancyIDs).Error; err != nil {
			return err
		}

		if len(vacancyIDs) > 0 {
			if err := tx.Delete(&entities.SentVacancy{}, "vacancy_id IN ?", vacancyIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&entities.VacancyProfession{}, "vacancy_id IN ?", vacancyIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&entities.BacklogEntry{}, "vacancy_id IN ?", vacancyIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&entities.Vacancy{}, "id IN ?", vacancyIDs).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&entities.VacancyProfession{}, "profession_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entities.BacklogEntry{}, "profession_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entities.Keyword{}, "profession_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entities.UserProfession{}, "profession_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Profession{}, "id = ?", id).Error
	})
	return errors.Wrap(err, "remove profession")
}

func (repo *Professions) AddKeyword(ctx context.Context, keyword entities.Keyword) error {
	res := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profession_id"}, {Name: "word"}},
			DoUpdates: clause.AssignmentColumns([]string{"weight"}),
		}).
		Create(&keyword)
	return errors.Wrap(res.Error, "add keyword")
}

// RemoveKeyword returns false when the profession had no such keyword.
func (repo *Professions) RemoveKeyword(ctx context.Context, professionID uuid.UUID, word string) (bool, error) {
	res := repo.db.WithContext(ctx).
		Delete(&entities.Keyword{}, "profession_id = ? AND word = ?", professionID, word)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "remove keyword")
	}
	return res.RowsAffected > 0, nil
}

// SendStats counts delivered sends per profession.
func (repo *Professions) SendStats(ctx context.Context) ([]entities.ProfessionStat, error) {
	var stats []entities.ProfessionStat
	err := repo.db.WithContext(ctx).
		Model(&entities.Profession{}).
		Select("professions.id AS profession_id, professions.name AS name, COUNT(sent_vacancies.id) AS sent").
		Joins("LEFT JOIN vacancies ON vacancies.profession_id = professions.id").
		Joins("LEFT JOIN sent_vacancies ON sent_vacancies.vacancy_id = vacancies.id AND sent_vacancies.message_id <> 0").
		Group("professions.id, professions.name").
		Order("sent DESC, professions.name").
		Scan(&stats).Error
	return stats, errors.Wrap(err, "get send stats")
}
