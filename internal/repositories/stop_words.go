package repositories

import (
	"context"

	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StopWords struct {
	db *gorm.DB
}

func NewStopWordsRepository(db *gorm.DB) *StopWords {
	return &StopWords{db: db}
}

func (repo *StopWords) GetAll(ctx context.Context) ([]entities.StopWord, error) {
	var words []entities.StopWord
	err := repo.db.WithContext(ctx).Order("word").Find(&words).Error
	return words, errors.Wrap(err, "get stop words")
}

func (repo *StopWords) Add(ctx context.Context, word entities.StopWord) error {
	res := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "word"}}, DoNothing: true}).
		Create(&word)
	if res.Error != nil {
		return errors.Wrap(res.Error, "add stop word")
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (repo *StopWords) Remove(ctx context.Context, word string) (bool, error) {
	res := repo.db.WithContext(ctx).Delete(&entities.StopWord{}, "word = ?", word)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "remove stop word")
	}
	return res.RowsAffected > 0, nil
}
