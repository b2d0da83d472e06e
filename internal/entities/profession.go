package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinKeywordWeight = 0.1
	MaxKeywordWeight = 1.0
)

var validate = validator.New()

type Profession struct {
	ID          uuid.UUID `gorm:"primaryKey"`
	Name        string    `gorm:"uniqueIndex;not null" validate:"required,max=128"`
	Description string
	Keywords    []Keyword `gorm:"foreignKey:ProfessionID"`
	CreatedAt   time.Time
}

func NewProfession(name, description string) (Profession, error) {
	p := Profession{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
	if err := validate.Struct(p); err != nil {
		return Profession{}, fmt.Errorf("invalid profession: %w", err)
	}
	return p, nil
}

func (p *Profession) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Keyword struct {
	ID           uint      `gorm:"primaryKey"`
	ProfessionID uuid.UUID `gorm:"uniqueIndex:idx_keyword_profession_word;not null"`
	Word         string    `gorm:"uniqueIndex:idx_keyword_profession_word;not null" validate:"required"`
	Weight       float64   `gorm:"not null" validate:"gte=0.1,lte=1"`
}

// NewKeyword rejects weights outside [MinKeywordWeight, MaxKeywordWeight].
func NewKeyword(professionID uuid.UUID, word string, weight float64) (Keyword, error) {
	k := Keyword{
		ProfessionID: professionID,
		Word:         NormalizeText(word),
		Weight:       weight,
	}
	if err := validate.Struct(k); err != nil {
		return Keyword{}, fmt.Errorf("invalid keyword: %w", err)
	}
	return k, nil
}

type StopWord struct {
	ID   uint   `gorm:"primaryKey"`
	Word string `gorm:"uniqueIndex;not null" validate:"required"`
}

func NewStopWord(word string) (StopWord, error) {
	s := StopWord{Word: NormalizeText(word)}
	if err := validate.Struct(s); err != nil {
		return StopWord{}, fmt.Errorf("invalid stop word: %w", err)
	}
	return s, nil
}

// ProfessionStat is the number of deliveries made for vacancies of one profession.
type ProfessionStat struct {
	ProfessionID uuid.UUID
	Name         string
	Sent         int64
}
