package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Vacancy struct {
	ID              uuid.UUID `gorm:"primaryKey"`
	Hash            string    `gorm:"uniqueIndex;not null"`
	Text            string    `gorm:"not null"`
	ProfessionID    uuid.UUID `gorm:"index"`
	Score           float64
	URL             string
	SourceChat      int64
	SourceMessageID int64
	AuthorName      string
	AuthorHandle    string
	ForwardedFrom   string
	CreatedAt       time.Time `gorm:"index"`
}

func (v *Vacancy) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// VacancyProfession links a vacancy to every profession it matched, the primary one included.
type VacancyProfession struct {
	ID           uint      `gorm:"primaryKey"`
	VacancyID    uuid.UUID `gorm:"uniqueIndex:idx_vacancy_profession;not null"`
	ProfessionID uuid.UUID `gorm:"uniqueIndex:idx_vacancy_profession;not null"`
	Score        float64
}

// SentVacancy records a delivery. MessageID is zero while the delivery is reserved but not done.
type SentVacancy struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    int64     `gorm:"uniqueIndex:idx_sent_user_vacancy;not null"`
	VacancyID uuid.UUID `gorm:"uniqueIndex:idx_sent_user_vacancy;not null"`
	MessageID int       `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (s SentVacancy) Delivered() bool {
	return s.MessageID != 0
}

type BacklogPartition string

const (
	PartitionTwoHours BacklogPartition = "two_hours"
	PartitionPull     BacklogPartition = "button_click"
)

type BacklogEntry struct {
	ID           uuid.UUID        `gorm:"primaryKey"`
	UserID       int64            `gorm:"uniqueIndex:idx_backlog_user_text;not null"`
	Partition    BacklogPartition `gorm:"column:kind;uniqueIndex:idx_backlog_user_text;not null"`
	TextHash     string           `gorm:"uniqueIndex:idx_backlog_user_text;not null"`
	Text         string           `gorm:"not null"`
	ProfessionID uuid.UUID        `gorm:"index"`
	VacancyID    uuid.UUID        `gorm:"index"`
	IsSent       bool             `gorm:"not null;default:false"`
	CreatedAt    time.Time        `gorm:"index"`
}

func NewBacklogEntry(userID int64, partition BacklogPartition, vacancy Vacancy, professionID uuid.UUID) BacklogEntry {
	return BacklogEntry{
		ID:           uuid.New(),
		UserID:       userID,
		Partition:    partition,
		TextHash:     vacancy.Hash,
		Text:         vacancy.Text,
		ProfessionID: professionID,
		VacancyID:    vacancy.ID,
	}
}

// ScrapedMessage is a message observed in a monitored chat, before deduplication.
type ScrapedMessage struct {
	OriginChat    int64
	MessageID     int64
	SenderName    string
	SenderHandle  string
	Text          string
	ForwardedFrom string
	Link          string
	Timestamp     time.Time
}

type ProfessionScore struct {
	ProfessionID uuid.UUID
	Name         string
	Keyword      float64
	Similarity   float64
	Total        float64
}

type Classification struct {
	Blocked   bool
	StopWords []string
	Matches   []ProfessionScore
}

func (c Classification) Matched() bool {
	return !c.Blocked && len(c.Matches) > 0
}
