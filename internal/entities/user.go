package entities

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	TelegramID        int64 `gorm:"primaryKey;autoIncrement:false"`
	FirstName         string
	Username          string
	Email             string
	SubscriptionUntil *time.Time
	DeliveryMode      DeliveryMode `gorm:"not null;default:'instant'"`
	IsBanned          bool         `gorm:"not null;default:false"`
	ExpiryNotified    bool         `gorm:"not null;default:false"`
	CreatedAt         time.Time
}

func NewUser(telegramID int64, firstName, username string) User {
	return User{
		TelegramID:   telegramID,
		FirstName:    firstName,
		Username:     username,
		DeliveryMode: ModeInstant,
	}
}

// HasActiveSubscription is true only while the subscription end lies strictly in the future.
func (u User) HasActiveSubscription(now time.Time) bool {
	return u.SubscriptionUntil != nil && u.SubscriptionUntil.After(now)
}

// CanReceive reports whether deliveries of any mode may reach the user.
func (u User) CanReceive(now time.Time) bool {
	return !u.IsBanned && u.HasActiveSubscription(now)
}

type UserProfession struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       int64     `gorm:"uniqueIndex:idx_user_profession;not null"`
	ProfessionID uuid.UUID `gorm:"uniqueIndex:idx_user_profession;not null"`
	IsSelected   bool      `gorm:"not null;default:false"`
}

type AudienceKind string

const (
	AudienceAll          AudienceKind = "all"
	AudienceSubscribed   AudienceKind = "subscribed"
	AudienceUnsubscribed AudienceKind = "unsubscribed"
	AudienceExpired      AudienceKind = "expired"
	AudienceProfession   AudienceKind = "profession"
)

// Audience selects broadcast recipients. ProfessionID is set only for AudienceProfession.
type Audience struct {
	Kind         AudienceKind
	ProfessionID uuid.UUID
}
