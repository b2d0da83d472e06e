package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

var (
	ErrInvalidEmail = errors.New("invalid email")
	ErrInvalidMode  = errors.New("unknown delivery mode")
)

type subscriberUsers interface {
	Register(ctx context.Context, user entities.User) error
	Get(ctx context.Context, telegramID int64) (*entities.User, error)
	SetDeliveryMode(ctx context.Context, telegramID int64, mode entities.DeliveryMode) error
	SetEmail(ctx context.Context, telegramID int64, email string) error
	SetBanned(ctx context.Context, telegramID int64, banned bool) error
	SetSubscriptionUntil(ctx context.Context, telegramID int64, until time.Time) error
	SetProfessionSelected(ctx context.Context, telegramID int64, professionID uuid.UUID, selected bool) error
	SelectedProfessions(ctx context.Context, telegramID int64) ([]uuid.UUID, error)
}

type subscriberProfessions interface {
	GetAll(ctx context.Context) ([]entities.Profession, error)
	GetByName(ctx context.Context, name string) (*entities.Profession, error)
}

// ProfessionChoice is a profession as one subscriber sees it.
type ProfessionChoice struct {
	Name     string
	Selected bool
}

type Subscribers struct {
	users       subscriberUsers
	professions subscriberProfessions
	validate    *validator.Validate
	now         func() time.Time
}

func NewSubscribers(users subscriberUsers, professions subscriberProfessions) *Subscribers {
	return &Subscribers{
		users:       users,
		professions: professions,
		validate:    validator.New(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Subscribers) Register(ctx context.Context, telegramID int64, firstName, username string) error {
	return s.users.Register(ctx, entities.NewUser(telegramID, firstName, username))
}

func (s *Subscribers) Get(ctx context.Context, telegramID int64) (*entities.User, error) {
	return s.users.Get(ctx, telegramID)
}

// SetMode accepts only the modes a subscriber may pick; support is assigned by operators.
func (s *Subscribers) SetMode(ctx context.Context, telegramID int64, raw string) (entities.DeliveryMode, error) {
	mode, err := entities.ToDeliveryMode(strings.TrimSpace(strings.ToLower(raw)))
	if err != nil || mode == entities.ModeSupport {
		return "", ErrInvalidMode
	}
	if err = s.users.SetDeliveryMode(ctx, telegramID, mode); err != nil {
		return "", s.mapErr(err)
	}
	return mode, nil
}

func (s *Subscribers) SetEmail(ctx context.Context, telegramID int64, email string) error {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}
	return s.mapErr(s.users.SetEmail(ctx, telegramID, email))
}

func (s *Subscribers) Ban(ctx context.Context, telegramID int64, banned bool) error {
	return s.mapErr(s.users.SetBanned(ctx, telegramID, banned))
}

// GrantSubscription extends the subscription by days, counting from its current end
// when it is still active.
func (s *Subscribers) GrantSubscription(ctx context.Context, telegramID int64, days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, fmt.Errorf("days must be positive, got %d", days)
	}
	user, err := s.users.Get(ctx, telegramID)
	if err != nil {
		return time.Time{}, err
	}
	if user == nil {
		return time.Time{}, ErrUserNotFound
	}

	start := s.now()
	if user.HasActiveSubscription(start) {
		start = user.SubscriptionUntil.UTC()
	}
	until := start.AddDate(0, 0, days)
	if err = s.users.SetSubscriptionUntil(ctx, telegramID, until); err != nil {
		return time.Time{}, s.mapErr(err)
	}
	return until, nil
}

func (s *Subscribers) SelectProfession(ctx context.Context, telegramID int64, name string) error {
	return s.setSelected(ctx, telegramID, name, true)
}

func (s *Subscribers) UnselectProfession(ctx context.Context, telegramID int64, name string) error {
	return s.setSelected(ctx, telegramID, name, false)
}

func (s *Subscribers) setSelected(ctx context.Context, telegramID int64, name string, selected bool) error {
	user, err := s.users.Get(ctx, telegramID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	profession, err := s.professions.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if profession == nil {
		return ErrProfessionNotFound
	}
	return s.users.SetProfessionSelected(ctx, telegramID, profession.ID, selected)
}

func (s *Subscribers) ListProfessions(ctx context.Context, telegramID int64) ([]ProfessionChoice, error) {
	professions, err := s.professions.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	selected, err := s.users.SelectedProfessions(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	return lo.Map(professions, func(p entities.Profession, _ int) ProfessionChoice {
		return ProfessionChoice{Name: p.Name, Selected: lo.Contains(selected, p.ID)}
	}), nil
}

func (s *Subscribers) mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
