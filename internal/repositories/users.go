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

type Users struct {
	db *gorm.DB
}

func NewUsersRepository(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Register creates the user or refreshes the profile fields of an existing one.
func (repo *Users) Register(ctx context.Context, user entities.User) error {
	if user.DeliveryMode == "" {
		user.DeliveryMode = entities.ModeInstant
	}
	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"first_name", "username"}),
		}).
		Create(&user).Error
	return errors.Wrap(err, "register user")
}

func (repo *Users) Get(ctx context.Context, telegramID int64) (*entities.User, error) {
	var user entities.User
	err := repo.db.WithContext(ctx).First(&user, "telegram_id = ?", telegramID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &user, nil
}

func (repo *Users) SetDeliveryMode(ctx context.Context, telegramID int64, mode entities.DeliveryMode) error {
	return repo.update(ctx, telegramID, "delivery_mode", mode)
}

func (repo *Users) SetEmail(ctx context.Context, telegramID int64, email string) error {
	return repo.update(ctx, telegramID, "email", email)
}

func (repo *Users) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	return repo.update(ctx, telegramID, "is_banned", banned)
}

// SetSubscriptionUntil also rearms the expiry notification.
func (repo *Users) SetSubscriptionUntil(ctx context.Context, telegramID int64, until time.Time) error {
	res := repo.db.WithContext(ctx).
		Model(&entities.User{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]any{"subscription_until": until.UTC(), "expiry_notified": false})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update user subscription_until")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (repo *Users) update(ctx context.Context, telegramID int64, column string, value any) error {
	res := repo.db.WithContext(ctx).
		Model(&entities.User{}).
		Where("telegram_id = ?", telegramID).
		Update(column, value)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update user %s", column)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (repo *Users) SetProfessionSelected(ctx context.Context, telegramID int64, professionID uuid.UUID, selected bool) error {
	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "profession_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_selected"}),
		}).
		Create(&entities.UserProfession{UserID: telegramID, ProfessionID: professionID, IsSelected: selected}).Error
	return errors.Wrap(err, "set profession selection")
}

func (repo *Users) SelectedProfessions(ctx context.Context, telegramID int64) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := repo.db.WithContext(ctx).
		Model(&entities.UserProfession{}).
		Where("user_id = ? AND is_selected = ?", telegramID, true).
		Pluck("profession_id", &ids).Error
	return ids, errors.Wrap(err, "get selected professions")
}

// GetEligibleByProfession returns users who selected the profession, are not banned and
// whose subscription is still active at now.
func (repo *Users) GetEligibleByProfession(ctx context.Context, professionID uuid.UUID, now time.Time) ([]entities.User, error) {
	var users []entities.User
	err := repo.db.WithContext(ctx).
		Joins("JOIN user_professions ON user_professions.user_id = users.telegram_id").
		Where("user_professions.profession_id = ? AND user_professions.is_selected = ?", professionID, true).
		Where("users.is_banned = ? AND users.subscription_until > ?", false, now.UTC()).
		Find(&users).Error
	return users, errors.Wrap(err, "get users by profession")
}

func (repo *Users) GetEligibleByMode(ctx context.Context, mode entities.DeliveryMode, now time.Time) ([]entities.User, error) {
	var users []entities.User
	err := repo.db.WithContext(ctx).
		Where("delivery_mode = ? AND is_banned = ? AND subscription_until > ?", mode, false, now.UTC()).
		Find(&users).Error
	return users, errors.Wrap(err, "get users by mode")
}

// GetAudience returns telegram ids of not banned users in the audience.
func (repo *Users) GetAudience(ctx context.Context, audience entities.Audience, now time.Time) ([]int64, error) {
	query := repo.db.WithContext(ctx).Model(&entities.User{}).Where("users.is_banned = ?", false)
	switch audience.Kind {
	case entities.AudienceAll:
	case entities.AudienceSubscribed:
		query = query.Where("users.subscription_until > ?", now.UTC())
	case entities.AudienceUnsubscribed:
		query = query.Where("(users.subscription_until IS NULL OR users.subscription_until <= ?)", now.UTC())
	case entities.AudienceExpired:
		query = query.Where("users.subscription_until IS NOT NULL AND users.subscription_until <= ?", now.UTC())
	case entities.AudienceProfession:
		query = query.
			Joins("JOIN user_professions ON user_professions.user_id = users.telegram_id").
			Where("user_professions.profession_id = ? AND user_professions.is_selected = ?", audience.ProfessionID, true)
	default:
		return nil, errors.Errorf("unknown audience %q", audience.Kind)
	}

	var ids []int64
	err := query.Order("users.telegram_id").Pluck("users.telegram_id", &ids).Error
	return ids, errors.Wrap(err, "get audience")
}

// GetNewlyExpired returns users whose subscription ended and who were not told yet.
func (repo *Users) GetNewlyExpired(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := repo.db.WithContext(ctx).
		Model(&entities.User{}).
		Where("subscription_until IS NOT NULL AND subscription_until <= ?", now.UTC()).
		Where("expiry_notified = ? AND is_banned = ?", false, false).
		Pluck("telegram_id", &ids).Error
	return ids, errors.Wrap(err, "get newly expired users")
}

// SetExpiryNotified flips the flag and reports whether this call changed it.
func (repo *Users) SetExpiryNotified(ctx context.Context, telegramID int64, notified bool) (bool, error) {
	res := repo.db.WithContext(ctx).
		Model(&entities.User{}).
		Where("telegram_id = ? AND expiry_notified = ?", telegramID, !notified).
		Update("expiry_notified", notified)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "set expiry notified")
	}
	return res.RowsAffected == 1, nil
}
