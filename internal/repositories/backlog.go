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

type Backlog struct {
	db *gorm.DB
}

func NewBacklogRepository(db *gorm.DB) *Backlog {
	return &Backlog{db: db}
}

// Add stores the entry unless the user already has the same text in the partition.
func (b Backlog) Add(ctx context.Context, entry entities.BacklogEntry) (bool, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	res := b.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}, {Name: "text_hash"}},
			DoNothing: true,
		}).
		Create(&entry)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "add backlog entry")
	}
	return res.RowsAffected == 1, nil
}

func (b Backlog) Pending(ctx context.Context, userID int64, partition entities.BacklogPartition) ([]entities.BacklogEntry, error) {
	var entries []entities.BacklogEntry
	err := b.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND is_sent = ?", userID, partition, false).
		Order("created_at").
		Find(&entries).Error
	return entries, errors.Wrap(err, "get pending backlog")
}

// UsersWithPending returns ids of users having unsent entries in the partition.
func (b Backlog) UsersWithPending(ctx context.Context, partition entities.BacklogPartition) ([]int64, error) {
	var ids []int64
	err := b.db.WithContext(ctx).
		Model(&entities.BacklogEntry{}).
		Where("kind = ? AND is_sent = ?", partition, false).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, errors.Wrap(err, "get users with pending backlog")
}

// Claim marks pending entries as sent and returns only those this call flipped, so two
// concurrent claimers never both get the same entry.
func (b Backlog) Claim(ctx context.Context, userID int64, partition entities.BacklogPartition) ([]entities.BacklogEntry, error) {
	pending, err := b.Pending(ctx, userID, partition)
	if err != nil || len(pending) == 0 {
		return nil, err
	}

	claimed := make([]entities.BacklogEntry, 0, len(pending))
	for _, entry := range pending {
		res := b.db.WithContext(ctx).
			Model(&entities.BacklogEntry{}).
			Where("id = ? AND is_sent = ?", entry.ID, false).
			Update("is_sent", true)
		if res.Error != nil {
			return claimed, errors.Wrap(res.Error, "claim backlog entry")
		}
		if res.RowsAffected == 1 {
			entry.IsSent = true
			claimed = append(claimed, entry)
		}
	}
	return claimed, nil
}

// Release returns a claimed entry to the pending state.
func (b Backlog) Release(ctx context.Context, id uuid.UUID) error {
	err := b.db.WithContext(ctx).
		Model(&entities.BacklogEntry{}).
		Where("id = ?", id).
		Update("is_sent", false).Error
	return errors.Wrap(err, "release backlog entry")
}

func (b Backlog) Count(ctx context.Context, userID int64, partition entities.BacklogPartition) (int64, error) {
	var count int64
	err := b.db.WithContext(ctx).
		Model(&entities.BacklogEntry{}).
		Where("user_id = ? AND kind = ? AND is_sent = ?", userID, partition, false).
		Count(&count).Error
	return count, errors.Wrap(err, "count backlog")
}

func (b Backlog) RemoveOld(ctx context.Context, expirationTime time.Time) (int64, error) {
	res := b.db.WithContext(ctx).Delete(&entities.BacklogEntry{}, "created_at < ?", expirationTime.UTC())
	return res.RowsAffected, errors.Wrap(res.Error, "remove old backlog")
}
