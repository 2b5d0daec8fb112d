package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-checkout/internal/repo"
)

type kvEntry struct {
	Key       string     `gorm:"column:key;primaryKey"`
	Value     string     `gorm:"column:value;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

func (kvEntry) TableName() string { return "kv_entries" }

// SQL stores snapshots in the kv_entries table (sqlite for a local durable mirror,
// postgres when several instances share state).
type SQL struct {
	repo.Base
	ttl time.Duration
	now func() time.Time
}

func NewSQL(db *gorm.DB, ttl time.Duration) *SQL {
	return &SQL{Base: repo.NewBase(db), ttl: ttl, now: time.Now}
}

func (s *SQL) Load(ctx context.Context, key string) ([]byte, error) {
	var entry kvEntry
	err := s.DB(ctx).Where("key = ?", key).Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if entry.ExpiresAt != nil && !s.now().Before(*entry.ExpiresAt) {
		return nil, ErrNotFound
	}
	return []byte(entry.Value), nil
}

func (s *SQL) Save(ctx context.Context, key string, value []byte) error {
	now := s.now().UTC()
	entry := kvEntry{Key: key, Value: string(value), UpdatedAt: now}
	if s.ttl > 0 {
		expires := now.Add(s.ttl)
		entry.ExpiresAt = &expires
	}
	return s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

func (s *SQL) Clear(ctx context.Context, key string) error {
	return s.DB(ctx).Where("key = ?", key).Delete(&kvEntry{}).Error
}

// PurgeExpired deletes entries whose TTL has passed and reports how many went.
func (s *SQL) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.DB(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).Delete(&kvEntry{})
	return res.RowsAffected, res.Error
}
