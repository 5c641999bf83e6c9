package interaction

import (
	"context"
	"errors"
	"time"

	"github.com/heyito/ito-sub003/internal/shared"
	"gorm.io/gorm"
)

const maxListLimit = 200

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Interaction{})
}

func (s *Store) Create(ctx context.Context, rec *Interaction) error {
	if rec.ID == "" {
		rec.ID = shared.NewID("int_")
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*Interaction, error) {
	var rec Interaction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &rec, err
}

// ListRecent returns the newest interactions first, without their audio.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Interaction, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	var recs []*Interaction
	err := s.db.WithContext(ctx).
		Omit("audio").
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&Interaction{}, "created_at < ?", cutoff)
	return result.RowsAffected, result.Error
}
