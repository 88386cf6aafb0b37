// Package store keeps finished battles in postgres or sqlite through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("battle not found")

type BattleRecord struct {
	ID           string              `json:"id" gorm:"primaryKey;size:36"`
	Round        int                 `json:"round"`
	Outcome      string              `json:"outcome" gorm:"size:16"`
	WinnerID     string              `json:"winner_id,omitempty" gorm:"size:36"`
	Turns        int                 `json:"turns"`
	StartedAt    time.Time           `json:"started_at"`
	EndedAt      time.Time           `json:"ended_at" gorm:"index"`
	Participants []ParticipantRecord `json:"participants" gorm:"foreignKey:BattleID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time           `json:"-"`
}

type ParticipantRecord struct {
	ID       uint     `json:"-" gorm:"primaryKey"`
	BattleID string   `json:"-" gorm:"index;size:36"`
	Seat     int      `json:"seat"`
	PeerID   string   `json:"peer_id" gorm:"size:36"`
	Name     string   `json:"name" gorm:"size:64"`
	Species  []uint16 `json:"species" gorm:"serializer:json"`
}

// Open connects to dsn: a postgres:// or postgresql:// URL selects postgres,
// anything else is a sqlite path. The schema is migrated before returning.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}
	if err := db.AutoMigrate(&BattleRecord{}, &ParticipantRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record stores a finished battle together with its participants.
func (r *Repository) Record(ctx context.Context, rec *BattleRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record battle %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit battles, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]BattleRecord, error) {
	var out []BattleRecord
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("seat") }).
		Order("ended_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("recent battles: %w", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*BattleRecord, error) {
	var rec BattleRecord
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("seat") }).
		First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("battle %s: %w", id, err)
	}
	return &rec, nil
}
