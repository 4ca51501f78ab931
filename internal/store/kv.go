// Package store provides the durable key-value storage used to persist
// navigation patterns across sessions.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/skillbridge/pulse/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KV is a durable string store. Get returns ok=false when the key has never
// been written. Writes are whole-value replacements: concurrent writers to
// the same key race and the last write wins.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Memory is an in-process KV for tests and database-less runs.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Gorm stores values as PatternRecord rows.
type Gorm struct {
	DB *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{DB: db}
}

func (g *Gorm) Get(ctx context.Context, key string) (string, bool, error) {
	var rec models.PatternRecord
	err := g.DB.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Value, true, nil
}

func (g *Gorm) Set(ctx context.Context, key, value string) error {
	rec := models.PatternRecord{Key: key, Value: value}
	// Upsert: one row per key, newest value replaces the old one.
	return g.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rec).Error
}
