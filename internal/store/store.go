// Package store provides database access for link settings and attempt history.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rudransh-shrivastava/gblink/internal/db"
	"github.com/rudransh-shrivastava/gblink/internal/link"
	"gorm.io/gorm"
)

const (
	DefaultHost             = "127.0.0.1"
	DefaultPort             = "7777"
	DefaultConnectTimeoutMs = 10_000

	settingsRowID = 1
)

type SettingsStore struct {
	db *gorm.DB
}

func NewSettingsStore(gdb *gorm.DB) *SettingsStore {
	return &SettingsStore{db: gdb}
}

// Get returns the saved defaults, seeding them on first use.
func (ss *SettingsStore) Get(ctx context.Context) (db.Settings, error) {
	s := db.Settings{
		ID:               settingsRowID,
		Host:             DefaultHost,
		Port:             DefaultPort,
		ConnectTimeoutMs: DefaultConnectTimeoutMs,
	}

	err := ss.db.WithContext(ctx).
		Where(db.Settings{ID: settingsRowID}).
		FirstOrCreate(&s).Error
	if err != nil {
		return db.Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	return s, nil
}

func (ss *SettingsStore) Save(ctx context.Context, s db.Settings) error {
	if s.Port != "" {
		p, err := strconv.Atoi(s.Port)
		if err != nil || p < link.MinPort || p > link.MaxPort {
			return fmt.Errorf("%w: default port %q", link.ErrValidation, s.Port)
		}
	}
	if s.ConnectTimeoutMs < 0 {
		return fmt.Errorf("%w: negative connect timeout", link.ErrValidation)
	}

	s.ID = settingsRowID
	if err := ss.db.WithContext(ctx).Save(&s).Error; err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

type AttemptStore struct {
	db *gorm.DB
}

func NewAttemptStore(gdb *gorm.DB) *AttemptStore {
	return &AttemptStore{db: gdb}
}

func (as *AttemptStore) Record(ctx context.Context, rec link.Record) error {
	if rec.ID == "" {
		return errors.New("recording attempt: empty attempt id")
	}

	row := db.Attempt{
		AttemptID: string(rec.ID),
		Role:      rec.Endpoint.Role.String(),
		Host:      rec.Endpoint.Host,
		Port:      rec.Endpoint.Port,
		State:     rec.State.String(),
		ErrorKind: rec.ErrKind,
		Error:     rec.Err,
		CreatedAt: rec.At.UnixMilli(),
	}
	if err := as.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("recording attempt %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (as *AttemptStore) Recent(ctx context.Context, limit int) ([]db.Attempt, error) {
	var rows []db.Attempt
	err := as.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	return rows, nil
}

var (
	_ SettingsRepository = (*SettingsStore)(nil)
	_ AttemptRepository  = (*AttemptStore)(nil)
)
