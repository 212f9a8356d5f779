package store

import (
	"context"

	"github.com/rudransh-shrivastava/gblink/internal/db"
	"github.com/rudransh-shrivastava/gblink/internal/link"
)

// SettingsRepository defines the persisted link dialog defaults.
type SettingsRepository interface {
	Get(ctx context.Context) (db.Settings, error)
	Save(ctx context.Context, s db.Settings) error
}

// AttemptRepository defines the link attempt history.
type AttemptRepository interface {
	link.Recorder
	Recent(ctx context.Context, limit int) ([]db.Attempt, error)
}
