package scheduler

import (
	"context"
	"time"

	"github.com/couchcryptid/sigwatch/internal/model"
)

// Store is the subset of *store.Store the scheduler needs, narrowed so
// the work-unit logic in this package can be tested against a fake.
type Store interface {
	PollingEnabled(ctx context.Context) (bool, error)
	RegisterSource(ctx context.Context, src model.Source) error
	SetEnabled(ctx context.Context, sourceID string, enabled bool) error
	DueSources(ctx context.Context, now time.Time, limit int) ([]model.Source, error)
	GetSource(ctx context.Context, sourceID string) (model.Source, error)
	OverrideNextFetchAt(ctx context.Context, sourceID string, at time.Time) error
	SetCursor(ctx context.Context, sourceID, cursor string) error
	InsertItem(ctx context.Context, item model.Item) error
	RunRetention(ctx context.Context, itemsRetentionDays, incidentsRetentionDays int) error
}
