package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sanctuary/backend/internal/domain"
)

type EventRepository interface {
	Create(ctx context.Context, ev domain.Event) (domain.Event, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListUpcoming(ctx context.Context, from time.Time) ([]domain.Event, error)

	// ListRecurring returns every event whose recurrence type is not NONE.
	ListRecurring(ctx context.Context) ([]domain.Event, error)
	// ListCurrentInstances returns generated instances starting at or after from.
	ListCurrentInstances(ctx context.Context, from time.Time) ([]domain.Event, error)
	// DeleteLapsedInstances removes generated instances that started before the cutoff.
	DeleteLapsedInstances(ctx context.Context, before time.Time) (int, error)
	// UpdateSchedule rewrites start/end of an existing event in a single statement.
	UpdateSchedule(ctx context.Context, id uuid.UUID, start, end time.Time) error

	InTransaction(ctx context.Context, fn func(ctx context.Context, tx EventTx) error) error
}

type EventTx interface {
	GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error)
	UpdateEvent(ctx context.Context, ev domain.Event) (domain.Event, error)
	ListInstances(ctx context.Context, parentID uuid.UUID, from time.Time) ([]domain.Event, error)
}

type ConfigRepository interface {
	ListSettings(ctx context.Context) ([]domain.SiteSetting, error)
}
