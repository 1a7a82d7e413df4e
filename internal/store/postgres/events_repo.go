package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"sanctuary/backend/internal/domain"
	"sanctuary/backend/internal/store"
)

type EventRepo struct {
	db  *bun.DB
	now func() time.Time
}

func NewEventRepo(db *bun.DB) *EventRepo {
	return &EventRepo{db: db, now: time.Now}
}

type eventTx struct {
	tx bun.Tx
}

func (r *EventRepo) Create(ctx context.Context, ev domain.Event) (domain.Event, error) {
	m := ev
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, getErr := r.Get(ctx, m.ID)
			if getErr != nil {
				return domain.Event{}, err
			}
			if !sameEventContent(existing, ev) {
				return domain.Event{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
		return domain.Event{}, err
	}
	return m, nil
}

func sameEventContent(a, b domain.Event) bool {
	if a.Title != b.Title ||
		a.Description != b.Description ||
		a.Location != b.Location ||
		domain.ParseRecurrenceType(string(a.RecurrenceType)) != domain.ParseRecurrenceType(string(b.RecurrenceType)) ||
		!a.StartDate.Equal(b.StartDate.Time) {
		return false
	}
	return a.End().Equal(b.End())
}

func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	var ev domain.Event
	err := r.db.NewSelect().
		Model(&ev).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, store.ErrNotFound
		}
		return domain.Event{}, err
	}
	return ev, nil
}

func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *EventRepo) ListUpcoming(ctx context.Context, from time.Time) ([]domain.Event, error) {
	var rows []domain.Event
	err := r.db.NewSelect().
		Model(&rows).
		Where("start_date >= ?", from.UTC()).
		Where("is_published").
		OrderExpr("start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EventRepo) ListRecurring(ctx context.Context) ([]domain.Event, error) {
	var rows []domain.Event
	err := r.db.NewSelect().
		Model(&rows).
		Where("upper(recurrence_type) <> ?", string(domain.RecurrenceNone)).
		Where("recurrence_type <> ''").
		OrderExpr("start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EventRepo) ListCurrentInstances(ctx context.Context, from time.Time) ([]domain.Event, error) {
	var rows []domain.Event
	err := r.db.NewSelect().
		Model(&rows).
		Where("parent_event_id IS NOT NULL").
		Where("start_date >= ?", from.UTC()).
		OrderExpr("start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EventRepo) DeleteLapsedInstances(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.NewDelete().
		Model((*domain.Event)(nil)).
		Where("parent_event_id IS NOT NULL").
		Where("start_date < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *EventRepo) UpdateSchedule(ctx context.Context, id uuid.UUID, start, end time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Event)(nil)).
		Set("start_date = ?", start.UTC()).
		Set("end_date = ?", end.UTC()).
		Set("updated_at = ?", r.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// InTransaction runs fn with the events table guarded by a transaction-scoped
// advisory lock, so two admin edits of a series and its instances cannot interleave.
func (r *EventRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.EventTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEvents(ctx, tx); err != nil {
			return err
		}
		return fn(ctx, eventTx{tx: tx})
	})
}

func lockEvents(ctx context.Context, tx bun.Tx) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "events").Exec(ctx)
	return err
}

func (t eventTx) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	var ev domain.Event
	err := t.tx.NewSelect().
		Model(&ev).
		Where("id = ?", id).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, store.ErrNotFound
		}
		return domain.Event{}, err
	}
	return ev, nil
}

func (t eventTx) UpdateEvent(ctx context.Context, ev domain.Event) (domain.Event, error) {
	m := ev
	res, err := t.tx.NewUpdate().
		Model(&m).
		WherePK().
		ExcludeColumn("id", "created_at").
		Exec(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Event{}, err
	}
	if affected == 0 {
		return domain.Event{}, store.ErrNotFound
	}
	return m, nil
}

func (t eventTx) ListInstances(ctx context.Context, parentID uuid.UUID, from time.Time) ([]domain.Event, error) {
	var rows []domain.Event
	err := t.tx.NewSelect().
		Model(&rows).
		Where("parent_event_id = ?", parentID).
		Where("start_date >= ?", from.UTC()).
		OrderExpr("start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
