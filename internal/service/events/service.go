package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sanctuary/backend/internal/domain"
	"sanctuary/backend/internal/metrics"
	"sanctuary/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	repo    store.EventRepository
	loc     *time.Location
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService builds the event service. Recurrence arithmetic happens in loc so that
// weekly and monthly events keep their wall-clock time across DST changes.
func NewService(repo store.EventRepository, loc *time.Location, log *slog.Logger, m *metrics.Metrics) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:    repo,
		loc:     loc,
		log:     log.With(slog.String("component", "service.events")),
		metrics: m,
		now:     time.Now,
	}
}

type CreateInput struct {
	Title          string
	Description    string
	Location       string
	LocationURL    string
	StartDate      time.Time
	EndDate        time.Time
	RecurrenceType string
	ParentEventID  *uuid.UUID
	IsPublished    bool
	IdempotencyKey string
}

type UpdateInput struct {
	ID             uuid.UUID
	Title          string
	Description    string
	Location       string
	LocationURL    string
	StartDate      time.Time
	EndDate        time.Time
	RecurrenceType string
	IsPublished    bool
}

type schedule struct {
	title      string
	start      domain.Instant
	end        *domain.Instant
	recurrence domain.RecurrenceType
}

func validateSchedule(title string, start, end time.Time, recurrence string) (schedule, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return schedule{}, validationError("title is required")
	}
	if start.IsZero() {
		return schedule{}, validationError("start_date is required")
	}

	out := schedule{
		title:      title,
		start:      domain.NewInstant(start),
		recurrence: domain.ParseRecurrenceType(recurrence),
	}
	if !out.recurrence.Known() {
		return schedule{}, validationError("unsupported recurrence_type")
	}
	if !end.IsZero() {
		e := domain.NewInstant(end)
		if !e.After(out.start.Time) {
			return schedule{}, validationError("end_date must be after start_date")
		}
		out.end = &e
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Event, error) {
	sched, err := validateSchedule(in.Title, in.StartDate, in.EndDate, in.RecurrenceType)
	if err != nil {
		return domain.Event{}, err
	}

	ev := domain.Event{
		Title:          sched.title,
		Description:    strings.TrimSpace(in.Description),
		Location:       strings.TrimSpace(in.Location),
		LocationURL:    strings.TrimSpace(in.LocationURL),
		StartDate:      sched.start,
		EndDate:        sched.end,
		RecurrenceType: sched.recurrence,
		ParentEventID:  in.ParentEventID,
		IsPublished:    in.IsPublished,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Event{}, validationError("idempotency_key too long")
		}
		ev.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("sanctuary:create_event:"+key))
	}

	return s.repo.Create(ctx, ev)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	if id == uuid.Nil {
		return domain.Event{}, validationError("event_id is required")
	}
	return s.repo.Get(ctx, id)
}

// Update rewrites an event. When the start of a recurring event moves, its future
// generated instances are shifted by the same offset.
func (s *Service) Update(ctx context.Context, in UpdateInput) (domain.Event, error) {
	if in.ID == uuid.Nil {
		return domain.Event{}, validationError("event_id is required")
	}
	sched, err := validateSchedule(in.Title, in.StartDate, in.EndDate, in.RecurrenceType)
	if err != nil {
		return domain.Event{}, err
	}

	var out domain.Event
	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.EventTx) error {
		current, err := tx.GetEvent(ctx, in.ID)
		if err != nil {
			return err
		}
		shift := sched.start.Sub(current.StartDate.Time)

		current.Title = sched.title
		current.Description = strings.TrimSpace(in.Description)
		current.Location = strings.TrimSpace(in.Location)
		current.LocationURL = strings.TrimSpace(in.LocationURL)
		current.StartDate = sched.start
		current.EndDate = sched.end
		current.RecurrenceType = sched.recurrence
		current.IsPublished = in.IsPublished

		updated, err := tx.UpdateEvent(ctx, current)
		if err != nil {
			return err
		}
		out = updated

		if shift == 0 || !sched.recurrence.IsRecurring() {
			return nil
		}
		instances, err := tx.ListInstances(ctx, in.ID, s.now())
		if err != nil {
			return err
		}
		for _, inst := range instances {
			inst.StartDate = domain.NewInstant(inst.StartDate.Add(shift))
			if inst.EndDate != nil {
				end := domain.NewInstant(inst.EndDate.Add(shift))
				inst.EndDate = &end
			}
			if _, err := tx.UpdateEvent(ctx, inst); err != nil {
				return fmt.Errorf("shift instance %s: %w", inst.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validationError("event_id is required")
	}
	return s.repo.Delete(ctx, id)
}

// ListUpcoming returns published events starting at or after now, earliest first.
func (s *Service) ListUpcoming(ctx context.Context, now time.Time) ([]domain.Event, error) {
	return s.repo.ListUpcoming(ctx, now.UTC())
}

type SyncReport struct {
	Deleted  int
	Current  int
	Advanced int
	Skipped  int
	Failed   int
}

// SyncRecurring brings every recurring event up to date relative to now. Lapsed
// generated instances are removed before anything else is read. A failure on a
// single event is logged and counted; failures listing or cleaning up abort the pass.
func (s *Service) SyncRecurring(ctx context.Context, now time.Time) (SyncReport, error) {
	now = now.UTC()
	log := s.log.With(slog.Time("now", now))

	report, err := s.syncRecurring(ctx, now, log)
	if err != nil {
		s.metrics.SyncRun("error")
		log.Error("recurring event sync failed", slog.Any("err", err))
		return report, err
	}

	s.metrics.SyncRun("ok")
	s.metrics.SyncEvent("deleted", report.Deleted)
	s.metrics.SyncEvent("advanced", report.Advanced)
	s.metrics.SyncEvent("skipped", report.Skipped)
	s.metrics.SyncEvent("failed", report.Failed)

	log.Info(
		"recurring event sync finished",
		slog.Int("deleted", report.Deleted),
		slog.Int("current", report.Current),
		slog.Int("advanced", report.Advanced),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) syncRecurring(ctx context.Context, now time.Time, log *slog.Logger) (SyncReport, error) {
	var report SyncReport

	deleted, err := s.repo.DeleteLapsedInstances(ctx, now)
	if err != nil {
		return report, fmt.Errorf("delete lapsed instances: %w", err)
	}
	report.Deleted = deleted

	current, err := s.repo.ListCurrentInstances(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list current instances: %w", err)
	}
	report.Current = len(current)

	recurring, err := s.repo.ListRecurring(ctx)
	if err != nil {
		return report, fmt.Errorf("list recurring events: %w", err)
	}

	for _, ev := range recurring {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !ev.StartDate.Before(now) {
			continue
		}

		start := ev.StartDate.In(s.loc)
		next, steps := domain.AdvancePast(start, ev.RecurrenceType, now)
		if steps == 0 {
			log.Warn(
				"recurring event not advanced",
				slog.String("event_id", ev.ID.String()),
				slog.String("recurrence_type", string(ev.RecurrenceType)),
			)
			report.Skipped++
			continue
		}
		if next.Before(now) {
			log.Warn(
				"recurring event hit catch-up limit",
				slog.String("event_id", ev.ID.String()),
				slog.Int("steps", steps),
			)
		}

		end := next.Add(ev.Duration())
		if err := s.repo.UpdateSchedule(ctx, ev.ID, next, end); err != nil {
			log.Warn(
				"recurring event update failed",
				slog.String("event_id", ev.ID.String()),
				slog.Any("err", err),
			)
			report.Failed++
			continue
		}

		log.Debug(
			"recurring event advanced",
			slog.String("event_id", ev.ID.String()),
			slog.Time("from", ev.StartDate.Time),
			slog.Time("to", next.UTC()),
			slog.Int("steps", steps),
		)
		report.Advanced++
	}

	return report, nil
}
