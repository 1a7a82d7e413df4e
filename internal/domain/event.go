package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultEventDuration applies when an event was stored without an end date.
const DefaultEventDuration = time.Hour

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	Title          string         `bun:"title,notnull" json:"title"`
	Description    string         `bun:"description" json:"description"`
	Location       string         `bun:"location" json:"location"`
	LocationURL    string         `bun:"location_url" json:"locationUrl,omitempty"`
	StartDate      Instant        `bun:"start_date,notnull,type:timestamptz" json:"startDate"`
	EndDate        *Instant       `bun:"end_date,type:timestamptz" json:"endDate,omitempty"`
	RecurrenceType RecurrenceType `bun:"recurrence_type,notnull" json:"recurrenceType"`
	ParentEventID  *uuid.UUID     `bun:"parent_event_id,type:uuid" json:"parentEventId,omitempty"`
	IsPublished    bool           `bun:"is_published,notnull" json:"isPublished"`
	CreatedAt      time.Time      `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time      `bun:"updated_at,notnull" json:"updatedAt"`
}

// Duration is end minus start, or DefaultEventDuration when no end was recorded.
func (e Event) Duration() time.Duration {
	if e.EndDate == nil || e.EndDate.IsZero() {
		return DefaultEventDuration
	}
	return e.EndDate.Sub(e.StartDate.Time)
}

// End returns the effective end instant.
func (e Event) End() time.Time {
	return e.StartDate.Add(e.Duration())
}

func (e Event) IsInstance() bool {
	return e.ParentEventID != nil && *e.ParentEventID != uuid.Nil
}

func (e *Event) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.RecurrenceType == "" {
			e.RecurrenceType = RecurrenceNone
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

// SiteSetting is one row of the remote key/value configuration.
type SiteSetting struct {
	bun.BaseModel `bun:"table:site_config"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
