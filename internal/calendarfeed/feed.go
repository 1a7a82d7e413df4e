package calendarfeed

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"sanctuary/backend/internal/domain"
)

const (
	ProductID   = "-//sanctuary//events//EN"
	DefaultName = "Church Events"
	ContentType = "text/calendar; charset=utf-8"
)

// Feed renders upcoming events as an iCalendar subscription.
type Feed struct {
	name string
	loc  *time.Location
}

// New returns a feed whose times are written in loc. A nil or UTC location
// writes UTC times.
func New(name string, loc *time.Location) *Feed {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Feed{name: name, loc: loc}
}

// Named returns a copy of f published under name. An empty name keeps f.
func (f *Feed) Named(name string) *Feed {
	if strings.TrimSpace(name) == "" {
		return f
	}
	return &Feed{name: strings.TrimSpace(name), loc: f.loc}
}

// Render writes one VEVENT per event that has not ended by now. Recurring
// series carry an RRULE; generated instances of a series that is itself in the
// feed are left out so subscribers do not see them twice.
func Render(events []domain.Event, now time.Time, name string) (string, error) {
	return New(name, time.UTC).Render(events, now)
}

func (f *Feed) Render(events []domain.Event, now time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(f.name)
	if f.loc != time.UTC {
		cal.SetXWRTimezone(f.loc.String())
	}

	series := map[string]bool{}
	for _, ev := range events {
		if ev.RecurrenceType.IsRecurring() {
			series[ev.ID.String()] = true
		}
	}

	list := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if ev.StartDate.IsZero() {
			return "", fmt.Errorf("calendarfeed: event %s has no start", ev.ID)
		}
		if ev.IsInstance() && series[ev.ParentEventID.String()] {
			continue
		}
		if !ev.RecurrenceType.IsRecurring() && ev.End().Before(now) {
			continue
		}
		list = append(list, ev)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].StartDate.Before(list[j].StartDate.Time)
	})

	for _, ev := range list {
		f.addEvent(cal, ev, now)
	}
	return cal.Serialize(), nil
}

func (f *Feed) addEvent(cal *ical.Calendar, ev domain.Event, now time.Time) {
	vev := cal.AddEvent(ev.ID.String())
	vev.SetDtStampTime(now.UTC())
	if !ev.UpdatedAt.IsZero() {
		vev.SetModifiedAt(ev.UpdatedAt.UTC())
	}

	start := ev.StartDate.In(f.loc)
	end := start.Add(ev.Duration())
	f.setTime(vev, ical.ComponentPropertyDtStart, start)
	f.setTime(vev, ical.ComponentPropertyDtEnd, end)

	vev.SetSummary(ev.Title)
	if ev.Location != "" {
		vev.SetLocation(ev.Location)
	}
	if ev.Description != "" {
		vev.SetDescription(ev.Description)
	}
	if ev.LocationURL != "" {
		vev.SetURL(ev.LocationURL)
	}
	if rule, ok := ev.RecurrenceType.RRule(start); ok {
		vev.AddRrule(domain.RRuleString(rule))
	}
}

func (f *Feed) setTime(vev *ical.VEvent, prop ical.ComponentProperty, t time.Time) {
	if f.loc == time.UTC {
		vev.SetProperty(prop, t.UTC().Format("20060102T150405Z"))
		return
	}
	vev.SetProperty(prop, t.Format("20060102T150405"), &ical.KeyValues{
		Key:   string(ical.ParameterTzid),
		Value: []string{f.loc.String()},
	})
}
