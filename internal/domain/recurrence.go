package domain

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

type RecurrenceType string

const (
	RecurrenceNone         RecurrenceType = "NONE"
	RecurrenceWeekly       RecurrenceType = "WEEKLY"
	RecurrenceBiweekly     RecurrenceType = "BIWEEKLY"
	RecurrenceMonthly      RecurrenceType = "MONTHLY"
	RecurrenceFirstTuesday RecurrenceType = "FIRST_TUESDAY"
)

// MaxCatchUpSteps bounds how many increments AdvancePast will take for a single event.
const MaxCatchUpSteps = 10000

// ParseRecurrenceType normalizes stored values. Empty input means NONE; unknown
// values are kept so they can be shown to an admin, but they never advance.
func ParseRecurrenceType(s string) RecurrenceType {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RecurrenceNone
	}
	return RecurrenceType(s)
}

func (r RecurrenceType) IsRecurring() bool {
	return ParseRecurrenceType(string(r)) != RecurrenceNone
}

func (r RecurrenceType) Known() bool {
	switch ParseRecurrenceType(string(r)) {
	case RecurrenceNone, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly, RecurrenceFirstTuesday:
		return true
	}
	return false
}

// Label renders the type for display: FIRST_TUESDAY -> "First Tuesday", NONE -> "".
func (r RecurrenceType) Label() string {
	norm := ParseRecurrenceType(string(r))
	if norm == RecurrenceNone {
		return ""
	}
	words := strings.Split(string(norm), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = w[:1] + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// RRule returns the iCalendar rule equivalent of r, anchored at dtstart.
func (r RecurrenceType) RRule(dtstart time.Time) (*rrule.RRule, bool) {
	opt := rrule.ROption{Dtstart: dtstart}
	switch ParseRecurrenceType(string(r)) {
	case RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
	case RecurrenceBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
	case RecurrenceFirstTuesday:
		opt.Freq = rrule.MONTHLY
		opt.Byweekday = []rrule.Weekday{rrule.TU.Nth(1)}
	default:
		return nil, false
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, false
	}
	return rule, true
}

// RRuleString renders the RRULE value of rule without its DTSTART line.
func RRuleString(rule *rrule.RRule) string {
	if rule == nil {
		return ""
	}
	return rule.OrigOptions.RRuleString()
}

// NextOccurrence returns the occurrence following current for the given recurrence.
// The boolean is false when the type does not recur, in which case callers must not
// advance the event.
func NextOccurrence(current time.Time, kind RecurrenceType) (time.Time, bool) {
	switch ParseRecurrenceType(string(kind)) {
	case RecurrenceWeekly:
		return current.AddDate(0, 0, 7), true
	case RecurrenceBiweekly:
		return current.AddDate(0, 0, 14), true
	case RecurrenceMonthly:
		return current.AddDate(0, 1, 0), true
	case RecurrenceFirstTuesday:
		return firstTuesdayOfNextMonth(current), true
	default:
		return time.Time{}, false
	}
}

func firstTuesdayOfNextMonth(current time.Time) time.Time {
	y, m, _ := current.Date()
	anchor := time.Date(y, m+1, 1, current.Hour(), current.Minute(), current.Second(), 0, current.Location())

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.MONTHLY,
		Dtstart:   anchor,
		Byweekday: []rrule.Weekday{rrule.TU.Nth(1)},
		Count:     1,
	})
	if err == nil {
		if occs := rule.All(); len(occs) == 1 && occs[0].Month() == anchor.Month() {
			return occs[0].In(current.Location())
		}
	}

	next := anchor
	for next.Weekday() != time.Tuesday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// AdvancePast repeatedly applies NextOccurrence until the result is at or after now.
// It returns the last computed start and the number of increments taken. When the
// type does not recur the original start is returned with zero steps.
func AdvancePast(start time.Time, kind RecurrenceType, now time.Time) (time.Time, int) {
	next := start
	steps := 0
	for next.Before(now) && steps < MaxCatchUpSteps {
		calculated, ok := NextOccurrence(next, kind)
		if !ok {
			break
		}
		next = calculated
		steps++
	}
	return next, steps
}

// UpcomingOccurrences lists up to n occurrence starts at or after from, following the
// recurrence forward from start. A non-recurring start is returned alone if it is
// not in the past.
func UpcomingOccurrences(start time.Time, kind RecurrenceType, from time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	first, _ := AdvancePast(start, kind, from)
	if first.Before(from) {
		return nil
	}

	out := make([]time.Time, 0, n)
	out = append(out, first)
	for len(out) < n {
		next, ok := NextOccurrence(out[len(out)-1], kind)
		if !ok {
			break
		}
		out = append(out, next)
	}
	return out
}
