package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Instant is a point in time normalized to whole UTC seconds. Event rows written by
// older tooling carry start/end values as native timestamps, epoch seconds, or
// loosely formatted strings; Instant accepts all of them so the rest of the code
// only ever sees one representation.
type Instant struct {
	time.Time
}

var ErrInvalidInstant = errors.New("invalid instant")

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func NewInstant(t time.Time) Instant {
	if t.IsZero() {
		return Instant{}
	}
	return Instant{Time: t.UTC().Truncate(time.Second)}
}

func InstantFromUnix(sec int64) Instant {
	return Instant{Time: time.Unix(sec, 0).UTC()}
}

func ParseInstant(v any) (Instant, error) {
	switch x := v.(type) {
	case nil:
		return Instant{}, nil
	case Instant:
		return NewInstant(x.Time), nil
	case *Instant:
		if x == nil {
			return Instant{}, nil
		}
		return NewInstant(x.Time), nil
	case time.Time:
		return NewInstant(x), nil
	case *time.Time:
		if x == nil {
			return Instant{}, nil
		}
		return NewInstant(*x), nil
	case int64:
		return InstantFromUnix(x), nil
	case int32:
		return InstantFromUnix(int64(x)), nil
	case int:
		return InstantFromUnix(int64(x)), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Instant{}, ErrInvalidInstant
		}
		return InstantFromUnix(int64(math.Floor(x))), nil
	case []byte:
		return parseInstantString(string(x))
	case string:
		return parseInstantString(x)
	default:
		return Instant{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidInstant, v)
	}
}

func parseInstantString(s string) (Instant, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Instant{}, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return InstantFromUnix(sec), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return ParseInstant(f)
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewInstant(t), nil
		}
	}
	return Instant{}, fmt.Errorf("%w: %q", ErrInvalidInstant, s)
}

func (i Instant) Unix() int64 {
	if i.IsZero() {
		return 0
	}
	return i.Time.Unix()
}

func (i *Instant) Scan(src any) error {
	v, err := ParseInstant(src)
	if err != nil {
		return err
	}
	*i = v
	return nil
}

func (i Instant) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}
	return i.Time, nil
}

func (i Instant) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(i.Time.Format(time.RFC3339))
}

func (i *Instant) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := ParseInstant(raw)
	if err != nil {
		return err
	}
	*i = v
	return nil
}
