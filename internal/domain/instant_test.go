package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseInstant_NormalizesEncodings(t *testing.T) {
	want := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	sec := want.Unix()

	inputs := []any{
		want,
		want.In(time.FixedZone("EST", -5*3600)),
		want.Add(400 * time.Millisecond),
		sec,
		int32(sec),
		int(sec),
		float64(sec) + 0.25,
		"1704132000",
		"2024-01-01T18:00:00Z",
		"2024-01-01T13:00:00-05:00",
		"2024-01-01T18:00:00.123Z",
		"2024-01-01T18:00:00",
		"2024-01-01 18:00:00",
		[]byte("2024-01-01T18:00:00Z"),
	}

	for _, in := range inputs {
		got, err := ParseInstant(in)
		if err != nil {
			t.Fatalf("ParseInstant(%#v) error: %v", in, err)
		}
		if got.Unix() != sec {
			t.Fatalf("ParseInstant(%#v) = %v, want %v", in, got, want)
		}
		if got.Location() != time.UTC {
			t.Fatalf("ParseInstant(%#v) location = %v, want UTC", in, got.Location())
		}
	}
}

func TestParseInstant_EmptyAndInvalid(t *testing.T) {
	for _, in := range []any{nil, "", "   ", (*time.Time)(nil)} {
		got, err := ParseInstant(in)
		if err != nil {
			t.Fatalf("ParseInstant(%#v) error: %v", in, err)
		}
		if !got.IsZero() {
			t.Fatalf("ParseInstant(%#v) = %v, want zero", in, got)
		}
	}

	for _, in := range []any{"next tuesday", struct{}{}, true} {
		if _, err := ParseInstant(in); !errors.Is(err, ErrInvalidInstant) {
			t.Fatalf("ParseInstant(%#v) error = %v, want %v", in, err, ErrInvalidInstant)
		}
	}
}

func TestInstantScanAndValue(t *testing.T) {
	var i Instant
	if err := i.Scan(int64(1704132000)); err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	v, err := i.Value()
	if err != nil {
		t.Fatalf("Value error: %v", err)
	}
	tm, ok := v.(time.Time)
	if !ok {
		t.Fatalf("Value type = %T, want time.Time", v)
	}
	if tm.Unix() != 1704132000 {
		t.Fatalf("Value = %v, want unix 1704132000", tm)
	}

	var zero Instant
	if v, err := zero.Value(); err != nil || v != nil {
		t.Fatalf("zero Value = %v, %v; want nil, nil", v, err)
	}
}

func TestInstantJSON(t *testing.T) {
	in := struct {
		At  Instant  `json:"at"`
		End *Instant `json:"end"`
	}{At: NewInstant(time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC))}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(b) != `{"at":"2024-01-01T18:00:00Z","end":null}` {
		t.Fatalf("json = %s", b)
	}

	var out struct {
		At Instant `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":1704132000}`), &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if out.At.Unix() != 1704132000 {
		t.Fatalf("At = %v, want unix 1704132000", out.At)
	}
}

func TestEventDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	ev := Event{StartDate: NewInstant(start)}
	if ev.Duration() != DefaultEventDuration {
		t.Fatalf("duration = %v, want %v", ev.Duration(), DefaultEventDuration)
	}

	end := NewInstant(start.Add(150 * time.Minute))
	ev.EndDate = &end
	if ev.Duration() != 150*time.Minute {
		t.Fatalf("duration = %v, want %v", ev.Duration(), 150*time.Minute)
	}
	if !ev.End().Equal(end.Time) {
		t.Fatalf("end = %v, want %v", ev.End(), end)
	}
}

func TestPlaceholderSermon(t *testing.T) {
	p := PlaceholderSermon("no api key", "")
	if p.Title != PlaceholderTitle || p.VideoID != nil || p.Error != "no api key" {
		t.Fatalf("placeholder = %+v", p)
	}
	if p.Description != UnavailableMessage {
		t.Fatalf("description = %q, want %q", p.Description, UnavailableMessage)
	}
	if p.HasContent() {
		t.Fatalf("placeholder reports content")
	}
}
