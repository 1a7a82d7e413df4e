package media

import (
	"testing"
	"time"

	"sanctuary/backend/internal/domain"
)

func TestParseTitle(t *testing.T) {
	tests := []struct {
		raw         string
		wantTitle   string
		wantSpeaker string
	}{
		{raw: "Faith in Action - John Smith November 2nd 2024", wantTitle: "Faith in Action", wantSpeaker: "John Smith"},
		{raw: "Faith in Action - John Smith November 2nd 2024.mp4", wantTitle: "Faith in Action", wantSpeaker: "John Smith"},
		{raw: "Grace Abounds - Pastor Lee | march 9 2024.mov", wantTitle: "Grace Abounds", wantSpeaker: "Pastor Lee"},
		{raw: "Walking by Faith - Elder Brown September 21st2024", wantTitle: "Walking by Faith", wantSpeaker: "Elder Brown"},
		{raw: "Hope - Jane Doe", wantTitle: "Hope", wantSpeaker: "Jane Doe"},
		{raw: "Sabbath Worship Service", wantTitle: "Sabbath Worship Service", wantSpeaker: domain.UnknownSpeaker},
		{raw: "Untitled - ", wantTitle: "Untitled", wantSpeaker: domain.UnknownSpeaker},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			title, speaker := ParseTitle(tt.raw)
			if title != tt.wantTitle {
				t.Fatalf("title = %q, want %q", title, tt.wantTitle)
			}
			if speaker != tt.wantSpeaker {
				t.Fatalf("speaker = %q, want %q", speaker, tt.wantSpeaker)
			}
		})
	}
}

func TestDurationMinutes(t *testing.T) {
	tests := map[string]float64{
		"PT1H10M":    70,
		"PT20M":      20,
		"PT45M30S":   45.5,
		"PT59S":      59.0 / 60,
		"PT2H":       120,
		"":           0,
		"not-a-code": 0,
	}
	for code, want := range tests {
		if got := DurationMinutes(code); got != want {
			t.Fatalf("DurationMinutes(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestDurationCode(t *testing.T) {
	tests := map[time.Duration]string{
		70 * time.Minute:                "PT1H10M",
		45*time.Minute + 30*time.Second: "PT45M30S",
		2 * time.Hour:                   "PT2H",
		0:                               "",
		500 * time.Millisecond:          "PT0S",
	}
	for d, want := range tests {
		if got := DurationCode(d); got != want {
			t.Fatalf("DurationCode(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		item         Item
		wantSermon   bool
		wantEligible bool
	}{
		{
			name:         "sermon keyword with ordinary length",
			item:         Item{Name: "Sunday Morning Sermon", DurationCode: "PT20M", LiveBroadcastState: "none"},
			wantSermon:   true,
			wantEligible: true,
		},
		{
			name:         "service title without keyword",
			item:         Item{Name: "Divine Service", DurationCode: "PT1H10M", LiveBroadcastState: "none"},
			wantSermon:   false,
			wantEligible: false,
		},
		{
			name:         "keyword in description of a short clip",
			item:         Item{Name: "Midweek thoughts", Overview: "A short MESSAGE of hope", DurationCode: "PT4M"},
			wantSermon:   true,
			wantEligible: true,
		},
		{
			name:         "keyword beats service title",
			item:         Item{Name: "Church Service and Sermon", DurationCode: "PT1H30M"},
			wantSermon:   true,
			wantEligible: true,
		},
		{
			name:         "long untagged video",
			item:         Item{Name: "Camp Meeting Highlights", DurationCode: "PT40M"},
			wantSermon:   true,
			wantEligible: true,
		},
		{
			name:         "short clip",
			item:         Item{Name: "Announcements", DurationCode: "PT3M"},
			wantSermon:   false,
			wantEligible: false,
		},
		{
			name:         "live broadcast",
			item:         Item{Name: "Sabbath Sermon", DurationCode: "PT0S", LiveBroadcastState: "live"},
			wantSermon:   true,
			wantEligible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.item)
			if c.IsSermon != tt.wantSermon {
				t.Fatalf("IsSermon = %v, want %v (%+v)", c.IsSermon, tt.wantSermon, c)
			}
			if c.Eligible() != tt.wantEligible {
				t.Fatalf("Eligible = %v, want %v (%+v)", c.Eligible(), tt.wantEligible, c)
			}
		})
	}
}

func TestLocalCalendarDate(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	got := LocalCalendarDate(time.Date(2024, 11, 2, 2, 30, 0, 0, time.UTC), loc)
	want := time.Date(2024, 11, 2, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("LocalCalendarDate = %v, want %v", got, want)
	}
	if !LocalCalendarDate(time.Time{}, loc).IsZero() {
		t.Fatalf("zero input should stay zero")
	}
}

func TestNormalize(t *testing.T) {
	s := Normalize(Item{
		ID:          "abc",
		Name:        "Faith in Action - John Smith November 2nd 2024.mp4",
		Overview:    "Part 3",
		PublishedAt: time.Date(2024, 11, 2, 15, 0, 0, 0, time.UTC),
		Tags:        []string{"Faith", "Works"},
	}, domain.MediaSermons, time.UTC)

	if !s.HasContent() || *s.VideoID != "abc" {
		t.Fatalf("video id = %v, want abc", s.VideoID)
	}
	if s.Title != "Faith in Action" || s.Speaker != "John Smith" {
		t.Fatalf("title/speaker = %q/%q", s.Title, s.Speaker)
	}
	if s.SeriesName != "Faith, Works" {
		t.Fatalf("series = %q, want %q", s.SeriesName, "Faith, Works")
	}
	if !s.Date.Equal(time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", s.Date)
	}
}
