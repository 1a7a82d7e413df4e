package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sanctuary/backend/internal/domain"
)

// Item is a catalog entry before normalization. Both catalog backends map their
// payloads onto it.
type Item struct {
	ID                 string
	Name               string
	Overview           string
	PublishedAt        time.Time
	Path               string
	Tags               []string
	DurationCode       string
	LiveBroadcastState string
	ThumbnailURL       string
	StreamURL          string
}

const MinSermonMinutes = 15

var (
	worshipServiceKeywords = []string{"worship service", "sabbath service", "divine service", "church service"}
	sermonKeywords         = []string{"sermon", "message", "preaching"}

	fileExtPattern      = regexp.MustCompile(`\.(mp4|mov)$`)
	speakerDatePattern  = regexp.MustCompile(`(?i)\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d+(?:th|st|nd|rd)?\s*\d{4}$`)
	durationCodePattern = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)
)

// ParseTitle splits a "Title - Speaker Month Day Year" name into its title and
// speaker. Names without a speaker segment report domain.UnknownSpeaker.
func ParseTitle(raw string) (title, speaker string) {
	title = fileExtPattern.ReplaceAllString(raw, "")

	parts := strings.Split(title, " - ")
	if len(parts) > 1 {
		title = parts[0]
		speaker = speakerDatePattern.ReplaceAllString(strings.TrimSpace(parts[1]), "")
		speaker = strings.TrimSpace(strings.ReplaceAll(speaker, "|", ""))
	}
	title = strings.TrimSpace(title)
	if speaker == "" {
		speaker = domain.UnknownSpeaker
	}
	return title, speaker
}

// DurationMinutes converts a PT#H#M#S code to fractional minutes. Anything it
// cannot read counts as zero.
func DurationMinutes(code string) float64 {
	if code == "" {
		return 0
	}
	m := durationCodePattern.FindStringSubmatch(code)
	if m == nil {
		return 0
	}
	part := func(s string) float64 {
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0
		}
		return float64(n)
	}
	return part(m[1])*60 + part(m[2]) + part(m[3])/60
}

// DurationCode renders d in the same PT#H#M#S form the video API uses.
func DurationCode(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	var b strings.Builder
	b.WriteString("PT")
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if s > 0 || (h == 0 && m == 0) {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}

// LocalCalendarDate keeps the UTC calendar date of t and drops the time of day,
// expressed as midnight in loc.
func LocalCalendarDate(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

type Classification struct {
	DurationMinutes float64
	TooShort        bool
	WorshipService  bool
	SermonKeyword   bool
	Live            bool
	IsSermon        bool
}

// Eligible reports whether the item can be offered as the latest sermon.
func (c Classification) Eligible() bool {
	return c.IsSermon && !c.Live
}

// Classify decides whether an item from a mixed catalog is a sermon. A sermon
// keyword in the title or description always wins; otherwise the item has to be
// long enough and not titled as a full worship service.
func Classify(it Item) Classification {
	title := strings.ToLower(it.Name)
	description := strings.ToLower(it.Overview)

	c := Classification{
		DurationMinutes: DurationMinutes(it.DurationCode),
		Live:            isLive(it.LiveBroadcastState),
	}
	c.TooShort = c.DurationMinutes < MinSermonMinutes

	for _, kw := range worshipServiceKeywords {
		if strings.Contains(title, kw) {
			c.WorshipService = true
			break
		}
	}
	for _, kw := range sermonKeywords {
		if strings.Contains(title, kw) || strings.Contains(description, kw) {
			c.SermonKeyword = true
			break
		}
	}

	c.IsSermon = c.SermonKeyword || (!c.TooShort && !c.WorshipService)
	return c
}

func isLive(state string) bool {
	state = strings.ToLower(strings.TrimSpace(state))
	return state != "" && state != "none"
}

// Normalize maps a catalog item onto the sermon record handed to callers.
func Normalize(it Item, kind domain.MediaType, loc *time.Location) domain.Sermon {
	title, speaker := ParseTitle(it.Name)
	id := it.ID
	return domain.Sermon{
		ID:           id,
		VideoID:      &id,
		Title:        title,
		Speaker:      speaker,
		Description:  it.Overview,
		Date:         LocalCalendarDate(it.PublishedAt, loc),
		ThumbnailURL: it.ThumbnailURL,
		StreamURL:    it.StreamURL,
		SeriesName:   strings.Join(it.Tags, ", "),
		Type:         kind,
		IsLive:       isLive(it.LiveBroadcastState),
	}
}
