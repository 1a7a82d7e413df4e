package domain

import "time"

type MediaType string

const (
	MediaSermons     MediaType = "sermons"
	MediaLivestreams MediaType = "livestreams"
)

const (
	UnknownSpeaker     = "Unknown Speaker"
	PlaceholderTitle   = "Latest Sermon"
	NoSermonsMessage   = "No recent sermons found."
	UnavailableMessage = "Unable to fetch latest sermon at this time."
)

// Sermon is a normalized catalog item. It is rebuilt on every cache miss and has
// no identity beyond the source item id.
type Sermon struct {
	ID           string    `json:"id,omitempty"`
	VideoID      *string   `json:"videoId"`
	Title        string    `json:"title"`
	Speaker      string    `json:"speaker,omitempty"`
	Description  string    `json:"description,omitempty"`
	Date         time.Time `json:"date,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	StreamURL    string    `json:"streamUrl,omitempty"`
	SeriesName   string    `json:"seriesName,omitempty"`
	Type         MediaType `json:"type,omitempty"`
	IsLive       bool      `json:"isLive,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// HasContent reports whether s points at a playable item. Placeholders do not.
func (s *Sermon) HasContent() bool {
	return s != nil && s.VideoID != nil && *s.VideoID != ""
}

// PlaceholderSermon is what read paths hand back instead of an error.
func PlaceholderSermon(reason, description string) Sermon {
	if description == "" {
		description = UnavailableMessage
	}
	return Sermon{
		Title:       PlaceholderTitle,
		Description: description,
		VideoID:     nil,
		Error:       reason,
	}
}
