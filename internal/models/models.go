package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Host event types delivered by the page integration.
const (
	EventActivity   = "activity"
	EventScroll     = "scroll"
	EventVisibility = "visibility"
	EventMedia      = "media"
	EventNavigate   = "navigate"
	EventPage       = "page"
)

var validEventTypes = map[string]bool{
	EventActivity:   true,
	EventScroll:     true,
	EventVisibility: true,
	EventMedia:      true,
	EventNavigate:   true,
	EventPage:       true,
}

// Media lifecycle events carried in MediaData.Event.
const (
	MediaLoadedMetadata = "loadedmetadata"
	MediaPlay           = "play"
	MediaPause          = "pause"
	MediaSeeking        = "seeking"
	MediaSeeked         = "seeked"
	MediaTimeUpdate     = "timeupdate"
	MediaEnded          = "ended"
)

var ErrInvalidEvent = errors.New("invalid event")

type Event struct {
	TSUTC int64           `json:"ts_utc"` // unix milliseconds
	URL   string          `json:"url"`
	Type  string          `json:"type"` // activity|scroll|visibility|media|navigate|page
	Data  json.RawMessage `json:"data,omitempty"`
}

type Batch struct {
	Events []Event `json:"events"`
}

type ScrollData struct {
	ScrollTop        float64 `json:"scroll_top"`
	ScrollableHeight float64 `json:"scrollable_height"`
}

type VisibilityData struct {
	Hidden bool `json:"hidden"`
}

type MediaData struct {
	Element     string  `json:"element"`
	Event       string  `json:"event"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

type NavigateData struct {
	URL string `json:"url"`
}

// PageData describes the markers present on the page. When HTML is set the
// markers are derived from the markup instead.
type PageData struct {
	HasMedia   bool   `json:"has_media"`
	HasArticle bool   `json:"has_article"`
	HTML       string `json:"html,omitempty"`
}

// Time returns the event timestamp.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.TSUTC)
}

// Decode unmarshals the event payload into v. An empty payload leaves v unchanged.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", e.Type, err)
	}
	return nil
}

func (e Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: type cannot be empty", ErrInvalidEvent)
	}
	if !validEventTypes[e.Type] {
		return fmt.Errorf("%w: unknown event type: %s", ErrInvalidEvent, e.Type)
	}
	if e.TSUTC <= 0 {
		return fmt.Errorf("%w: timestamp must be positive", ErrInvalidEvent)
	}
	if e.Type == EventNavigate {
		var nav NavigateData
		if err := e.Decode(&nav); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		if nav.URL == "" && e.URL == "" {
			return fmt.Errorf("%w: navigate requires a url", ErrInvalidEvent)
		}
	}
	return nil
}

// NewEvent builds an event with a marshalled payload. A nil payload is omitted.
func NewEvent(eventType string, at time.Time, url string, payload any) (Event, error) {
	event := Event{TSUTC: at.UnixMilli(), URL: url, Type: eventType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		event.Data = data
	}
	return event, nil
}
