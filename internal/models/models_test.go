package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateEvent(t *testing.T) {
	tests := []struct {
		name      string
		event     Event
		wantError bool
	}{
		{
			name:      "valid activity event",
			event:     Event{TSUTC: 1234567890, URL: "https://example.com", Type: EventActivity},
			wantError: false,
		},
		{
			name:      "empty type",
			event:     Event{TSUTC: 1234567890, URL: "https://example.com"},
			wantError: true,
		},
		{
			name:      "invalid event type",
			event:     Event{TSUTC: 1234567890, URL: "https://example.com", Type: "click"},
			wantError: true,
		},
		{
			name:      "zero timestamp",
			event:     Event{TSUTC: 0, URL: "https://example.com", Type: EventScroll},
			wantError: true,
		},
		{
			name:      "negative timestamp",
			event:     Event{TSUTC: -1, URL: "https://example.com", Type: EventScroll},
			wantError: true,
		},
		{
			name:      "navigate without url",
			event:     Event{TSUTC: 1234567890, Type: EventNavigate},
			wantError: true,
		},
		{
			name:      "navigate with url in data",
			event:     Event{TSUTC: 1234567890, Type: EventNavigate, Data: json.RawMessage(`{"url":"https://example.com/next"}`)},
			wantError: false,
		},
		{
			name:      "navigate with malformed data",
			event:     Event{TSUTC: 1234567890, URL: "https://example.com", Type: EventNavigate, Data: json.RawMessage(`[1]`)},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	event := Event{TSUTC: 1, Type: EventScroll}
	data := ScrollData{ScrollTop: 7}
	if err := event.Decode(&data); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if data.ScrollTop != 7 {
		t.Errorf("expected payload to stay unchanged, got %v", data.ScrollTop)
	}
}

func TestNewEventPayload(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	event, err := NewEvent(EventMedia, at, "https://example.com", MediaData{Element: "v1", Event: MediaPlay})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if !event.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", event.Time(), at)
	}

	var media MediaData
	if err := event.Decode(&media); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if media.Element != "v1" || media.Event != MediaPlay {
		t.Errorf("unexpected payload: %+v", media)
	}
}

func TestSnapshotWireShape(t *testing.T) {
	snapshot := Snapshot{
		SessionID:   "sess_1",
		URL:         "https://example.com",
		Timestamp:   time.Date(2009, 2, 13, 23, 31, 30, 0, time.UTC),
		ContentType: ContentArticle,
		Engagement:  Engagement{SeekPositions: []float64{12.5}},
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("Failed to marshal snapshot: %v", err)
	}

	body := string(data)
	for _, key := range []string{`"session_id"`, `"content_type":"article"`, `"engagement"`, `"max_scroll_depth"`, `"tab_away_time"`, `"seek_positions":[12.5]`, `"video_watched_percentage"`} {
		if !strings.Contains(body, key) {
			t.Errorf("expected %s in %s", key, body)
		}
	}
}

func TestIngestResponseWithoutScore(t *testing.T) {
	var resp IngestResponse
	if err := json.Unmarshal([]byte(`{"session_id":"sess_1","status":"recorded"}`), &resp); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if resp.PredictedEngagement != nil {
		t.Errorf("expected no score, got %v", *resp.PredictedEngagement)
	}
}
