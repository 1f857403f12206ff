package models

import "time"

type ContentType string

const (
	ContentVideo   ContentType = "video"
	ContentArticle ContentType = "article"
	ContentWebpage ContentType = "webpage"
)

// Snapshot is the engagement record sent to the collector. Values are rounded
// at production time and never mutated afterwards.
type Snapshot struct {
	SessionID   string      `json:"session_id"`
	URL         string      `json:"url"`
	Timestamp   time.Time   `json:"timestamp"`
	ContentType ContentType `json:"content_type"`
	Engagement  Engagement  `json:"engagement"`
}

type Engagement struct {
	ScrollDepth    float64 `json:"scroll_depth"`     // ratio, 3 decimals
	MaxScrollDepth float64 `json:"max_scroll_depth"` // ratio, 3 decimals
	IdleTime       int64   `json:"idle_time"`        // seconds
	ReadingTime    int64   `json:"reading_time"`     // seconds
	TotalScrolls   int     `json:"total_scrolls"`    // scroll sessions
	TabSwitches    int     `json:"tab_switches"`
	TabAwayTime    int64   `json:"tab_away_time"` // seconds

	VideoWatchedPercentage float64   `json:"video_watched_percentage"` // 1 decimal
	VideoDuration          int64     `json:"video_duration"`           // seconds
	VideoCurrentTime       int64     `json:"video_current_time"`       // seconds
	IsVideoPlaying         bool      `json:"is_video_playing"`
	PauseCount             int       `json:"pause_count"`
	SeekCount              int       `json:"seek_count"`
	SeekPositions          []float64 `json:"seek_positions"` // percent, 1 decimal
}

// IngestResponse is the collector reply. PredictedEngagement is nil when the
// collector has no score for the snapshot.
type IngestResponse struct {
	SessionID           string   `json:"session_id"`
	PredictedEngagement *float64 `json:"predicted_engagement,omitempty"`
	Status              string   `json:"status"`
}
