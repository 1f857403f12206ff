package main

import (
	"strings"
	"testing"
	"time"

	"github.com/svchittilla/gamemycourse/internal/models"
	"github.com/svchittilla/gamemycourse/internal/tracker"
)

func TestSpan(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "now"},
		{1, "1 second"},
		{45, "45 seconds"},
		{120, "2 minutes"},
	}
	for _, tt := range tests {
		if got := span(tt.seconds); got != tt.want {
			t.Errorf("span(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	snapshot := tracker.ReplaySnapshot{
		Snapshot: models.Snapshot{
			SessionID:   "sess_1",
			Timestamp:   time.Date(2025, 3, 1, 12, 0, 10, 0, time.UTC),
			ContentType: models.ContentVideo,
			Engagement: models.Engagement{
				ReadingTime:            120,
				MaxScrollDepth:         0.25,
				TotalScrolls:           3,
				VideoWatchedPercentage: 40.5,
				VideoDuration:          600,
				PauseCount:             2,
			},
		},
	}

	line := summarize(2, snapshot)
	for _, want := range []string{"12:00:10", "2nd", "reading 2 minutes", "scroll 25% of page", "video 40.5% of 10 minutes", "2 pauses"} {
		if !strings.Contains(line, want) {
			t.Errorf("summary %q missing %q", line, want)
		}
	}

	snapshot.Final = true
	if !strings.Contains(summarize(3, snapshot), "final") {
		t.Error("expected final label")
	}
}
