package engagement

import (
	"math"
	"time"

	"github.com/svchittilla/gamemycourse/internal/models"
)

// SnapshotGenerator assembles a Session's trackers into an immutable
// Snapshot. Rounding happens here only; the trackers keep full precision.
type SnapshotGenerator struct {
	session *Session
}

// Generate reconciles idle time as of now and returns the snapshot. ok is
// false for documents without a network origin.
func (g SnapshotGenerator) Generate(now time.Time) (snapshot models.Snapshot, ok bool) {
	s := g.session
	if !Trackable(s.url) {
		return models.Snapshot{}, false
	}

	s.idle.Reconcile(now)
	video := s.video.State()
	profile := s.profile
	profile.HasMedia = profile.HasMedia || s.video.HasMedia()

	seekPositions := video.SeekPositions
	if seekPositions == nil {
		seekPositions = []float64{}
	}

	return models.Snapshot{
		SessionID:   s.id,
		URL:         s.url,
		Timestamp:   now.UTC(),
		ContentType: Classify(s.url, profile),
		Engagement: models.Engagement{
			ScrollDepth:    round(s.scroll.CurrentDepth(), 3),
			MaxScrollDepth: round(s.scroll.MaxDepth(), 3),
			IdleTime:       seconds(s.idle.Idle()),
			ReadingTime:    seconds(nonNegative(now.Sub(s.start))),
			TotalScrolls:   s.scroll.SessionCount(),
			TabSwitches:    s.visibility.SwitchCount(),
			TabAwayTime:    seconds(s.visibility.CurrentAway(now)),

			VideoWatchedPercentage: round(video.WatchedPercent, 1),
			VideoDuration:          int64(math.Round(video.Duration)),
			VideoCurrentTime:       int64(math.Round(video.CurrentTime)),
			IsVideoPlaying:         video.Playing,
			PauseCount:             video.PauseCount,
			SeekCount:              video.SeekCount,
			SeekPositions:          seekPositions,
		},
	}, true
}

func seconds(d time.Duration) int64 {
	return int64(math.Round(d.Seconds()))
}
