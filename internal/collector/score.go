package collector

import (
	"math"

	"github.com/svchittilla/gamemycourse/internal/models"
)

// Score estimates engagement in [0,1] from a final snapshot. Video sessions
// are scored on playback alone; everything else on reading behaviour.
func Score(snapshot models.Snapshot) float64 {
	e := snapshot.Engagement
	if snapshot.ContentType == models.ContentVideo {
		return videoScore(e)
	}
	return readingScore(e)
}

func videoScore(e models.Engagement) float64 {
	score := e.VideoWatchedPercentage / 90
	score += 0.01 * math.Min(float64(e.PauseCount), 8)
	score -= 0.03 * float64(e.SeekCount)
	return round(clip(score))
}

func readingScore(e models.Engagement) float64 {
	depth := clip((e.MaxScrollDepth - 0.4) / 0.5)
	scrolls := clip((float64(e.TotalScrolls) - 4) / 12.5)

	attention := 0.5
	if e.ReadingTime > 0 {
		idleRatio := float64(e.IdleTime) / float64(e.ReadingTime)
		attention = clip(1 - idleRatio/0.3)
	}
	return round(clip((depth + scrolls + attention) / 3))
}

func clip(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
