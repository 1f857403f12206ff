package engagement

import "time"

// IdleAccumulator folds inactivity and hidden-page time into a single idle
// total. Inactivity counts only past the threshold and never while the
// primary video plays. Hidden time counts unconditionally, exactly once:
// foldedHidden is the part of the current hidden interval already added.
type IdleAccumulator struct {
	threshold  time.Duration
	activity   *ActivityClock
	visibility *TabVisibilityTracker
	video      *VideoPlaybackTracker

	idle         time.Duration
	foldedHidden time.Duration
}

func NewIdleAccumulator(threshold time.Duration, activity *ActivityClock, visibility *TabVisibilityTracker, video *VideoPlaybackTracker) *IdleAccumulator {
	return &IdleAccumulator{
		threshold:  threshold,
		activity:   activity,
		visibility: visibility,
		video:      video,
	}
}

func (a *IdleAccumulator) Reconcile(now time.Time) {
	sinceActivity := a.activity.TimeSinceActivity(now)
	window := a.activity.sinceLastCheck(now)

	// The hidden part of the window is folded below, not judged here.
	if a.visibility.Hidden() {
		window = nonNegative(a.visibility.HiddenSince().Sub(a.activity.lastIdleCheckAt))
	}
	if sinceActivity > a.threshold && !a.video.Playing() {
		a.idle += min(window, sinceActivity)
	}

	if a.visibility.Hidden() {
		hidden := a.visibility.hiddenFor(now)
		if hidden > a.foldedHidden {
			a.idle += hidden - a.foldedHidden
			a.foldedHidden = hidden
		}
	}

	a.activity.lastIdleCheckAt = now
}

// FoldHidden adds the rest of a finished hidden interval and clears the cursor.
func (a *IdleAccumulator) FoldHidden(elapsed time.Duration) {
	if elapsed > a.foldedHidden {
		a.idle += elapsed - a.foldedHidden
	}
	a.foldedHidden = 0
}

func (a *IdleAccumulator) Idle() time.Duration      { return a.idle }
func (a *IdleAccumulator) Threshold() time.Duration { return a.threshold }
