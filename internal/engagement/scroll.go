package engagement

import "time"

const (
	rapidScrollGap    = 50 * time.Millisecond
	rapidQuietPeriod  = 500 * time.Millisecond
	normalQuietPeriod = 150 * time.Millisecond
)

// ScrollSessionTracker turns scroll samples into depth ratios and a count of
// discrete scroll bursts. A burst ends after a quiet period with no samples;
// the period is longer when samples arrive in rapid succession (key repeat,
// programmatic scrolling) so one gesture is not split into many sessions.
type ScrollSessionTracker struct {
	activity *ActivityClock
	quiet    debounce

	currentDepth float64
	maxDepth     float64
	sessionCount int
	scrolling    bool
	lastSampleAt time.Time

	// OnSessionEnd, when set, is called as a burst closes with its ordinal.
	OnSessionEnd func(session int)
}

func NewScrollSessionTracker(activity *ActivityClock, scheduler Scheduler) *ScrollSessionTracker {
	return &ScrollSessionTracker{
		activity: activity,
		quiet:    debounce{scheduler: scheduler},
	}
}

func (t *ScrollSessionTracker) Sample(scrollTop, scrollableHeight float64, now time.Time) {
	scrollTop, scrollableHeight = sanitize(scrollTop), sanitize(scrollableHeight)
	if scrollableHeight > 0 {
		t.currentDepth = clamp(scrollTop/scrollableHeight, 0, 1)
		if t.currentDepth > t.maxDepth {
			t.maxDepth = t.currentDepth
		}
	}

	if !t.scrolling {
		t.scrolling = true
		t.sessionCount++
	}

	quiet := normalQuietPeriod
	if !t.lastSampleAt.IsZero() && now.Sub(t.lastSampleAt) < rapidScrollGap {
		quiet = rapidQuietPeriod
	}
	t.quiet.arm(quiet, t.endBurst)

	t.lastSampleAt = now
	t.activity.RecordActivity(now)
}

func (t *ScrollSessionTracker) endBurst() {
	t.scrolling = false
	if t.OnSessionEnd != nil {
		t.OnSessionEnd(t.sessionCount)
	}
}

// Stop discards a pending quiet-period timer.
func (t *ScrollSessionTracker) Stop() {
	t.quiet.cancel()
	t.scrolling = false
}

func (t *ScrollSessionTracker) CurrentDepth() float64 { return t.currentDepth }
func (t *ScrollSessionTracker) MaxDepth() float64     { return t.maxDepth }
func (t *ScrollSessionTracker) SessionCount() int     { return t.sessionCount }
func (t *ScrollSessionTracker) Scrolling() bool       { return t.scrolling }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
