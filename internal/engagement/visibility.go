package engagement

import "time"

// TabVisibilityTracker accumulates time the page spent hidden.
// hiddenSince is non-zero exactly while the page is hidden.
type TabVisibilityTracker struct {
	hiddenSince time.Time
	totalAway   time.Duration
	switchCount int
}

// OnHidden marks the page hidden. A repeated hidden signal does not restart
// the away interval or count another switch.
func (t *TabVisibilityTracker) OnHidden(now time.Time) {
	if t.Hidden() {
		return
	}
	t.hiddenSince = now
	t.switchCount++
}

// OnVisible folds the finished away interval into the total and returns it.
// ok is false when the page was not hidden.
func (t *TabVisibilityTracker) OnVisible(now time.Time) (elapsed time.Duration, ok bool) {
	if !t.Hidden() {
		return 0, false
	}
	elapsed = nonNegative(now.Sub(t.hiddenSince))
	t.totalAway += elapsed
	t.hiddenSince = time.Time{}
	return elapsed, true
}

// CurrentAway includes the ongoing hidden interval, if any.
func (t *TabVisibilityTracker) CurrentAway(now time.Time) time.Duration {
	return t.totalAway + t.hiddenFor(now)
}

func (t *TabVisibilityTracker) hiddenFor(now time.Time) time.Duration {
	if !t.Hidden() {
		return 0
	}
	return nonNegative(now.Sub(t.hiddenSince))
}

func (t *TabVisibilityTracker) Hidden() bool             { return !t.hiddenSince.IsZero() }
func (t *TabVisibilityTracker) HiddenSince() time.Time   { return t.hiddenSince }
func (t *TabVisibilityTracker) TotalAway() time.Duration { return t.totalAway }
func (t *TabVisibilityTracker) SwitchCount() int         { return t.switchCount }
