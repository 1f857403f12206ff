package engagement

import "time"

// ActivityClock tracks the most recent user activity. lastIdleCheckAt is
// pulled forward on every activity so idle accrual restarts from there.
type ActivityClock struct {
	lastActivityAt  time.Time
	lastIdleCheckAt time.Time
}

func NewActivityClock(now time.Time) *ActivityClock {
	return &ActivityClock{lastActivityAt: now, lastIdleCheckAt: now}
}

func (c *ActivityClock) RecordActivity(now time.Time) {
	c.lastActivityAt = now
	c.lastIdleCheckAt = now
}

func (c *ActivityClock) TimeSinceActivity(now time.Time) time.Duration {
	return nonNegative(now.Sub(c.lastActivityAt))
}

func (c *ActivityClock) LastActivityAt() time.Time {
	return c.lastActivityAt
}

func (c *ActivityClock) sinceLastCheck(now time.Time) time.Duration {
	return nonNegative(now.Sub(c.lastIdleCheckAt))
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
