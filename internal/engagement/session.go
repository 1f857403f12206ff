// Package engagement accumulates per-page engagement state from host events
// and produces snapshots of it.
//
// Nothing here is safe for concurrent use. Every call, including timer
// callbacks delivered through the Scheduler, must come from one logical
// thread; internal/tracker provides that loop.
package engagement

import (
	"time"

	"github.com/google/uuid"

	"github.com/svchittilla/gamemycourse/internal/models"
)

const DefaultIdleThreshold = 60 * time.Second

type Options struct {
	IdleThreshold time.Duration
	// Scheduler delivers scroll quiet-period callbacks. Required.
	Scheduler Scheduler
	// NewID overrides session id generation.
	NewID func() string
}

func NewSessionID() string {
	return "sess_" + uuid.NewString()
}

// Session owns one set of trackers for a single piece of content.
type Session struct {
	opts Options

	id    string
	url   string
	start time.Time

	activity   *ActivityClock
	scroll     *ScrollSessionTracker
	visibility *TabVisibilityTracker
	video      *VideoPlaybackTracker
	idle       *IdleAccumulator
	profile    PageProfile
}

func NewSession(url string, now time.Time, opts Options) *Session {
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = DefaultIdleThreshold
	}
	if opts.NewID == nil {
		opts.NewID = NewSessionID
	}
	if opts.Scheduler == nil {
		panic("engagement: Options.Scheduler is required")
	}
	s := &Session{opts: opts}
	s.init(url, now)
	return s
}

func (s *Session) init(url string, now time.Time) {
	s.id = s.opts.NewID()
	s.url = url
	s.start = now
	s.activity = NewActivityClock(now)
	s.scroll = NewScrollSessionTracker(s.activity, s.opts.Scheduler)
	s.visibility = &TabVisibilityTracker{}
	s.video = NewVideoPlaybackTracker(s.activity)
	s.idle = NewIdleAccumulator(s.opts.IdleThreshold, s.activity, s.visibility, s.video)
}

// Reset replaces all state with a fresh session under a new id. An empty url
// keeps the current one, along with its page profile. Pending timers are
// discarded.
func (s *Session) Reset(url string, now time.Time) {
	if url == "" {
		url = s.url
	}
	if url != s.url {
		s.profile = PageProfile{}
	}
	onScrollEnd := s.scroll.OnSessionEnd
	s.Close()
	s.init(url, now)
	s.scroll.OnSessionEnd = onScrollEnd
}

// Close discards pending timers.
func (s *Session) Close() {
	s.scroll.Stop()
}

func (s *Session) RecordActivity(now time.Time) {
	s.activity.RecordActivity(now)
}

func (s *Session) Scroll(scrollTop, scrollableHeight float64, now time.Time) {
	s.scroll.Sample(scrollTop, scrollableHeight, now)
}

func (s *Session) Hide(now time.Time) {
	s.visibility.OnHidden(now)
}

// Show settles the idle accounting up to now while still hidden, then closes
// the away interval. Every visible signal counts as activity, including one
// that arrives after a reset while the page was hidden.
func (s *Session) Show(now time.Time) {
	if s.visibility.Hidden() {
		s.idle.Reconcile(now)
		if elapsed, ok := s.visibility.OnVisible(now); ok {
			s.idle.FoldHidden(elapsed)
		}
	}
	s.activity.RecordActivity(now)
}

// Media routes a media lifecycle event for element e.
func (s *Session) Media(e MediaElement, event string, currentTime, duration float64, now time.Time) {
	if e.ID == "" {
		return
	}
	s.video.Observe(e)
	switch event {
	case models.MediaLoadedMetadata, models.MediaTimeUpdate:
		s.video.OnProgress(e.ID, currentTime, duration, now)
	case models.MediaPlay:
		s.video.OnPlay(e.ID, now)
	case models.MediaPause:
		s.video.OnPause(e.ID, now)
	case models.MediaSeeking:
		s.video.OnSeeking(e.ID)
	case models.MediaSeeked:
		s.video.OnSeek(e.ID, currentTime, duration, now)
	case models.MediaEnded:
		s.video.OnEnded(e.ID)
	}
}

func (s *Session) SetPageProfile(p PageProfile) {
	s.profile = p
}

// Snapshot is the on-demand read. Calling it twice without events in
// between yields the same values apart from time-derived fields.
func (s *Session) Snapshot(now time.Time) (models.Snapshot, bool) {
	return SnapshotGenerator{session: s}.Generate(now)
}

func (s *Session) ID() string                           { return s.id }
func (s *Session) URL() string                          { return s.url }
func (s *Session) StartTime() time.Time                 { return s.start }
func (s *Session) Activity() *ActivityClock             { return s.activity }
func (s *Session) ScrollTracker() *ScrollSessionTracker { return s.scroll }
func (s *Session) Visibility() *TabVisibilityTracker    { return s.visibility }
func (s *Session) Video() *VideoPlaybackTracker         { return s.video }
func (s *Session) IdleAccumulator() *IdleAccumulator    { return s.idle }
func (s *Session) PageProfile() PageProfile             { return s.profile }
