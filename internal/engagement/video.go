package engagement

import (
	"math"
	"time"
)

type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StatePlaying
	StatePaused
	StateEnded
)

func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "idle"
	}
}

// MediaElement identifies a media element on the page and its rendered frame.
type MediaElement struct {
	ID     string
	Width  float64
	Height float64
}

func frameArea(e MediaElement) float64 {
	if e.Width <= 0 || e.Height <= 0 {
		return 0
	}
	return e.Width * e.Height
}

// largerFrame reports whether a should replace b as the primary element.
// Ties keep b, so the first element seen wins.
func largerFrame(a, b MediaElement) bool {
	return frameArea(a) > frameArea(b)
}

type trackedMedia struct {
	element     MediaElement
	state       PlaybackState
	seeking     bool
	currentTime float64
	duration    float64
}

// VideoState is the primary element's contribution to the session metrics.
type VideoState struct {
	CurrentTime    float64
	Duration       float64
	WatchedPercent float64
	Playing        bool
	PauseCount     int
	SeekCount      int
	SeekPositions  []float64
}

// VideoPlaybackTracker follows every media element it is shown but only the
// primary one (largest frame, first seen on ties) feeds VideoState.
type VideoPlaybackTracker struct {
	activity *ActivityClock
	elements map[string]*trackedMedia
	primary  string
	state    VideoState
}

func NewVideoPlaybackTracker(activity *ActivityClock) *VideoPlaybackTracker {
	return &VideoPlaybackTracker{
		activity: activity,
		elements: make(map[string]*trackedMedia),
	}
}

// Observe registers or refreshes an element and returns whether it is the
// primary afterwards.
func (t *VideoPlaybackTracker) Observe(e MediaElement) bool {
	if e.ID == "" {
		return false
	}
	tracked, ok := t.elements[e.ID]
	if !ok {
		tracked = &trackedMedia{element: e}
		t.elements[e.ID] = tracked
	} else if frameArea(e) > 0 {
		tracked.element = e
	}

	if t.primary == "" {
		t.primary = e.ID
		t.adopt(tracked)
		return true
	}
	if t.primary != e.ID && largerFrame(tracked.element, t.elements[t.primary].element) {
		t.primary = e.ID
		t.adopt(tracked)
	}
	return t.primary == e.ID
}

// adopt carries the new primary's playback position into the session state.
// Counters keep accumulating across a primary change.
func (t *VideoPlaybackTracker) adopt(m *trackedMedia) {
	t.state.CurrentTime = m.currentTime
	t.state.Duration = m.duration
	t.state.Playing = m.state == StatePlaying
	switch {
	case m.state == StateEnded:
		t.state.WatchedPercent = 100
	case m.duration > 0:
		t.state.WatchedPercent = watchedPercent(m.currentTime, m.duration)
	default:
		t.state.WatchedPercent = 0
	}
}

func (t *VideoPlaybackTracker) lookup(id string) (*trackedMedia, bool) {
	m, ok := t.elements[id]
	if !ok {
		return nil, false
	}
	return m, id == t.primary
}

func (t *VideoPlaybackTracker) OnProgress(id string, currentTime, duration float64, now time.Time) {
	m, primary := t.lookup(id)
	if m == nil {
		return
	}
	currentTime, duration = sanitize(currentTime), sanitize(duration)
	m.currentTime = currentTime
	if duration > 0 {
		m.duration = duration
	}
	if !primary {
		return
	}
	t.state.CurrentTime = m.currentTime
	t.state.Duration = m.duration
	if m.duration > 0 && m.state != StateEnded {
		t.state.WatchedPercent = watchedPercent(m.currentTime, m.duration)
	}
	t.activity.RecordActivity(now)
}

func (t *VideoPlaybackTracker) OnPlay(id string, now time.Time) {
	m, primary := t.lookup(id)
	if m == nil {
		return
	}
	m.state = StatePlaying
	if !primary {
		return
	}
	t.state.Playing = true
	t.activity.RecordActivity(now)
}

// OnPause counts a pause only when the element was playing; repeated pause
// signals from a stopped element are ignored.
func (t *VideoPlaybackTracker) OnPause(id string, now time.Time) {
	m, primary := t.lookup(id)
	if m == nil || m.state != StatePlaying {
		return
	}
	m.state = StatePaused
	if !primary {
		return
	}
	t.state.Playing = false
	t.state.PauseCount++
	t.activity.RecordActivity(now)
}

// OnSeeking flags an in-progress seek. Play state is left alone.
func (t *VideoPlaybackTracker) OnSeeking(id string) {
	if m, _ := t.lookup(id); m != nil {
		m.seeking = true
	}
}

func (t *VideoPlaybackTracker) OnSeek(id string, currentTime, duration float64, now time.Time) {
	m, primary := t.lookup(id)
	if m == nil {
		return
	}
	currentTime, duration = sanitize(currentTime), sanitize(duration)
	m.seeking = false
	m.currentTime = currentTime
	if duration > 0 {
		m.duration = duration
	}
	if !primary {
		return
	}
	t.state.SeekCount++
	if duration > 0 {
		t.state.SeekPositions = append(t.state.SeekPositions, round(clamp(currentTime/duration*100, 0, 100), 1))
	}
	t.activity.RecordActivity(now)
}

func (t *VideoPlaybackTracker) OnEnded(id string) {
	m, primary := t.lookup(id)
	if m == nil {
		return
	}
	m.state = StateEnded
	m.seeking = false
	if !primary {
		return
	}
	t.state.Playing = false
	t.state.WatchedPercent = 100
}

// Reset forgets every element and all accumulated video metrics.
func (t *VideoPlaybackTracker) Reset() {
	t.elements = make(map[string]*trackedMedia)
	t.primary = ""
	t.state = VideoState{}
}

func (t *VideoPlaybackTracker) Playing() bool   { return t.state.Playing }
func (t *VideoPlaybackTracker) HasMedia() bool  { return len(t.elements) > 0 }
func (t *VideoPlaybackTracker) Primary() string { return t.primary }

// ElementState reports the playback state of any tracked element.
func (t *VideoPlaybackTracker) ElementState(id string) (PlaybackState, bool) {
	m, ok := t.elements[id]
	if !ok {
		return StateIdle, false
	}
	return m.state, true
}

// State returns a copy of the primary element's metrics.
func (t *VideoPlaybackTracker) State() VideoState {
	s := t.state
	s.SeekPositions = append([]float64(nil), t.state.SeekPositions...)
	return s
}

func watchedPercent(currentTime, duration float64) float64 {
	return clamp(currentTime/duration*100, 0, 100)
}

// maxSeconds bounds media positions and scroll offsets so they always fit
// the integer snapshot fields.
const maxSeconds = 1 << 53

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Min(v, maxSeconds)
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
