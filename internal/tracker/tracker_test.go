package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/svchittilla/gamemycourse/internal/models"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type captureDeliverer struct {
	snapshots chan models.Snapshot
}

func (d *captureDeliverer) Deliver(snapshot models.Snapshot) {
	select {
	case d.snapshots <- snapshot:
	default:
	}
}

func setupTestTracker(t *testing.T, opts Options) (*Tracker, *fakeClock, *captureDeliverer) {
	t.Helper()
	clock := &fakeClock{now: base}
	deliverer := &captureDeliverer{snapshots: make(chan models.Snapshot, 16)}
	if opts.URL == "" {
		opts.URL = "https://example.com/lesson"
	}
	opts.Clock = clock.Now
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	tracker, err := New(opts, deliverer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return tracker, clock, deliverer
}

func mustEvent(t *testing.T, eventType string, at time.Time, payload any) models.Event {
	t.Helper()
	event, err := models.NewEvent(eventType, at, "https://example.com/lesson", payload)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	return event
}

func TestNewInvalidSchedule(t *testing.T) {
	_, err := New(Options{URL: "https://example.com", SnapshotSchedule: "every now and then"}, nil)
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestSubmitAndSnapshot(t *testing.T) {
	tracker, clock, _ := setupTestTracker(t, Options{})
	ctx := context.Background()

	err := tracker.Submit(ctx,
		mustEvent(t, models.EventScroll, base.Add(time.Second), models.ScrollData{ScrollTop: 600, ScrollableHeight: 1000}),
		mustEvent(t, models.EventVisibility, base.Add(10*time.Second), models.VisibilityData{Hidden: true}),
		mustEvent(t, models.EventVisibility, base.Add(40*time.Second), models.VisibilityData{Hidden: false}),
		mustEvent(t, models.EventPage, base.Add(41*time.Second), models.PageData{HTML: "<article>hi</article>"}),
	)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	clock.Set(base.Add(50 * time.Second))
	snapshot, ok, err := tracker.Snapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("Snapshot() = %v, %v", ok, err)
	}

	e := snapshot.Engagement
	if e.MaxScrollDepth != 0.6 || e.TotalScrolls != 1 {
		t.Errorf("scroll = %v/%d, want 0.6/1", e.MaxScrollDepth, e.TotalScrolls)
	}
	if e.TabSwitches != 1 || e.TabAwayTime != 30 || e.IdleTime != 30 {
		t.Errorf("visibility = %d/%d/%d, want 1/30/30", e.TabSwitches, e.TabAwayTime, e.IdleTime)
	}
	if e.ReadingTime != 50 {
		t.Errorf("ReadingTime = %d, want 50", e.ReadingTime)
	}
	if snapshot.ContentType != models.ContentArticle {
		t.Errorf("ContentType = %s, want article", snapshot.ContentType)
	}
}

func TestSubmitInvalidEventKeepsValidOnes(t *testing.T) {
	tracker, clock, _ := setupTestTracker(t, Options{})
	ctx := context.Background()

	err := tracker.Submit(ctx,
		models.Event{TSUTC: 0, Type: models.EventScroll},
		mustEvent(t, models.EventScroll, base.Add(time.Second), models.ScrollData{ScrollTop: 250, ScrollableHeight: 1000}),
	)
	if !errors.Is(err, models.ErrInvalidEvent) {
		t.Fatalf("Submit() error = %v, want ErrInvalidEvent", err)
	}

	clock.Set(base.Add(2 * time.Second))
	snapshot, _, _ := tracker.Snapshot(ctx)
	if snapshot.Engagement.ScrollDepth != 0.25 {
		t.Errorf("ScrollDepth = %v, want 0.25", snapshot.Engagement.ScrollDepth)
	}
}

func TestNavigateStartsNewSession(t *testing.T) {
	tracker, clock, _ := setupTestTracker(t, Options{})
	ctx := context.Background()

	first, _ := tracker.SessionID(ctx)
	err := tracker.Submit(ctx,
		mustEvent(t, models.EventScroll, base.Add(time.Second), models.ScrollData{ScrollTop: 900, ScrollableHeight: 1000}),
		mustEvent(t, models.EventNavigate, base.Add(2*time.Second), models.NavigateData{URL: "https://example.com/lesson/2"}),
	)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	clock.Set(base.Add(3 * time.Second))
	snapshot, _, _ := tracker.Snapshot(ctx)
	if snapshot.SessionID == first {
		t.Error("expected a new session id after navigation")
	}
	if snapshot.URL != "https://example.com/lesson/2" {
		t.Errorf("URL = %s", snapshot.URL)
	}
	if snapshot.Engagement.MaxScrollDepth != 0 || snapshot.Engagement.TotalScrolls != 0 {
		t.Errorf("expected scroll state cleared, got %+v", snapshot.Engagement)
	}
}

func TestEndFlushesThenResets(t *testing.T) {
	tracker, clock, _ := setupTestTracker(t, Options{})
	ctx := context.Background()

	tracker.Submit(ctx, mustEvent(t, models.EventScroll, base.Add(time.Second), models.ScrollData{ScrollTop: 500, ScrollableHeight: 1000}))
	clock.Set(base.Add(20 * time.Second))

	final, ok, err := tracker.End(ctx)
	if err != nil || !ok {
		t.Fatalf("End() = %v, %v", ok, err)
	}
	if final.Engagement.MaxScrollDepth != 0.5 || final.Engagement.ReadingTime != 20 {
		t.Errorf("final snapshot = %+v", final.Engagement)
	}

	next, _, _ := tracker.Snapshot(ctx)
	if next.SessionID == final.SessionID {
		t.Error("expected a fresh session after End")
	}
	if next.Engagement.MaxScrollDepth != 0 || next.Engagement.ReadingTime != 0 {
		t.Errorf("expected zeroed session after End, got %+v", next.Engagement)
	}
}

func TestEndKeepsPageProfile(t *testing.T) {
	tracker, clock, _ := setupTestTracker(t, Options{})
	ctx := context.Background()

	tracker.Submit(ctx, mustEvent(t, models.EventPage, base.Add(time.Second), models.PageData{HasArticle: true}))
	clock.Set(base.Add(20 * time.Second))

	final, _, err := tracker.End(ctx)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if final.ContentType != models.ContentArticle {
		t.Errorf("final ContentType = %s, want article", final.ContentType)
	}

	next, ok, _ := tracker.Snapshot(ctx)
	if !ok || next.ContentType != models.ContentArticle {
		t.Errorf("ContentType after End = %s, want article on the same page", next.ContentType)
	}
}

func TestResetKeepsURL(t *testing.T) {
	tracker, _, _ := setupTestTracker(t, Options{})
	ctx := context.Background()

	before, _ := tracker.SessionID(ctx)
	if err := tracker.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	snapshot, _, _ := tracker.Snapshot(ctx)
	if snapshot.SessionID == before {
		t.Error("expected new session id")
	}
	if snapshot.URL != "https://example.com/lesson" {
		t.Errorf("URL = %s", snapshot.URL)
	}
}

func TestSnapshotNotApplicable(t *testing.T) {
	tracker, _, _ := setupTestTracker(t, Options{URL: "file:///tmp/slides.pdf"})
	_, ok, err := tracker.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if ok {
		t.Error("expected no snapshot for a local document")
	}
}

func TestPeriodicDelivery(t *testing.T) {
	_, _, deliverer := setupTestTracker(t, Options{SnapshotSchedule: "@every 1s"})

	select {
	case snapshot := <-deliverer.snapshots:
		if snapshot.URL != "https://example.com/lesson" {
			t.Errorf("URL = %s", snapshot.URL)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected a periodic snapshot")
	}
}

func TestScrollQuietPeriodOnLoop(t *testing.T) {
	tracker, _, _ := setupTestTracker(t, Options{})
	ctx := context.Background()

	tracker.Submit(ctx, mustEvent(t, models.EventScroll, base.Add(time.Second), models.ScrollData{ScrollTop: 10, ScrollableHeight: 100}))
	time.Sleep(300 * time.Millisecond)
	tracker.Submit(ctx, mustEvent(t, models.EventScroll, base.Add(5*time.Second), models.ScrollData{ScrollTop: 20, ScrollableHeight: 100}))

	snapshot, _, _ := tracker.Snapshot(ctx)
	if snapshot.Engagement.TotalScrolls != 2 {
		t.Errorf("TotalScrolls = %d, want 2 after the quiet period elapsed", snapshot.Engagement.TotalScrolls)
	}
}

func TestStoppedTracker(t *testing.T) {
	tracker, err := New(Options{URL: "https://example.com", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tracker.Run(ctx)

	if err := tracker.Reset(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Reset() error = %v, want ErrStopped", err)
	}
}

func TestAttachPlayerPolls(t *testing.T) {
	tracker, clock, _ := setupTestTracker(t, Options{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	player := PlayerFunc(func(context.Context) (PlayerState, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return PlayerState{}, errors.New("player not ready")
		}
		return PlayerState{CurrentTime: 30, Duration: 120, Playing: true, Width: 640, Height: 360}, nil
	})
	if err := tracker.AttachPlayer(ctx, "yt", player); err != nil {
		t.Fatalf("AttachPlayer() error = %v", err)
	}

	clock.Set(base.Add(time.Minute))
	deadline := time.Now().Add(2 * time.Second)
	for {
		snapshot, _, _ := tracker.Snapshot(ctx)
		e := snapshot.Engagement
		if e.IsVideoPlaying && e.VideoWatchedPercentage == 25 && e.VideoDuration == 120 {
			if snapshot.ContentType != models.ContentVideo {
				t.Errorf("ContentType = %s, want video", snapshot.ContentType)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("player state never reached the snapshot: %+v", e)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAttachPlayerFailedPollsKeepValues(t *testing.T) {
	tracker, clock, _ := setupTestTracker(t, Options{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	player := PlayerFunc(func(context.Context) (PlayerState, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return PlayerState{CurrentTime: 60, Duration: 240, Playing: true, Width: 640, Height: 360}, nil
		}
		return PlayerState{}, errors.New("player unavailable")
	})
	if err := tracker.AttachPlayer(ctx, "yt", player); err != nil {
		t.Fatalf("AttachPlayer() error = %v", err)
	}
	clock.Set(base.Add(time.Minute))

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d polls ran", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	snapshot, _, _ := tracker.Snapshot(ctx)
	e := snapshot.Engagement
	if !e.IsVideoPlaying || e.VideoCurrentTime != 60 || e.VideoDuration != 240 || e.VideoWatchedPercentage != 25 {
		t.Errorf("expected values from the last successful poll, got %+v", e)
	}
}

func TestResetStopsPlayers(t *testing.T) {
	tracker, _, _ := setupTestTracker(t, Options{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	player := PlayerFunc(func(context.Context) (PlayerState, error) {
		return PlayerState{CurrentTime: 5, Duration: 10, Playing: true}, nil
	})
	tracker.AttachPlayer(ctx, "yt", player)
	time.Sleep(50 * time.Millisecond)
	tracker.Reset(ctx)
	time.Sleep(50 * time.Millisecond)

	snapshot, _, _ := tracker.Snapshot(ctx)
	if snapshot.Engagement.IsVideoPlaying || snapshot.Engagement.VideoDuration != 0 {
		t.Errorf("expected detached player after reset, got %+v", snapshot.Engagement)
	}
}
