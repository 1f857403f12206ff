// Package tracker runs an engagement Session on a single goroutine and feeds
// it host events, timer callbacks, periodic ticks and player polls.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/svchittilla/gamemycourse/internal/engagement"
	"github.com/svchittilla/gamemycourse/internal/models"
)

const (
	DefaultSnapshotSchedule = "@every 10s"
	DefaultPollInterval     = 2 * time.Second
)

var ErrStopped = errors.New("tracker is not running")

// Deliverer hands a periodic snapshot to the transport. It must not block.
type Deliverer interface {
	Deliver(snapshot models.Snapshot)
}

type Options struct {
	URL              string
	IdleThreshold    time.Duration
	SnapshotSchedule string
	PollInterval     time.Duration
	Clock            func() time.Time
	Logger           *slog.Logger
	// NewID overrides session id generation.
	NewID func() string
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Tracker owns one Session. Every mutation runs as a closure on the loop
// started by Run, so the session never sees concurrent calls.
type Tracker struct {
	opts      Options
	deliverer Deliverer
	logger    *slog.Logger

	ops     chan func()
	stopped chan struct{}
	cron    *cron.Cron

	// loop-owned
	runCtx  context.Context
	session *engagement.Session
	players map[string]*playerPoll
}

func New(opts Options, deliverer Deliverer) (*Tracker, error) {
	if opts.SnapshotSchedule == "" {
		opts.SnapshotSchedule = DefaultSnapshotSchedule
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	t := &Tracker{
		opts:      opts,
		deliverer: deliverer,
		logger:    opts.Logger,
		ops:       make(chan func()),
		stopped:   make(chan struct{}),
		cron:      cron.New(cron.WithParser(cronParser)),
		players:   make(map[string]*playerPoll),
	}
	if _, err := t.cron.AddFunc(opts.SnapshotSchedule, func() { t.post(t.tick) }); err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", opts.SnapshotSchedule, err)
	}
	t.session = engagement.NewSession(opts.URL, opts.Clock(), engagement.Options{
		IdleThreshold: opts.IdleThreshold,
		Scheduler:     loopScheduler{t},
		NewID:         opts.NewID,
	})
	t.watchScrollSessions()
	return t, nil
}

// Run processes operations until ctx is done. It may be called once.
func (t *Tracker) Run(ctx context.Context) error {
	t.runCtx = ctx
	t.cron.Start()
	defer func() {
		close(t.stopped)
		<-t.cron.Stop().Done()
		t.stopPlayers()
		t.session.Close()
	}()

	t.logger.Info("tracking session", "session_id", t.session.ID(), "url", t.session.URL())
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-t.ops:
			op()
		}
	}
}

// post queues f on the loop from a timer or poller goroutine.
func (t *Tracker) post(f func()) {
	select {
	case t.ops <- f:
	case <-t.stopped:
	}
}

// do runs f on the loop and waits for it to finish.
func (t *Tracker) do(ctx context.Context, f func()) error {
	done := make(chan struct{})
	select {
	case t.ops <- func() { f(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.stopped:
		return ErrStopped
	}
	<-done
	return nil
}

// Submit applies host events in order. Invalid events are skipped and
// reported together; valid ones are still applied.
func (t *Tracker) Submit(ctx context.Context, events ...models.Event) error {
	var errs []error
	err := t.do(ctx, func() {
		for _, event := range events {
			before := t.session.ID()
			if err := Apply(t.session, event); err != nil {
				errs = append(errs, err)
				continue
			}
			if t.session.ID() != before {
				t.stopPlayers()
				t.logger.Info("navigation started a new session",
					"previous_session_id", before, "session_id", t.session.ID(), "url", t.session.URL())
			}
		}
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Snapshot produces an on-demand snapshot. ok is false for untrackable pages.
func (t *Tracker) Snapshot(ctx context.Context) (snapshot models.Snapshot, ok bool, err error) {
	err = t.do(ctx, func() {
		snapshot, ok = t.session.Snapshot(t.opts.Clock())
	})
	return snapshot, ok, err
}

// Reset discards the session and starts a new one for the same url.
func (t *Tracker) Reset(ctx context.Context) error {
	return t.do(ctx, t.reset)
}

// End flushes a final snapshot and then resets the session.
func (t *Tracker) End(ctx context.Context) (snapshot models.Snapshot, ok bool, err error) {
	err = t.do(ctx, func() {
		snapshot, ok = t.session.Snapshot(t.opts.Clock())
		t.logger.Info("session ended", "session_id", t.session.ID(), "snapshot", ok)
		t.reset()
	})
	return snapshot, ok, err
}

// SessionID reports the current session id.
func (t *Tracker) SessionID(ctx context.Context) (id string, err error) {
	err = t.do(ctx, func() { id = t.session.ID() })
	return id, err
}

func (t *Tracker) reset() {
	previous := t.session.ID()
	t.stopPlayers()
	t.session.Reset("", t.opts.Clock())
	t.logger.Info("session reset", "previous_session_id", previous, "session_id", t.session.ID())
}

func (t *Tracker) tick() {
	snapshot, ok := t.session.Snapshot(t.opts.Clock())
	if !ok {
		return
	}
	t.logger.Debug("periodic snapshot",
		"session_id", snapshot.SessionID,
		"reading_time", snapshot.Engagement.ReadingTime,
		"idle_time", snapshot.Engagement.IdleTime)
	if t.deliverer != nil {
		t.deliverer.Deliver(snapshot)
	}
}

func (t *Tracker) watchScrollSessions() {
	t.session.ScrollTracker().OnSessionEnd = func(n int) {
		t.logger.Debug("scroll session ended", "session_id", t.session.ID(), "scroll_session", n)
	}
}

// loopScheduler delivers timer callbacks through the tracker loop.
type loopScheduler struct {
	t *Tracker
}

func (s loopScheduler) AfterFunc(d time.Duration, f func()) engagement.Timer {
	return time.AfterFunc(d, func() { s.t.post(f) })
}
