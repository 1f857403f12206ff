package tracker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/svchittilla/gamemycourse/internal/engagement"
	"github.com/svchittilla/gamemycourse/internal/models"
)

// ParseSchedule parses a snapshot schedule with the tracker's cron syntax.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

type ReplayOptions struct {
	// URL overrides the page of the first event.
	URL              string
	IdleThreshold    time.Duration
	SnapshotSchedule string
	Logger           *slog.Logger
	NewID            func() string
}

// ReplaySnapshot is one snapshot produced during a replay.
type ReplaySnapshot struct {
	models.Snapshot
	Final bool `json:"final"`
}

// Replay feeds a JSON-lines event recording through a Session on a virtual
// clock. Periodic snapshots are taken on the schedule between events and a
// final snapshot at the last event. Invalid events are logged and skipped.
func Replay(r io.Reader, opts ReplayOptions, emit func(ReplaySnapshot) error) error {
	if opts.SnapshotSchedule == "" {
		opts.SnapshotSchedule = DefaultSnapshotSchedule
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	schedule, err := ParseSchedule(opts.SnapshotSchedule)
	if err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", opts.SnapshotSchedule, err)
	}

	var (
		scheduler *engagement.VirtualScheduler
		session   *engagement.Session
		next      time.Time
		last      time.Time
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event models.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return fmt.Errorf("line %d: failed to decode event: %w", line, err)
		}
		if err := event.Validate(); err != nil {
			opts.Logger.Warn("skipping event", "line", line, "error", err)
			continue
		}

		at := event.Time()
		if session == nil {
			url := opts.URL
			if url == "" {
				url = event.URL
			}
			scheduler = engagement.NewVirtualScheduler(at)
			session = engagement.NewSession(url, at, engagement.Options{
				IdleThreshold: opts.IdleThreshold,
				Scheduler:     scheduler,
				NewID:         opts.NewID,
			})
			defer session.Close()
			next = schedule.Next(at)
			last = at
		}

		for !next.IsZero() && !next.After(at) {
			scheduler.Advance(next)
			if snapshot, ok := session.Snapshot(next); ok {
				if err := emit(ReplaySnapshot{Snapshot: snapshot}); err != nil {
					return err
				}
			}
			next = schedule.Next(next)
		}

		scheduler.Advance(at)
		if err := Apply(session, event); err != nil {
			opts.Logger.Warn("skipping event", "line", line, "error", err)
			continue
		}
		if at.After(last) {
			last = at
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	if session == nil {
		return nil
	}

	if snapshot, ok := session.Snapshot(last); ok {
		return emit(ReplaySnapshot{Snapshot: snapshot, Final: true})
	}
	return nil
}
