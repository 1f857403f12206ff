package tracker

import (
	"context"
	"time"

	"github.com/svchittilla/gamemycourse/internal/engagement"
	"github.com/svchittilla/gamemycourse/internal/models"
)

// PlayerState is what a query-only embedded player reports.
type PlayerState struct {
	CurrentTime float64
	Duration    float64
	Playing     bool
	Width       float64
	Height      float64
}

// Player is an embedded player that exposes a query API instead of media
// events. Such players are polled rather than observed.
type Player interface {
	State(ctx context.Context) (PlayerState, error)
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context) (PlayerState, error)

func (f PlayerFunc) State(ctx context.Context) (PlayerState, error) { return f(ctx) }

type playerPoll struct {
	id      string
	cancel  context.CancelFunc
	playing bool
}

// AttachPlayer starts polling p as media element id. Polls feed the same
// video tracker entry points as element events; failed polls are dropped and
// leave the previous values in place. Attaching an id again replaces the
// earlier poller.
func (t *Tracker) AttachPlayer(ctx context.Context, id string, p Player) error {
	return t.do(ctx, func() {
		if existing, ok := t.players[id]; ok {
			existing.cancel()
		}
		pollCtx, cancel := context.WithCancel(t.runCtx)
		poll := &playerPoll{id: id, cancel: cancel}
		t.players[id] = poll
		go t.pollPlayer(pollCtx, poll, p)
		t.logger.Debug("polling embedded player", "element", id, "interval", t.opts.PollInterval)
	})
}

func (t *Tracker) pollPlayer(ctx context.Context, poll *playerPoll, p Player) {
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, err := p.State(ctx)
		if err != nil {
			t.logger.Debug("player poll failed", "element", poll.id, "error", err)
			continue
		}
		t.post(func() {
			if t.players[poll.id] != poll {
				return
			}
			t.applyPlayerState(poll, state)
		})
	}
}

func (t *Tracker) applyPlayerState(poll *playerPoll, state PlayerState) {
	now := t.opts.Clock()
	element := engagement.MediaElement{ID: poll.id, Width: state.Width, Height: state.Height}
	t.session.Media(element, models.MediaTimeUpdate, state.CurrentTime, state.Duration, now)

	if state.Playing != poll.playing {
		event := models.MediaPause
		if state.Playing {
			event = models.MediaPlay
		}
		t.session.Media(element, event, state.CurrentTime, state.Duration, now)
		poll.playing = state.Playing
	}
}

func (t *Tracker) stopPlayers() {
	for id, poll := range t.players {
		poll.cancel()
		delete(t.players, id)
	}
}
