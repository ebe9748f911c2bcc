package game

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gridwalk/internal/transport"
)

const (
	flushInterval = 100 * time.Millisecond
	logoutGrace   = 500 * time.Millisecond
	stopWait      = 5 * time.Second
)

// Input is a player intent produced by the UI poller.
type Input interface{ isInput() }

// Move shifts the local player by one step in either axis.
type Move struct{ DX, DY float64 }

// Quit ends the session: logout, grace period, transport teardown.
type Quit struct{}

func (Move) isInput() {}
func (Quit) isInput() {}

// Transport is what the loop needs from the websocket worker.
type Transport interface {
	Start()
	Send(data []byte)
	Stop(wait time.Duration) bool
	Events() <-chan transport.Event
}

// Snapshot is the read-only view published for the status endpoint.
type Snapshot struct {
	Connected bool               `json:"connected"`
	UserID    int64              `json:"user_id"`
	Position  Position           `json:"position"`
	Players   map[int64]Position `json:"players"`
}

// Hooks are optional observers called on the loop goroutine after changes.
type Hooks struct {
	Redraw  func(connected bool)
	Publish func(Snapshot)
}

// RunLoop drains transport events, UI input and the flush ticker. It is the
// only goroutine that touches the reconciler, so no locking happens anywhere
// in the state path. Returns after a Quit input or context cancellation.
func RunLoop(ctx context.Context, rec *Reconciler, tr Transport, inputs <-chan Input, hooks Hooks, log *zap.SugaredLogger) {
	tr.Start()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	connected := false
	changed := func() {
		if hooks.Redraw != nil {
			hooks.Redraw(connected)
		}
		if hooks.Publish != nil {
			hooks.Publish(Snapshot{
				Connected: connected,
				UserID:    rec.localID,
				Position:  rec.Local(),
				Players:   rec.Players(),
			})
		}
	}
	changed()

	for {
		select {
		case <-ctx.Done():
			shutdown(rec, tr, log)
			return

		case ev := <-tr.Events():
			switch e := ev.(type) {
			case transport.Opened:
				connected = true
				log.Infow("connected to server")
				changed()

			case transport.Closed:
				connected = false
				log.Warnw("connection closed", "err", e.Err)
				changed()

			case transport.Message:
				if err := rec.HandleRaw(e.Data); err != nil {
					// Protocol noise is logged, never surfaced to the player.
					log.Debugw("dropping frame", "err", err)
					continue
				}
				changed()

			case transport.SendFailed:
				log.Warnw("send failed", "err", e.Err)
			}

		case in := <-inputs:
			switch m := in.(type) {
			case Move:
				rec.Move(m.DX, m.DY)
				changed()
			case Quit:
				shutdown(rec, tr, log)
				return
			}

		case <-ticker.C:
			rec.FlushIfActive()
		}
	}
}

func shutdown(rec *Reconciler, tr Transport, log *zap.SugaredLogger) {
	rec.Logout()
	// Give the logout frame a chance to reach the server before the socket
	// goes away.
	time.Sleep(logoutGrace)
	if !tr.Stop(stopWait) {
		log.Warnw("transport worker did not stop in time")
	}
}
