// Package game holds the client-side player state and the loop that owns it.
// The reconciler applies inbound server events to the visible player set and
// decides when local position changes are worth transmitting.
package game

import (
	"go.uber.org/zap"

	"gridwalk/internal/protocol"
)

// Grid dimensions in cells. Shared with the server out-of-band; must match.
const (
	GridWidth  = 40
	GridHeight = 20
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Presenter mirrors the reconciled player set at the view layer. Calls are
// idempotent; it carries no state of its own beyond what it draws.
type Presenter interface {
	Upsert(id int64, pos Position, local bool)
	Remove(id int64)
}

// Sender is the outbound side of the transport. Sends are best-effort.
type Sender interface {
	Send(data []byte)
}

// Reconciler is single-threaded by construction: only the session loop
// goroutine calls into it, so it needs no locking.
type Reconciler struct {
	log       *zap.SugaredLogger
	localID   int64
	sender    Sender
	presenter Presenter

	players  map[int64]Position
	local    Position
	lastSent *Position

	// Arms exactly once, on the first roster containing the local id; gates
	// the periodic flush.
	broadcastActive bool
}

func NewReconciler(localID int64, sender Sender, presenter Presenter, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{
		log:       log,
		localID:   localID,
		sender:    sender,
		presenter: presenter,
		players:   make(map[int64]Position),
	}
}

// HandleRaw decodes and applies one inbound frame. On a decode error the
// state is untouched and the error is returned for the caller to log.
func (r *Reconciler) HandleRaw(frame []byte) error {
	msg, err := protocol.Decode(frame)
	if err != nil {
		return err
	}
	r.Handle(msg)
	return nil
}

func (r *Reconciler) Handle(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.PlayerPosition:
		r.applyPosition(m)
	case protocol.InitialPlayers:
		r.applyRoster(m)
	case protocol.PlayerDisconnected:
		r.applyDisconnect(m)
	}
}

func (r *Reconciler) applyPosition(m protocol.PlayerPosition) {
	pos := Position{X: m.X, Y: m.Y, Z: m.Z}
	if m.UserID == r.localID {
		// The server is authoritative for our own position too: adopt it for
		// future outgoing sends.
		r.local = pos
	}
	r.players[m.UserID] = pos
	r.presenter.Upsert(m.UserID, pos, m.UserID == r.localID)
}

func (r *Reconciler) applyRoster(m protocol.InitialPlayers) {
	for _, p := range m.Players {
		pos := Position{X: p.X, Y: p.Y, Z: p.Z}
		if p.UserID == r.localID {
			r.local = pos
			if !r.broadcastActive {
				r.broadcastActive = true
				r.log.Infow("roster received, position broadcast active",
					"x", pos.X, "y", pos.Y)
				r.flush()
			}
		}
		r.players[p.UserID] = pos
		r.presenter.Upsert(p.UserID, pos, p.UserID == r.localID)
	}
}

func (r *Reconciler) applyDisconnect(m protocol.PlayerDisconnected) {
	if m.UserID == r.localID {
		// We only ever leave by explicit logout.
		r.log.Debugw("ignoring disconnect for local player", "user_id", m.UserID)
		return
	}
	if _, ok := r.players[m.UserID]; !ok {
		r.log.Debugw("disconnect for unknown player", "user_id", m.UserID)
		return
	}
	delete(r.players, m.UserID)
	r.presenter.Remove(m.UserID)
	r.log.Infow("player left", "user_id", m.UserID)
}

// Move applies a local movement request, clamped to the grid, and sends the
// new position if it differs from the last transmitted one.
func (r *Reconciler) Move(dx, dy float64) {
	r.local.X = clamp(r.local.X+dx, 0, GridWidth-1)
	r.local.Y = clamp(r.local.Y+dy, 0, GridHeight-1)
	r.players[r.localID] = r.local
	r.presenter.Upsert(r.localID, r.local, true)
	r.flush()
}

// FlushIfActive is the periodic resend hook, called from the session loop
// ticker. A no-op until the first roster arms the broadcast gate.
func (r *Reconciler) FlushIfActive() {
	if r.broadcastActive {
		r.flush()
	}
}

func (r *Reconciler) flush() {
	if !shouldSend(r.local, r.lastSent) {
		return
	}
	r.sender.Send(protocol.EncodePosition(r.localID, r.local.X, r.local.Y, r.local.Z))
	sent := r.local
	r.lastSent = &sent
}

// Logout announces the explicit exit. The caller grants the frame a grace
// period before tearing the transport down.
func (r *Reconciler) Logout() {
	r.sender.Send(protocol.EncodeLogout(r.localID))
	r.log.Infow("logout sent", "user_id", r.localID)
}

func (r *Reconciler) Local() Position { return r.local }

func (r *Reconciler) BroadcastActive() bool { return r.broadcastActive }

// Players returns a copy of the visible player set.
func (r *Reconciler) Players() map[int64]Position {
	out := make(map[int64]Position, len(r.players))
	for id, pos := range r.players {
		out[id] = pos
	}
	return out
}

// shouldSend reports whether cur is worth transmitting given the last sent
// position. Exact float equality is fine: movement is in unit steps and the
// server is idempotent on identical positions.
func shouldSend(cur Position, last *Position) bool {
	if last == nil {
		return true
	}
	return cur.X != last.X || cur.Y != last.Y || cur.Z != last.Z
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
