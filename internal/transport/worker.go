// Package transport owns the WebSocket connection to the game server. A
// single worker goroutine dials, reads frames and redials after a fixed delay
// until stopped; everything it observes is forwarded as events on one channel
// so the receiving side stays single-threaded.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	retryDelay   = 5 * time.Second
	writeTimeout = 3 * time.Second
	readLimit    = 1 << 20 // 1MB
)

// ErrNotConnected reports a send attempted while no connection is open.
var ErrNotConnected = errors.New("websocket not connected")

// Event is a worker notification. Delivered in the worker's own goroutine
// context; drain them from one place before touching shared state.
type Event interface{ isEvent() }

// Opened fires after a successful dial.
type Opened struct{}

// Closed fires when a connection attempt fails or an open connection drops.
// A retry follows unless the worker was stopped.
type Closed struct{ Err error }

// Message carries one inbound text frame.
type Message struct{ Data []byte }

// SendFailed reports a dropped outbound frame. Never fatal.
type SendFailed struct{ Err error }

func (Opened) isEvent()     {}
func (Closed) isEvent()     {}
func (Message) isEvent()    {}
func (SendFailed) isEvent() {}

type Config struct {
	URL   string
	Token string // bearer token sent in the Authorization header
	Log   *zap.SugaredLogger
}

type Worker struct {
	cfg    Config
	events chan Event

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(cfg Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:    cfg,
		events: make(chan Event, 64),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Events is the worker's notification channel. Drained by the session loop.
func (w *Worker) Events() <-chan Event { return w.events }

// Start begins connection attempts. Idempotent.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)
	for w.ctx.Err() == nil {
		conn, _, err := websocket.Dial(w.ctx, w.cfg.URL, &websocket.DialOptions{
			HTTPHeader: http.Header{"Authorization": {"Bearer " + w.cfg.Token}},
		})
		if err != nil {
			w.emit(Closed{Err: err})
			if !w.sleep(retryDelay) {
				return
			}
			continue
		}
		conn.SetReadLimit(readLimit)

		w.setConn(conn)
		w.emit(Opened{})

		err = w.readLoop(conn)
		w.setConn(nil)
		_ = conn.CloseNow()
		w.emit(Closed{Err: err})

		if !w.sleep(retryDelay) {
			return
		}
	}
}

func (w *Worker) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(w.ctx)
		if err != nil {
			// Treat clean close/going-away as normal:
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return err
		}
		w.emit(Message{Data: data})
	}
}

// Send writes one text frame, best-effort. When no connection is open or the
// write fails, the frame is dropped and a SendFailed event is emitted; nothing
// reaches the caller's control flow. Safe from any goroutine.
func (w *Worker) Send(data []byte) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		w.emit(SendFailed{Err: ErrNotConnected})
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		w.emit(SendFailed{Err: err})
	}
}

// Stop ends retries and closes any open connection, then waits up to wait for
// the worker goroutine. Returns false on timeout; callers treat that as a
// warning, teardown continues in the background.
func (w *Worker) Stop(wait time.Duration) bool {
	w.mu.Lock()
	started := w.started
	conn := w.conn
	w.mu.Unlock()

	w.cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
	if !started {
		return true
	}

	select {
	case <-w.done:
		return true
	case <-time.After(wait):
		return false
	}
}

func (w *Worker) setConn(conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
}

// emit never blocks: if the receiver stopped draining, old events are dropped
// rather than wedging the read loop.
func (w *Worker) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		if w.cfg.Log != nil {
			w.cfg.Log.Debugw("event queue full, dropping", "event", ev)
		}
	}
}

// sleep waits out the retry delay, returning false if the worker was stopped
// in the meantime.
func (w *Worker) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-w.ctx.Done():
		return false
	}
}
