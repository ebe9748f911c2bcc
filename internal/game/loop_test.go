package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"gridwalk/internal/transport"
)

// fakeTransport feeds scripted events into the loop and records outbound
// frames without any real socket.
type fakeTransport struct {
	mu      sync.Mutex
	events  chan transport.Event
	frames  [][]byte
	started bool
	stopped bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan transport.Event, 16)}
}

func (f *fakeTransport) Start() {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
}

func (f *fakeTransport) Send(data []byte) {
	f.mu.Lock()
	f.frames = append(f.frames, data)
	f.mu.Unlock()
}

func (f *fakeTransport) Stop(time.Duration) bool {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return true
}

func (f *fakeTransport) Events() <-chan transport.Event { return f.events }

func (f *fakeTransport) snapshot() (frames [][]byte, started, stopped bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...), f.started, f.stopped
}

// helper: receive one published snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func waitLoopDone(t *testing.T, done <-chan struct{}, within time.Duration) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(within):
		t.Fatalf("loop did not exit in time")
	}
}

func startLoop(t *testing.T, tr *fakeTransport, localID int64) (inputs chan Input, snaps chan Snapshot, done chan struct{}) {
	t.Helper()
	log := zap.NewNop().Sugar()
	rec := NewReconciler(localID, tr, newRecordingPresenter(), log)

	inputs = make(chan Input, 8)
	snaps = make(chan Snapshot, 64)
	done = make(chan struct{})

	hooks := Hooks{Publish: func(s Snapshot) {
		select {
		case snaps <- s:
		default:
		}
	}}

	go func() {
		defer close(done)
		RunLoop(context.Background(), rec, tr, inputs, hooks, log)
	}()
	return inputs, snaps, done
}

func TestLoopAppliesServerEvents(t *testing.T) {
	tr := newFakeTransport()
	inputs, snaps, done := startLoop(t, tr, 1)

	// initial publish before any event
	recvSnapshot(t, snaps, time.Second)

	tr.events <- transport.Opened{}
	snap := recvSnapshot(t, snaps, time.Second)
	if !snap.Connected {
		t.Fatalf("expected connected after Opened")
	}

	tr.events <- transport.Message{Data: []byte(`{"type":"InitialPlayers","payload":[{"user_id":1,"x":2,"y":3},{"user_id":7,"x":4,"y":5}]}`)}
	snap = recvSnapshot(t, snaps, time.Second)
	if got := snap.Position; got.X != 2 || got.Y != 3 {
		t.Fatalf("local position = %+v, want (2, 3)", got)
	}
	if len(snap.Players) != 2 {
		t.Fatalf("expected 2 visible players, got %d", len(snap.Players))
	}

	frames, started, _ := tr.snapshot()
	if !started {
		t.Fatalf("loop never started the transport")
	}
	if len(frames) != 1 {
		t.Fatalf("expected the roster to trigger exactly one send, got %d", len(frames))
	}

	inputs <- Quit{}
	waitLoopDone(t, done, 3*time.Second)
}

func TestLoopMalformedFrameIsDropped(t *testing.T) {
	tr := newFakeTransport()
	inputs, snaps, done := startLoop(t, tr, 1)
	recvSnapshot(t, snaps, time.Second)

	tr.events <- transport.Message{Data: []byte(`{not json`)}

	// A dropped frame publishes nothing; the next valid event still works.
	tr.events <- transport.Opened{}
	snap := recvSnapshot(t, snaps, time.Second)
	if !snap.Connected {
		t.Fatalf("loop wedged after malformed frame")
	}
	if len(snap.Players) != 0 {
		t.Fatalf("malformed frame mutated state: %+v", snap.Players)
	}

	inputs <- Quit{}
	waitLoopDone(t, done, 3*time.Second)
}

func TestLoopQuitSendsLogoutAndStops(t *testing.T) {
	tr := newFakeTransport()
	inputs, snaps, done := startLoop(t, tr, 9)
	recvSnapshot(t, snaps, time.Second)

	inputs <- Quit{}
	waitLoopDone(t, done, 3*time.Second)

	frames, _, stopped := tr.snapshot()
	if !stopped {
		t.Fatalf("transport was not stopped on quit")
	}
	if len(frames) != 1 {
		t.Fatalf("expected exactly one logout frame, got %d", len(frames))
	}
	want := `{"type":"PlayerLogout","payload":{"user_id":9}}`
	if string(frames[0]) != want {
		t.Fatalf("logout frame = %s, want %s", frames[0], want)
	}
}

func TestLoopMoveInput(t *testing.T) {
	tr := newFakeTransport()
	inputs, snaps, done := startLoop(t, tr, 1)
	recvSnapshot(t, snaps, time.Second)

	inputs <- Move{DX: 1}
	snap := recvSnapshot(t, snaps, time.Second)
	if snap.Position.X != 1 {
		t.Fatalf("position.X = %v, want 1", snap.Position.X)
	}

	frames, _, _ := tr.snapshot()
	if len(frames) != 1 {
		t.Fatalf("expected one position frame after move, got %d", len(frames))
	}

	inputs <- Quit{}
	waitLoopDone(t, done, 3*time.Second)
}
