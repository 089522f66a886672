package persist_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/curatorbot/curator/internal/memory"
	"github.com/curatorbot/curator/internal/persist"
	"github.com/curatorbot/curator/pkg/message"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend records saves and can fail or block on demand.
type fakeBackend struct {
	mu      sync.Mutex
	saves   [][]byte
	saveErr error
	gate    chan struct{} // when non-nil, Save blocks until the gate closes
	started chan struct{} // signaled when a Save call begins
	saved   chan struct{} // signaled after every Save attempt

	loadData []byte
	loadErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		started: make(chan struct{}, 64),
		saved:   make(chan struct{}, 64),
	}
}

func (f *fakeBackend) Load(_ context.Context, _ string) ([]byte, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.loadData, nil
}

func (f *fakeBackend) Save(_ context.Context, _ string, data []byte) error {
	f.started <- struct{}{}

	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	err := f.saveErr
	if err == nil {
		buf := make([]byte, len(data))
		copy(buf, data)
		f.saves = append(f.saves, buf)
	}
	f.mu.Unlock()

	f.saved <- struct{}{}
	return err
}

func (f *fakeBackend) savedDocs() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.saves))
	copy(out, f.saves)
	return out
}

func (f *fakeBackend) setSaveErr(err error) {
	f.mu.Lock()
	f.saveErr = err
	f.mu.Unlock()
}

func waitSaved(t *testing.T, f *fakeBackend) {
	t.Helper()
	select {
	case <-f.saved:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a backend save")
	}
}

func waitSaveStarted(t *testing.T, f *fakeBackend) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a backend save to start")
	}
}

func snapshotOf(contents ...string) memory.Snapshot {
	turns := make([]message.Turn, len(contents))
	for i, c := range contents {
		turns[i] = message.UserTurn(c)
	}
	return memory.Snapshot{"u1": turns}
}

func TestLoadSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		loadData  []byte
		loadErr   error
		wantUsers int
	}{
		{name: "not found starts empty", loadErr: persist.ErrNotFound},
		{name: "transport failure starts empty", loadErr: errors.New("connection refused")},
		{name: "corrupt document starts empty", loadData: []byte("not json")},
		{name: "valid document", loadData: []byte(`{"42":[{"role":"user","content":"hi"}]}`), wantUsers: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := newFakeBackend()
			backend.loadData = tt.loadData
			backend.loadErr = tt.loadErr

			snap := persist.LoadSnapshot(context.Background(), backend, "k", testLogger())
			if snap == nil {
				t.Fatal("LoadSnapshot returned nil")
			}
			if len(snap) != tt.wantUsers {
				t.Fatalf("got %d users, want %d", len(snap), tt.wantUsers)
			}
		})
	}
}

func TestPipeline_FlushesSnapshot(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	p := persist.NewPipeline(persist.PipelineConfig{
		Backend: backend,
		Key:     "conversations.json",
		Logger:  testLogger(),
	})
	p.Start()
	defer p.Stop()

	p.Enqueue(snapshotOf("hi"))
	waitSaved(t, backend)

	docs := backend.savedDocs()
	if len(docs) == 0 {
		t.Fatal("no document persisted")
	}
	decoded, err := memory.DecodeSnapshot(docs[0])
	if err != nil {
		t.Fatalf("persisted document is not decodable: %v", err)
	}
	if len(decoded["u1"]) != 1 || decoded["u1"][0].Content != "hi" {
		t.Fatalf("persisted snapshot = %+v, want the enqueued one", decoded)
	}
}

func TestPipeline_SaveFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.setSaveErr(errors.New("quota exceeded"))

	p := persist.NewPipeline(persist.PipelineConfig{
		Backend: backend,
		Key:     "k",
		Logger:  testLogger(),
	})
	p.Start()
	defer p.Stop()

	// Enqueue must return immediately even while the backend is failing.
	for i := 0; i < 10; i++ {
		done := make(chan struct{})
		go func() {
			p.Enqueue(snapshotOf("msg"))
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Enqueue blocked")
		}
	}
	waitSaved(t, backend)

	// The worker survives and the next snapshot flushes once the backend heals.
	backend.setSaveErr(nil)
	p.Enqueue(snapshotOf("recovered"))

	deadline := time.After(5 * time.Second)
	for {
		if docs := backend.savedDocs(); len(docs) > 0 {
			last := docs[len(docs)-1]
			decoded, err := memory.DecodeSnapshot(last)
			if err == nil && len(decoded["u1"]) == 1 && decoded["u1"][0].Content == "recovered" {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatal("recovered snapshot never persisted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPipeline_CoalescesToNewest(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	gate := make(chan struct{})
	backend.gate = gate

	p := persist.NewPipeline(persist.PipelineConfig{
		Backend:   backend,
		Key:       "k",
		QueueSize: 16,
		Logger:    testLogger(),
	})
	p.Start()
	defer p.Stop()

	// The worker picks this up and blocks inside Save.
	p.Enqueue(snapshotOf("first"))
	waitSaveStarted(t, backend)

	// Queue a burst behind the blocked write.
	for i := 0; i < 5; i++ {
		p.Enqueue(snapshotOf("first", "stale"))
	}
	p.Enqueue(snapshotOf("first", "stale", "newest"))

	close(gate)
	backend.mu.Lock()
	backend.gate = nil
	backend.mu.Unlock()

	// First save (the blocked one), then exactly one coalesced save.
	waitSaved(t, backend)
	waitSaved(t, backend)

	// Allow a moment for any extra (wrong) writes to land.
	time.Sleep(50 * time.Millisecond)

	docs := backend.savedDocs()
	if len(docs) != 2 {
		t.Fatalf("got %d saves, want 2 (initial + coalesced)", len(docs))
	}
	decoded, err := memory.DecodeSnapshot(docs[1])
	if err != nil {
		t.Fatalf("decode second save: %v", err)
	}
	if got := len(decoded["u1"]); got != 3 {
		t.Fatalf("second save has %d turns, want the newest snapshot's 3", got)
	}
}

func TestPipeline_OverflowDropsOldest(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	gate := make(chan struct{})
	backend.gate = gate

	p := persist.NewPipeline(persist.PipelineConfig{
		Backend:   backend,
		Key:       "k",
		QueueSize: 1,
		Logger:    testLogger(),
	})
	p.Start()
	defer p.Stop()

	p.Enqueue(snapshotOf("in-flight")) // worker takes it, blocks in Save
	waitSaveStarted(t, backend)

	p.Enqueue(snapshotOf("dropped"))
	p.Enqueue(snapshotOf("kept")) // overflows: "dropped" is discarded

	close(gate)
	backend.mu.Lock()
	backend.gate = nil
	backend.mu.Unlock()

	waitSaved(t, backend)
	waitSaved(t, backend)

	docs := backend.savedDocs()
	last, err := memory.DecodeSnapshot(docs[len(docs)-1])
	if err != nil {
		t.Fatalf("decode last save: %v", err)
	}
	if last["u1"][0].Content != "kept" {
		t.Fatalf("last persisted snapshot = %+v, want the kept one", last)
	}
	for _, doc := range docs {
		doc := doc
		decoded, _ := memory.DecodeSnapshot(doc)
		if len(decoded["u1"]) > 0 && decoded["u1"][0].Content == "dropped" {
			t.Fatal("dropped snapshot was persisted")
		}
	}
}

func TestPipeline_StopDrainsLatest(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	p := persist.NewPipeline(persist.PipelineConfig{
		Backend: backend,
		Key:     "k",
		Logger:  testLogger(),
	})
	p.Start()

	p.Enqueue(snapshotOf("final"))
	p.Stop()

	docs := backend.savedDocs()
	if len(docs) == 0 {
		t.Fatal("Stop did not flush the outstanding snapshot")
	}
	decoded, err := memory.DecodeSnapshot(docs[len(docs)-1])
	if err != nil {
		t.Fatalf("decode final save: %v", err)
	}
	if decoded["u1"][0].Content != "final" {
		t.Fatalf("final persisted snapshot = %+v, want the enqueued one", decoded)
	}
}
