package handler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Aleksion/commanded/internal/eventstore"
)

// fakeReader serves a fixed journal and can grow while handlers consume.
type fakeReader struct {
	mu     sync.Mutex
	events []eventstore.RecordedEvent
}

func (f *fakeReader) append(events ...eventstore.RecordedEvent) {
	f.mu.Lock()
	f.events = append(f.events, events...)
	f.mu.Unlock()
}

func (f *fakeReader) ReadAllForward(ctx context.Context, startEventID uint64, count int) ([]eventstore.RecordedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []eventstore.RecordedEvent
	for _, e := range f.events {
		if e.EventID >= startEventID {
			out = append(out, e)
		}
		if len(out) == count {
			break
		}
	}
	return out, nil
}

func (f *fakeReader) LatestEventID(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return 0, nil
	}
	return f.events[len(f.events)-1].EventID, nil
}

func journal(ids ...uint64) *fakeReader {
	f := &fakeReader{}
	for i, id := range ids {
		f.events = append(f.events, eventstore.RecordedEvent{
			EventID:       id,
			StreamID:      "acct-1",
			StreamVersion: uint64(i + 1),
			EventType:     "credited",
			Data:          []byte(`{}`),
			CreatedAt:     time.Date(2024, 6, 1, 0, 0, i, 0, time.UTC),
		})
	}
	return f
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewRejectsUnknownDeclaredOptions(t *testing.T) {
	_, err := New("ExampleHandler", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil },
		Options{"invalid_config_option": true})
	if err == nil {
		t.Fatalf("expected declaration-time validation error")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	want := "ExampleHandler specifies invalid options: [invalid_config_option]"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestNewRequiresNameAndFunc(t *testing.T) {
	if _, err := New("", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil }, nil); err == nil {
		t.Fatalf("expected name error")
	}
	if _, err := New("H", nil, nil); err == nil {
		t.Fatalf("expected func error")
	}
}

func TestHandlerConsumesFromOrigin(t *testing.T) {
	reader := journal(1, 2, 3)
	var got []uint64
	var mu sync.Mutex
	h, err := New("projector", func(ctx context.Context, e eventstore.RecordedEvent) error {
		mu.Lock()
		got = append(got, e.EventID)
		mu.Unlock()
		return nil
	}, Options{OptionConsistency: "strong"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	if err := h.WaitFor(waitCtx(t), 3); err != nil {
		t.Fatalf("wait: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected ordered consumption of 1,2,3, got %v", got)
	}
}

func TestHandlerStartFromCurrentSkipsHistory(t *testing.T) {
	reader := journal(1, 2, 3)
	var seen atomic.Uint64
	h, err := New("tail", func(ctx context.Context, e eventstore.RecordedEvent) error {
		seen.Store(e.EventID)
		return nil
	}, Options{OptionConsistency: "strong", OptionStartFrom: "current"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	if pos := h.Position(); pos != 3 {
		t.Fatalf("expected start position at head 3, got %d", pos)
	}
	reader.append(eventstore.RecordedEvent{EventID: 4, StreamID: "acct-1", StreamVersion: 4, EventType: "credited", CreatedAt: time.Now()})
	if err := h.WaitFor(waitCtx(t), 4); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := seen.Load(); got != 4 {
		t.Fatalf("expected only the new event, got %d", got)
	}
}

func TestHandlerStartFromExplicitPosition(t *testing.T) {
	reader := journal(1, 2, 3, 4)
	var first atomic.Uint64
	h, err := New("resume", func(ctx context.Context, e eventstore.RecordedEvent) error {
		first.CompareAndSwap(0, e.EventID)
		return nil
	}, Options{OptionConsistency: "strong", OptionStartFrom: StartFromPosition(3)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	if err := h.WaitFor(waitCtx(t), 4); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := first.Load(); got != 3 {
		t.Fatalf("expected first consumed event 3, got %d", got)
	}
}

func TestCurrentConfigWhileRunning(t *testing.T) {
	reader := journal(1, 2)
	h, err := New("inspect", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil },
		Options{OptionConsistency: "strong"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{StartFrom: StartFromOrigin()}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	cfg, err := h.CurrentConfig()
	if err != nil {
		t.Fatalf("current config: %v", err)
	}
	if cfg.Name != "inspect" || cfg.Consistency != ConsistencyStrong || !cfg.StartFrom.IsOrigin() {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestCurrentConfigNotRunning(t *testing.T) {
	h, err := New("idle", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := h.CurrentConfig(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestConfigFrozenAgainstDefaultsMutation(t *testing.T) {
	reader := journal()
	h, err := New("frozen", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defaults := Defaults{Consistency: ConsistencyStrong}
	if err := h.Start(context.Background(), reader, defaults, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	// Mutating the caller's defaults after start never reaches the handler.
	defaults.Consistency = ConsistencyEventual
	defaults.StartFrom = StartFromCurrent()

	cfg, err := h.CurrentConfig()
	if err != nil {
		t.Fatalf("current config: %v", err)
	}
	if cfg.Consistency != ConsistencyStrong || !cfg.StartFrom.IsOrigin() {
		t.Fatalf("config must be frozen at start: %+v", cfg)
	}
}

func TestStartOptionsOverrideDeclared(t *testing.T) {
	reader := journal()
	h, err := New("override", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil },
		Options{OptionConsistency: "eventual"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, Options{OptionConsistency: "strong"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	cfg, err := h.CurrentConfig()
	if err != nil {
		t.Fatalf("current config: %v", err)
	}
	if cfg.Consistency != ConsistencyStrong {
		t.Fatalf("start overrides should win, got %s", cfg.Consistency)
	}
}

func TestStartRejectsUnknownStartOptions(t *testing.T) {
	reader := journal()
	h, err := New("strict", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = h.Start(context.Background(), reader, Defaults{}, Options{"bogus": 1})
	if err == nil {
		t.Fatalf("expected start-time validation error")
	}
	if h.Running() {
		t.Fatalf("handler must not run after failed start")
	}
}

func TestWaitForEventualReturnsImmediately(t *testing.T) {
	reader := journal(1, 2, 3)
	h, err := New("eventual", func(ctx context.Context, e eventstore.RecordedEvent) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	// No completion guarantee for eventual handlers.
	if err := h.WaitFor(context.Background(), 3); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestWaitForContextCancel(t *testing.T) {
	reader := journal()
	h, err := New("stuck", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil },
		Options{OptionConsistency: "strong"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.WaitFor(ctx, 99); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatchFailureStopsHandler(t *testing.T) {
	reader := journal(1)
	h, err := New("failing", func(ctx context.Context, e eventstore.RecordedEvent) error {
		return errors.New("projection broken")
	}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("handler should stop after exhausted dispatch")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if pos := h.Position(); pos != 0 {
		t.Fatalf("failed event must not advance position, got %d", pos)
	}
}

func TestDispatchRetriesUntilSuccess(t *testing.T) {
	reader := journal(1)
	var attempts atomic.Uint32
	h, err := New("retrying", func(ctx context.Context, e eventstore.RecordedEvent) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, Options{OptionConsistency: "strong"},
		WithRetryPolicy(RetryPolicy{Type: BackoffFixed, Base: time.Millisecond, MaxAttempts: 5}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	if err := h.WaitFor(waitCtx(t), 1); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestFilterSkipsNonMatching(t *testing.T) {
	reader := &fakeReader{}
	reader.append(
		eventstore.RecordedEvent{EventID: 1, StreamID: "acct-1", StreamVersion: 1, EventType: "opened", Data: []byte(`{}`), CreatedAt: time.Now()},
		eventstore.RecordedEvent{EventID: 2, StreamID: "acct-1", StreamVersion: 2, EventType: "credited", Data: []byte(`{}`), CreatedAt: time.Now()},
	)
	var got []string
	var mu sync.Mutex
	h, err := New("filtered", func(ctx context.Context, e eventstore.RecordedEvent) error {
		mu.Lock()
		got = append(got, e.EventType)
		mu.Unlock()
		return nil
	}, Options{OptionConsistency: "strong"}, WithFilter(`event_type == "credited"`))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()

	// Position still advances past filtered events.
	if err := h.WaitFor(waitCtx(t), 2); err != nil {
		t.Fatalf("wait: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "credited" {
		t.Fatalf("expected only credited dispatched, got %v", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	reader := journal(1)
	h, err := New("stopper", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.Stop()
	h.Stop()
	if h.Running() {
		t.Fatalf("handler should not run after stop")
	}
}

func TestStartTwiceFails(t *testing.T) {
	reader := journal()
	h, err := New("once", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer h.Stop()
	if err := h.Start(context.Background(), reader, Defaults{}, nil); err == nil {
		t.Fatalf("expected second start to fail")
	}
}
