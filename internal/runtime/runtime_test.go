package runtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	cfgpkg "github.com/Aleksion/commanded/internal/config"
	"github.com/Aleksion/commanded/internal/eventstore"
	"github.com/Aleksion/commanded/internal/handler"
)

// fakeQuerier serves a fixed journal through the two forward-read statements.
type fakeQuerier struct {
	rows [][]any
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) ([][]any, error) {
	if len(args) == 0 {
		// Head-of-log query.
		if len(f.rows) == 0 {
			return nil, nil
		}
		return f.rows[len(f.rows)-1:], nil
	}
	start := int64(args[0].(uint64))
	limit := args[1].(int)
	var out [][]any
	for _, row := range f.rows {
		if row[0].(int64) >= start {
			out = append(out, row)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func eventRow(id int64, streamID string, version int64, eventType string) []any {
	return []any{
		id, streamID, version, eventType,
		"corr", "cause",
		[]byte(`{}`), []byte(`{}`),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	rt := New(&fakeQuerier{}, cfgpkg.Default(), nil)
	h, err := handler.New("projector", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	if err := rt.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := rt.Register(h); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestStartHandlerUnknownName(t *testing.T) {
	rt := New(&fakeQuerier{}, cfgpkg.Default(), nil)
	if err := rt.StartHandler(context.Background(), "missing", nil); err == nil {
		t.Fatalf("expected unknown handler error")
	}
}

func TestStartAllConsumesJournal(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		eventRow(1, "acct-1", 1, "opened"),
		eventRow(2, "acct-1", 2, "credited"),
	}}
	rt := New(q, cfgpkg.Default(), nil)

	var seen atomic.Uint64
	h, err := handler.New("counter", func(ctx context.Context, e eventstore.RecordedEvent) error {
		seen.Add(1)
		return nil
	}, handler.Options{"consistency": "strong"})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	if err := rt.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := rt.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	defer rt.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.WaitFor(ctx, 2); err != nil {
		t.Fatalf("wait for: %v", err)
	}
	if got := seen.Load(); got != 2 {
		t.Fatalf("expected 2 events consumed, got %d", got)
	}

	rt.StopAll()
	if h.Running() {
		t.Fatalf("handler should have stopped")
	}
}

func TestRuntimeDefaultsReachHandlers(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Handlers.DefaultConsistency = "strong"
	rt := New(&fakeQuerier{}, cfg, nil)

	h, err := handler.New("reporter", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	if err := rt.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := rt.StartHandler(context.Background(), "reporter", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rt.StopAll()

	got, err := h.CurrentConfig()
	if err != nil {
		t.Fatalf("current config: %v", err)
	}
	if got.Consistency != handler.ConsistencyStrong {
		t.Fatalf("expected strong from runtime defaults, got %s", got.Consistency)
	}
}

func TestStartHandlerRejectsBadDefaults(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Handlers.DefaultConsistency = "bogus"
	rt := New(&fakeQuerier{}, cfg, nil)
	h, err := handler.New("audit", func(ctx context.Context, e eventstore.RecordedEvent) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	if err := rt.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := rt.StartHandler(context.Background(), "audit", nil); err == nil {
		t.Fatalf("expected defaults parse error")
	}
}
