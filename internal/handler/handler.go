package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aleksion/commanded/internal/eventstore"
	logpkg "github.com/Aleksion/commanded/pkg/log"
)

// Func is the handler logic invoked once per consumed event.
type Func func(ctx context.Context, event eventstore.RecordedEvent) error

// Reader is the slice of the event store a handler consumes through.
// *eventstore.Store satisfies it.
type Reader interface {
	ReadAllForward(ctx context.Context, startEventID uint64, count int) ([]eventstore.RecordedEvent, error)
	LatestEventID(ctx context.Context) (uint64, error)
}

// ErrNotRunning is returned by operations that require a started handler.
var ErrNotRunning = errors.New("handler: not running")

// Option configures a Handler at declaration time.
type Option func(*Handler)

// WithLogger injects the logger.
func WithLogger(logger logpkg.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithFilter restricts consumption to events matching a CEL expression over
// event_id, stream_id, stream_version, event_type, correlation_id,
// causation_id, data, metadata, created_ms, and now_ms.
func WithFilter(expr string) Option {
	return func(h *Handler) { h.filterExpr = expr }
}

// WithBatchSize overrides the forward-read batch size.
func WithBatchSize(n int) Option {
	return func(h *Handler) { h.batchSize = n }
}

// WithPollInterval overrides how long the consume loop idles at the head of
// the log before re-reading.
func WithPollInterval(d time.Duration) Option {
	return func(h *Handler) { h.pollInterval = d }
}

// WithRetryPolicy sets the dispatch retry policy. The default never retries;
// a handler whose dispatch fails with retries exhausted stops.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(h *Handler) { h.policy = p }
}

// Handler is one event-consuming process. Declared options are fixed at
// construction; the effective configuration is resolved once at Start and
// frozen for the handler's lifetime.
type Handler struct {
	name         string
	fn           Func
	declared     Options
	filterExpr   string
	filter       celFilter
	batchSize    int
	pollInterval time.Duration
	policy       RetryPolicy
	logger       logpkg.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	cfg     Config
	runID   string
	reader  Reader

	cfgCh  chan chan Config
	stopCh chan struct{}
	doneCh chan struct{}

	posMu     sync.Mutex
	position  uint64
	posNotify chan struct{}
}

// New declares a handler. Declared options are validated against the
// recognized key set here, before any process exists; an unknown key blocks
// handler creation entirely.
func New(name string, fn Func, declared Options, opts ...Option) (*Handler, error) {
	if name == "" {
		return nil, errors.New("handler: name is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("handler: %s requires a handler function", name)
	}
	if err := ValidateOptions(name, declared); err != nil {
		return nil, err
	}
	h := &Handler{
		name:      name,
		fn:        fn,
		declared:  cloneOptions(declared),
		posNotify: make(chan struct{}),
		cfgCh:     make(chan chan Config),
	}
	for _, opt := range opts {
		opt(h)
	}
	filter, err := newCELFilter(h.filterExpr)
	if err != nil {
		return nil, fmt.Errorf("handler: %s filter: %w", name, err)
	}
	h.filter = filter
	if h.logger == nil {
		h.logger = logpkg.NewLogger().With(logpkg.Component("handler"), logpkg.Str("handler", name))
	}
	return h, nil
}

// Name returns the handler identity.
func (h *Handler) Name() string { return h.name }

// DeclaredOptions returns a copy of the options fixed at declaration time.
func (h *Handler) DeclaredOptions() Options { return cloneOptions(h.declared) }

// Start resolves the effective configuration from the defaults snapshot, the
// declared options, and the start-time overrides, freezes it, resolves the
// start position, and launches the consume loop. Starting an already-running
// handler is an error.
func (h *Handler) Start(ctx context.Context, reader Reader, defaults Defaults, startOpts Options) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return fmt.Errorf("handler: %s already started", h.name)
	}
	cfg, err := Resolve(h.name, h.declared, defaults, startOpts)
	if err != nil {
		return err
	}

	position, err := h.resolveStartPosition(ctx, reader, cfg.StartFrom)
	if err != nil {
		return err
	}

	batch := h.batchSize
	if batch <= 0 {
		batch = defaults.ReadBatchSize
	}
	if batch <= 0 {
		batch = 128
	}
	poll := h.pollInterval
	if poll <= 0 && defaults.PollIntervalMs > 0 {
		poll = time.Duration(defaults.PollIntervalMs) * time.Millisecond
	}
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}

	h.cfg = cfg
	h.runID = uuid.NewString()
	h.reader = reader
	h.position = position
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	h.running = true
	h.stopped = false

	h.logger.With(
		logpkg.Str("run_id", h.runID),
		logpkg.Str("consistency", string(cfg.Consistency)),
		logpkg.Str("start_from", cfg.StartFrom.String()),
		logpkg.Uint64("position", position),
	).Info("handler.start")

	go h.run(ctx, batch, poll)
	return nil
}

// resolveStartPosition maps StartFrom onto the last-processed position the
// consume loop resumes after: origin is position zero, current is the head of
// the log at start time, and an explicit position p consumes p first.
func (h *Handler) resolveStartPosition(ctx context.Context, reader Reader, from StartFrom) (uint64, error) {
	switch {
	case from.IsCurrent():
		head, err := reader.LatestEventID(ctx)
		if err != nil {
			return 0, err
		}
		return head, nil
	default:
		if p, ok := from.Position(); ok {
			return p - 1, nil
		}
		return 0, nil
	}
}

func (h *Handler) run(ctx context.Context, batch int, poll time.Duration) {
	done := h.doneCh
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case resp := <-h.cfgCh:
			resp <- h.cfg
			continue
		default:
		}

		events, err := h.reader.ReadAllForward(ctx, h.Position()+1, batch)
		if err != nil {
			h.logger.With(logpkg.Err(err)).Warn("handler.read failed")
			if !h.idle(ctx, poll) {
				return
			}
			continue
		}
		if len(events) == 0 {
			if !h.idle(ctx, poll) {
				return
			}
			continue
		}
		for _, e := range events {
			h.answerPending()
			if h.filter.Eval(e) {
				if !h.dispatch(ctx, e) {
					return
				}
			}
			h.advance(e.EventID)
		}
	}
}

// dispatch invokes the handler function, applying the retry policy. It
// returns false when the handler should stop (context canceled, stop
// requested, or retries exhausted).
func (h *Handler) dispatch(ctx context.Context, e eventstore.RecordedEvent) bool {
	var attempts uint32
	for {
		attempts++
		err := h.fn(ctx, e)
		if err == nil {
			return true
		}
		exhausted := h.policy.Type == BackoffNone ||
			(h.policy.MaxAttempts > 0 && attempts >= h.policy.MaxAttempts)
		if exhausted {
			h.logger.With(
				logpkg.Uint64("event_id", e.EventID),
				logpkg.Str("event_type", e.EventType),
				logpkg.Int("attempts", int(attempts)),
				logpkg.Err(err),
			).Error("handler.dispatch failed; stopping")
			return false
		}
		h.logger.With(
			logpkg.Uint64("event_id", e.EventID),
			logpkg.Int("attempts", int(attempts)),
			logpkg.Err(err),
		).Warn("handler.dispatch failed; retrying")
		if !h.idle(ctx, computeBackoff(h.policy, attempts)) {
			return false
		}
	}
}

// idle waits for d while keeping introspection responsive. It returns false
// when the handler should stop.
func (h *Handler) idle(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-h.stopCh:
			return false
		case resp := <-h.cfgCh:
			resp <- h.cfg
		case <-timer.C:
			return true
		}
	}
}

// answerPending drains queued introspection requests without blocking.
func (h *Handler) answerPending() {
	for {
		select {
		case resp := <-h.cfgCh:
			resp <- h.cfg
		default:
			return
		}
	}
}

// CurrentConfig answers the frozen configuration of the running handler via
// a synchronous request/response against the handler process. It blocks until
// the process answers and returns ErrNotRunning for a handler that was never
// started or has stopped.
func (h *Handler) CurrentConfig() (Config, error) {
	h.mu.Lock()
	running := h.running
	done := h.doneCh
	h.mu.Unlock()
	if !running {
		return Config{}, ErrNotRunning
	}
	resp := make(chan Config, 1)
	select {
	case h.cfgCh <- resp:
		return <-resp, nil
	case <-done:
		return Config{}, ErrNotRunning
	}
}

// Position returns the last processed global position.
func (h *Handler) Position() uint64 {
	h.posMu.Lock()
	defer h.posMu.Unlock()
	return h.position
}

func (h *Handler) advance(id uint64) {
	h.posMu.Lock()
	h.position = id
	close(h.posNotify)
	h.posNotify = make(chan struct{})
	h.posMu.Unlock()
}

// WaitFor blocks until the handler has processed the event with the given
// global position. For eventual handlers it returns immediately: only strong
// handlers guarantee completion to callers.
func (h *Handler) WaitFor(ctx context.Context, eventID uint64) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrNotRunning
	}
	cfg := h.cfg
	done := h.doneCh
	h.mu.Unlock()

	if cfg.Consistency != ConsistencyStrong {
		return nil
	}
	for {
		h.posMu.Lock()
		pos := h.position
		notify := h.posNotify
		h.posMu.Unlock()
		if pos >= eventID {
			return nil
		}
		select {
		case <-notify:
		case <-done:
			return ErrNotRunning
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop asks the consume loop to exit and waits for it.
func (h *Handler) Stop() {
	h.mu.Lock()
	if !h.running || h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	close(h.stopCh)
	done := h.doneCh
	h.mu.Unlock()
	<-done
}

// Running reports whether the consume loop is live.
func (h *Handler) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func cloneOptions(opts Options) Options {
	if opts == nil {
		return nil
	}
	out := make(Options, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}
