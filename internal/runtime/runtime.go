package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cfgpkg "github.com/Aleksion/commanded/internal/config"
	"github.com/Aleksion/commanded/internal/eventstore"
	"github.com/Aleksion/commanded/internal/handler"
	"github.com/Aleksion/commanded/internal/storage/postgres"
	logpkg "github.com/Aleksion/commanded/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Runtime wires the Postgres connection, the event store read path, and the
// registered handler processes into a single-node instance.
type Runtime struct {
	db     *postgres.DB
	store  *eventstore.Store
	config cfgpkg.Config
	logger logpkg.Logger

	mu       sync.Mutex
	handlers map[string]*handler.Handler
}

// Open connects to Postgres and returns a Runtime.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("runtime"))
	}
	db, err := postgres.Open(ctx, postgres.Options{
		DSN:            opts.Config.Postgres.DSN,
		MaxConns:       opts.Config.Postgres.MaxConns,
		ConnectTimeout: opts.Config.Postgres.ConnectTimeout(),
	})
	if err != nil {
		return nil, err
	}
	rt := New(db, opts.Config, logger)
	rt.db = db
	return rt, nil
}

// New wires a Runtime over an already-open query layer. Tests use it to
// substitute a fake querier for the Postgres pool.
func New(q eventstore.Querier, cfg cfgpkg.Config, logger logpkg.Logger) *Runtime {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("runtime"))
	}
	return &Runtime{
		store:    eventstore.New(q, logger),
		config:   cfg,
		logger:   logger,
		handlers: make(map[string]*handler.Handler),
	}
}

// Close stops every running handler and closes underlying resources.
func (r *Runtime) Close() error {
	r.StopAll()
	if r.db == nil {
		return nil
	}
	r.db.Close()
	return nil
}

// CheckHealth performs a simple connectivity check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	return r.db.Ping(ctx)
}

// Store returns the event store read path.
func (r *Runtime) Store() *eventstore.Store { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Register adds a handler to the runtime. Handler names are unique within a
// runtime.
func (r *Runtime) Register(h *handler.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[h.Name()]; ok {
		return fmt.Errorf("runtime: handler %s already registered", h.Name())
	}
	r.handlers[h.Name()] = h
	return nil
}

// Handlers returns every registered handler.
func (r *Runtime) Handlers() []*handler.Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*handler.Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	return out
}

// Handler returns a registered handler by name.
func (r *Runtime) Handler(name string) (*handler.Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[name]
	return h, ok
}

// StartHandler starts one registered handler against the event store,
// resolving its configuration from the runtime defaults and the given
// start-time overrides.
func (r *Runtime) StartHandler(ctx context.Context, name string, startOpts handler.Options) error {
	h, ok := r.Handler(name)
	if !ok {
		return fmt.Errorf("runtime: unknown handler %s", name)
	}
	defaults, err := r.handlerDefaults()
	if err != nil {
		return err
	}
	return h.Start(ctx, r.store, defaults, startOpts)
}

// StartAll starts every registered handler with no start-time overrides. The
// first failure stops the sweep and is returned.
func (r *Runtime) StartAll(ctx context.Context) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.Unlock()
	for _, name := range names {
		if err := r.StartHandler(ctx, name, nil); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every running handler and waits for each to exit.
func (r *Runtime) StopAll() {
	r.mu.Lock()
	hs := make([]*handler.Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		h.Stop()
	}
}

func (r *Runtime) handlerDefaults() (handler.Defaults, error) {
	d, err := handler.DefaultsFromStrings(
		r.config.Handlers.DefaultConsistency,
		r.config.Handlers.DefaultStartFrom,
	)
	if err != nil {
		return handler.Defaults{}, fmt.Errorf("runtime: handler defaults: %w", err)
	}
	d.ReadBatchSize = r.config.Handlers.ReadBatchSize
	d.PollIntervalMs = r.config.Handlers.PollIntervalMs
	return d, nil
}
