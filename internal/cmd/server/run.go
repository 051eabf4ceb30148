package server

import (
	"context"

	cfgpkg "github.com/Aleksion/commanded/internal/config"
	"github.com/Aleksion/commanded/internal/runtime"
	httpserver "github.com/Aleksion/commanded/internal/server/http"
	logpkg "github.com/Aleksion/commanded/pkg/log"
)

// Options configures a server run.
type Options struct {
	HTTPAddr string
	Config   cfgpkg.Config
	Logger   logpkg.Logger
}

// Run opens the runtime and serves the HTTP API until ctx is canceled.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("server"))
	}
	rt, err := runtime.Open(ctx, runtime.Options{Config: opts.Config, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := opts.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := httpserver.New(rt, logger)
	defer srv.Close()

	logger.With(logpkg.Str("addr", addr)).Info("server.start")
	return srv.ListenAndServe(ctx, addr)
}
