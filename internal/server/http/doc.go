// Package httpserver provides a minimal read-only REST gateway over the
// event store: forward reads of a stream or the global log, the head
// position, health, and handler introspection.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
