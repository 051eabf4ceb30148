// Package runtime wires the Postgres-backed event store, config, and handler
// processes into a single-node Commanded instance. It exposes Open/Close,
// basic health checks, and handler registration and lifecycle helpers.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	defer rt.Close()
//	// Health
//	_ = rt.CheckHealth(context.Background())
//	// Register and start a handler
//	h, _ := handler.New("projector", fn, handler.Options{"consistency": "strong"})
//	_ = rt.Register(h)
//	_ = rt.StartHandler(ctx, "projector", nil)
package runtime
