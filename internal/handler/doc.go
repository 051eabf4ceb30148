// Package handler implements event-consuming handler processes and the
// consistency-configuration resolver that governs them.
//
// # Configuration resolution
//
// A handler's configuration has exactly two options: consistency
// (eventual | strong) and start_from (origin | current | explicit position).
// The effective value of each option is resolved independently from three
// layers in increasing precedence:
//
//	process-wide defaults  <  declared options  <  start-time overrides
//
// Declared options are validated against the recognized key set when the
// handler is constructed, before any process exists; an unknown key fails
// fast with a deterministic message listing the handler identity and the
// sorted unknown keys. The resolved configuration is computed once at start
// and frozen for the handler's lifetime; later changes to process-wide
// defaults never affect an already-started handler. The live configuration is
// exposed only through a synchronous introspection request answered by the
// running handler process.
//
// # Consuming
//
// A started handler reads the global log forward in batches from its resolved
// start position and dispatches each event to the injected handler function.
// An optional CEL expression filters which events are dispatched. Dispatch
// failures are retried per an injectable policy; the default policy does not
// retry. Strong handlers additionally support WaitFor, blocking the caller
// until the handler has processed a given global position.
//
// Example:
//
//	h, _ := handler.New("order-projector", project,
//	    handler.Options{handler.OptionConsistency: "strong"},
//	    handler.WithFilter(`event_type.startsWith("Order")`),
//	)
//	_ = h.Start(ctx, store, defaults, nil)
//	cfg, _ := h.CurrentConfig()
//	_ = h.WaitFor(ctx, lastEventID)
package handler
