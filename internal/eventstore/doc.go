// Package eventstore implements the read path over the append-only event
// journal persisted in Postgres.
//
// # Overview
//
// Events live in a single `events` table. Two orderings are exposed:
//   - per stream: stream_version, 1-based, contiguous ascending within a stream
//   - global: event_id, strictly ascending across all streams
//
// Both orderings are assigned by the writer side; reads only observe them.
// Each read issues exactly one parameterized range query, maps the resulting
// row tuples through the row adapter, and returns. Zero matching rows is a
// successful empty read, never an error.
//
// API surface (internal)
//
//	store := eventstore.New(db, logger)
//
//	// Read one stream forward from a version
//	events, err := store.ReadStreamForward(ctx, "orders-123", 1, 100)
//
//	// Read across all streams forward from a global position
//	all, err := store.ReadAllForward(ctx, 1, 100)
//
//	// Head of the global log (used to resolve start-from-current)
//	head, err := store.LatestEventID(ctx)
//
// # Failure model
//
// A failed round trip to the store is logged with context and returned as a
// *StoreError; the caller owns any retry policy. A malformed row tuple or an
// unconvertible timestamp is a programming fault and panics.
package eventstore
