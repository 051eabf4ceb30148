// Package postgres wraps a pgx connection pool behind the minimal
// query-execution surface the read path needs: one parameterized statement
// per call, rows returned as positional value tuples.
//
// Example:
//
//	db, _ := postgres.Open(ctx, postgres.Options{DSN: "postgres://localhost/commanded"})
//	defer db.Close()
//	rows, _ := db.Query(ctx, "SELECT event_id FROM events WHERE stream_id = $1", "orders")
package postgres
