package eventstore

import (
	"context"

	logpkg "github.com/Aleksion/commanded/pkg/log"
)

// Querier executes one parameterized statement against the relational store
// and returns positional row tuples. *postgres.DB satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) ([][]any, error)
}

const (
	readStreamForwardSQL = `SELECT event_id, stream_id, stream_version, event_type, correlation_id, causation_id, data, metadata, created_at
FROM events
WHERE stream_id = $1 AND stream_version >= $2
ORDER BY stream_version ASC
LIMIT $3`

	readAllForwardSQL = `SELECT event_id, stream_id, stream_version, event_type, correlation_id, causation_id, data, metadata, created_at
FROM events
WHERE event_id >= $1
ORDER BY event_id ASC
LIMIT $2`

	latestEventIDSQL = `SELECT event_id, stream_id, stream_version, event_type, correlation_id, causation_id, data, metadata, created_at
FROM events
ORDER BY event_id DESC
LIMIT 1`
)

// Store reads the event journal. Each call is synchronous, performs at most
// one round trip, and holds no internal lock, cache, or retry state.
type Store struct {
	q      Querier
	logger logpkg.Logger
}

// New returns a Store reading through q.
func New(q Querier, logger logpkg.Logger) *Store {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("eventstore"))
	}
	return &Store{q: q, logger: logger}
}

// ReadStreamForward returns events of one stream with
// stream_version in [startVersion, startVersion+count-1] that exist, strictly
// ascending by version, at most count of them. A stream with no matching
// events yields an empty result, not an error.
func (s *Store) ReadStreamForward(ctx context.Context, streamID string, startVersion uint64, count int) ([]RecordedEvent, error) {
	rows, err := s.q.Query(ctx, readStreamForwardSQL, streamID, startVersion, count)
	if err != nil {
		s.logger.With(
			logpkg.Str("stream", streamID),
			logpkg.Uint64("from_version", startVersion),
			logpkg.Err(err),
		).Error("eventstore.read_stream_forward failed")
		return nil, &StoreError{Op: "read_stream_forward", StreamID: streamID, Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return toEventData(rows), nil
}

// ReadAllForward returns events across all streams with
// event_id in [startEventID, ...], strictly ascending by event_id, at most
// count of them. Past the end of the log it yields an empty result.
func (s *Store) ReadAllForward(ctx context.Context, startEventID uint64, count int) ([]RecordedEvent, error) {
	rows, err := s.q.Query(ctx, readAllForwardSQL, startEventID, count)
	if err != nil {
		s.logger.With(
			logpkg.Uint64("from_event_id", startEventID),
			logpkg.Err(err),
		).Error("eventstore.read_all_forward failed")
		return nil, &StoreError{Op: "read_all_forward", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return toEventData(rows), nil
}

// LatestEventID returns the global position of the newest event, or zero for
// an empty journal. Handlers starting from the current end of the log resolve
// their position through it.
func (s *Store) LatestEventID(ctx context.Context) (uint64, error) {
	rows, err := s.q.Query(ctx, latestEventIDSQL)
	if err != nil {
		s.logger.With(logpkg.Err(err)).Error("eventstore.latest_event_id failed")
		return 0, &StoreError{Op: "latest_event_id", Err: err}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toEventData(rows)[0].EventID, nil
}
