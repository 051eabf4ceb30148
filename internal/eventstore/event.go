package eventstore

import "time"

// RecordedEvent is a single event as persisted in the journal.
type RecordedEvent struct {
	// EventID is the global position: strictly increasing, totally ordered
	// across all streams.
	EventID uint64
	// StreamID identifies the stream the event belongs to.
	StreamID string
	// StreamVersion is the 1-based position within the stream. Contiguous
	// ascending per stream.
	StreamVersion uint64
	EventType     string
	CorrelationID string
	CausationID   string
	// Data and Metadata are opaque payloads.
	Data     []byte
	Metadata []byte
	// CreatedAt is the write timestamp at microsecond precision, UTC.
	CreatedAt time.Time
}
