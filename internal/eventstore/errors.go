package eventstore

import "fmt"

// StoreError wraps a failed round trip to the backing store. Reads return it
// as-is without retrying; retry/backoff belongs to the caller.
type StoreError struct {
	// Op names the failed operation ("read_stream_forward", "read_all_forward",
	// "latest_event_id").
	Op string
	// StreamID is set for stream-scoped reads, empty for global reads.
	StreamID string
	Err      error
}

func (e *StoreError) Error() string {
	if e.StreamID != "" {
		return fmt.Sprintf("eventstore: %s stream=%s: %v", e.Op, e.StreamID, e.Err)
	}
	return fmt.Sprintf("eventstore: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
