package eventstore

import (
	"fmt"
	"time"
)

// Row tuple layout, positional and strict:
//
//	0 event_id      int64
//	1 stream_id     text
//	2 stream_version int64
//	3 event_type    text
//	4 correlation_id text (nullable)
//	5 causation_id  text (nullable)
//	6 data          bytea (nullable)
//	7 metadata      bytea (nullable)
//	8 created_at    timestamptz | CompositeTime
const eventRowWidth = 9

// CompositeTime is the decomposed calendar representation some drivers hand
// back for timestamps. Microsecond is the sub-second fraction in microseconds.
type CompositeTime struct {
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
	Second      int
	Microsecond int
}

// toEventData maps raw row tuples to recorded events, one to one, preserving
// input order. A row that does not match the expected shape is a programming
// fault and panics; it is never surfaced as a typed error.
func toEventData(rows [][]any) []RecordedEvent {
	events := make([]RecordedEvent, len(rows))
	for i, row := range rows {
		events[i] = rowToEvent(row)
	}
	return events
}

func rowToEvent(row []any) RecordedEvent {
	if len(row) != eventRowWidth {
		fault("event row has %d columns, want %d", len(row), eventRowWidth)
	}
	return RecordedEvent{
		EventID:       colUint64(row, 0, "event_id"),
		StreamID:      colString(row, 1, "stream_id"),
		StreamVersion: colUint64(row, 2, "stream_version"),
		EventType:     colString(row, 3, "event_type"),
		CorrelationID: colNullString(row, 4, "correlation_id"),
		CausationID:   colNullString(row, 5, "causation_id"),
		Data:          colNullBytes(row, 6, "data"),
		Metadata:      colNullBytes(row, 7, "metadata"),
		CreatedAt:     normalizeTimestamp(row[8]),
	}
}

// normalizeTimestamp accepts either an already-native timestamp (identity) or
// a CompositeTime, which is converted to a microsecond-precision UTC time. A
// composite that does not name a valid calendar timestamp panics rather than
// being truncated or defaulted.
func normalizeTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case CompositeTime:
		if t.Microsecond < 0 || t.Microsecond > 999999 {
			fault("created_at microsecond %d out of range", t.Microsecond)
		}
		ts := time.Date(t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, t.Second, t.Microsecond*1000, time.UTC)
		// time.Date normalizes out-of-range components (month 13, day 32)
		// instead of failing; a round-trip mismatch means the composite was
		// not a real calendar timestamp.
		if ts.Year() != t.Year || ts.Month() != time.Month(t.Month) || ts.Day() != t.Day ||
			ts.Hour() != t.Hour || ts.Minute() != t.Minute || ts.Second() != t.Second {
			fault("created_at composite %+v is not a valid calendar timestamp", t)
		}
		return ts
	default:
		fault("created_at has unexpected type %T", v)
		return time.Time{}
	}
}

func colUint64(row []any, i int, name string) uint64 {
	n, ok := row[i].(int64)
	if !ok || n < 0 {
		fault("%s column has unexpected value %v (%T)", name, row[i], row[i])
	}
	return uint64(n)
}

func colString(row []any, i int, name string) string {
	s, ok := row[i].(string)
	if !ok {
		fault("%s column has unexpected type %T", name, row[i])
	}
	return s
}

func colNullString(row []any, i int, name string) string {
	if row[i] == nil {
		return ""
	}
	return colString(row, i, name)
}

func colNullBytes(row []any, i int, name string) []byte {
	if row[i] == nil {
		return nil
	}
	b, ok := row[i].([]byte)
	if !ok {
		fault("%s column has unexpected type %T", name, row[i])
	}
	return b
}

func fault(format string, args ...any) {
	panic(fmt.Sprintf("eventstore: "+format, args...))
}
