package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Aleksion/commanded/internal/eventstore"
)

// celFilter wraps a compiled CEL program deciding which events a handler
// consumes. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("event_id", cel.IntType),
		cel.Variable("stream_id", cel.StringType),
		cel.Variable("stream_version", cel.IntType),
		cel.Variable("event_type", cel.StringType),
		cel.Variable("correlation_id", cel.StringType),
		cel.Variable("causation_id", cel.StringType),
		// Parsed JSON event data for field filtering
		cel.Variable("data", cel.DynType),
		cel.Variable("metadata", cel.DynType),
		cel.Variable("created_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against an event. When disabled,
// returns true. Evaluation errors reject the event.
func (f celFilter) Eval(e eventstore.RecordedEvent) bool {
	if !f.enabled {
		return true
	}
	var dataObj any
	_ = json.Unmarshal(e.Data, &dataObj)
	var metaObj any
	_ = json.Unmarshal(e.Metadata, &metaObj)
	out, _, err := f.prog.Eval(map[string]any{
		"event_id":       int64(e.EventID),
		"stream_id":      e.StreamID,
		"stream_version": int64(e.StreamVersion),
		"event_type":     e.EventType,
		"correlation_id": e.CorrelationID,
		"causation_id":   e.CausationID,
		"data":           dataObj,
		"metadata":       metaObj,
		"created_ms":     e.CreatedAt.UnixMilli(),
		"now_ms":         time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
