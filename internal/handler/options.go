package handler

import (
	"fmt"
	"sort"
	"strings"
)

// Consistency selects how callers relate to a handler's progress. Eventual
// handlers may lag the log; strong handlers let callers wait for completion.
type Consistency string

// Recognized consistency values.
const (
	ConsistencyEventual Consistency = "eventual"
	ConsistencyStrong   Consistency = "strong"
)

type startFromKind int

const (
	startFromOrigin startFromKind = iota
	startFromCurrent
	startFromPosition
)

// StartFrom is the log position a handler begins consuming from on first
// start: the beginning of the log, the log's current end, or an explicit
// global position.
type StartFrom struct {
	kind     startFromKind
	position uint64
}

// StartFromOrigin starts from the beginning of the log.
func StartFromOrigin() StartFrom { return StartFrom{kind: startFromOrigin} }

// StartFromCurrent starts from the log's current end; only events appended
// after the handler starts are consumed.
func StartFromCurrent() StartFrom { return StartFrom{kind: startFromCurrent} }

// StartFromPosition starts from an explicit global position. The event with
// that event id is the first one consumed.
func StartFromPosition(p uint64) StartFrom {
	return StartFrom{kind: startFromPosition, position: p}
}

// IsOrigin reports whether the start position is the beginning of the log.
func (s StartFrom) IsOrigin() bool { return s.kind == startFromOrigin }

// IsCurrent reports whether the start position is the log's current end.
func (s StartFrom) IsCurrent() bool { return s.kind == startFromCurrent }

// Position returns the explicit global position, if one was set.
func (s StartFrom) Position() (uint64, bool) {
	return s.position, s.kind == startFromPosition
}

func (s StartFrom) String() string {
	switch s.kind {
	case startFromCurrent:
		return "current"
	case startFromPosition:
		return fmt.Sprintf("%d", s.position)
	default:
		return "origin"
	}
}

// Recognized option keys. Anything else in a declared or start-time option
// set is a configuration error.
const (
	OptionConsistency = "consistency"
	OptionStartFrom   = "start_from"
)

// Options is a partial option set keyed by option name. Values accept either
// the typed forms (Consistency, StartFrom) or plain spellings: strings for
// consistency ("eventual", "strong") and start_from ("origin", "current"),
// and non-negative integers for explicit start positions.
type Options map[string]any

// ConfigError reports unrecognized option keys for a handler. It is raised at
// declaration-evaluation time, before any handler process exists.
type ConfigError struct {
	Handler     string
	UnknownKeys []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s specifies invalid options: [%s]", e.Handler, strings.Join(e.UnknownKeys, ", "))
}

// ValidateOptions checks opts against the recognized key set and value
// domains. Unknown keys produce a *ConfigError naming the handler and the
// sorted offending keys.
func ValidateOptions(handlerName string, opts Options) error {
	var unknown []string
	for key := range opts {
		switch key {
		case OptionConsistency, OptionStartFrom:
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ConfigError{Handler: handlerName, UnknownKeys: unknown}
	}
	if v, ok := opts[OptionConsistency]; ok {
		if _, err := parseConsistency(v); err != nil {
			return fmt.Errorf("%s: %w", handlerName, err)
		}
	}
	if v, ok := opts[OptionStartFrom]; ok {
		if _, err := parseStartFrom(v); err != nil {
			return fmt.Errorf("%s: %w", handlerName, err)
		}
	}
	return nil
}

// ParseConsistency converts a plain spelling to a Consistency.
func ParseConsistency(s string) (Consistency, error) {
	return parseConsistency(s)
}

// ParseStartFrom converts a plain spelling ("origin", "current", or a decimal
// position) to a StartFrom.
func ParseStartFrom(s string) (StartFrom, error) {
	switch s {
	case "origin", "":
		return StartFromOrigin(), nil
	case "current":
		return StartFromCurrent(), nil
	}
	var p uint64
	if _, err := fmt.Sscanf(s, "%d", &p); err != nil || p == 0 {
		return StartFrom{}, fmt.Errorf("invalid start_from value %q", s)
	}
	return StartFromPosition(p), nil
}

func parseConsistency(v any) (Consistency, error) {
	switch c := v.(type) {
	case Consistency:
		if c == ConsistencyEventual || c == ConsistencyStrong {
			return c, nil
		}
		return "", fmt.Errorf("invalid consistency value %q", string(c))
	case string:
		switch Consistency(c) {
		case ConsistencyEventual, ConsistencyStrong:
			return Consistency(c), nil
		}
		return "", fmt.Errorf("invalid consistency value %q", c)
	default:
		return "", fmt.Errorf("invalid consistency value %v (%T)", v, v)
	}
}

func parseStartFrom(v any) (StartFrom, error) {
	switch s := v.(type) {
	case StartFrom:
		return s, nil
	case string:
		switch s {
		case "origin":
			return StartFromOrigin(), nil
		case "current":
			return StartFromCurrent(), nil
		}
		return StartFrom{}, fmt.Errorf("invalid start_from value %q", s)
	case int:
		if s < 1 {
			return StartFrom{}, fmt.Errorf("invalid start_from position %d", s)
		}
		return StartFromPosition(uint64(s)), nil
	case int64:
		if s < 1 {
			return StartFrom{}, fmt.Errorf("invalid start_from position %d", s)
		}
		return StartFromPosition(uint64(s)), nil
	case uint64:
		if s < 1 {
			return StartFrom{}, fmt.Errorf("invalid start_from position %d", s)
		}
		return StartFromPosition(s), nil
	default:
		return StartFrom{}, fmt.Errorf("invalid start_from value %v (%T)", v, v)
	}
}
