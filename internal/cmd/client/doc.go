// Package client hosts the Cobra commands of the Commanded CLI: one-shot
// forward reads over a stream or the global log, the head position, and a
// connectivity check. Commands open a runtime per invocation through an
// OpenFunc so tests can substitute their own wiring.
package client
