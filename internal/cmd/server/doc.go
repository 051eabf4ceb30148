// Package server wires the runtime and the HTTP API into one long-running
// process for the `commanded server start` command.
package server
