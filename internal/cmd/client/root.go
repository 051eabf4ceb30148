package client

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aleksion/commanded/internal/runtime"
)

// OpenFunc opens a runtime for one command invocation. The CLI wires it to
// runtime.Open with the resolved configuration.
type OpenFunc func(ctx context.Context) (*runtime.Runtime, error)

// NewRoot constructs a root Cobra command for the Commanded client.
// It registers the read and health command groups.
func NewRoot(open OpenFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "commanded",
		Short: "Commanded event store CLI",
	}
	root.AddCommand(NewReadCommand(open))
	root.AddCommand(NewReadAllCommand(open))
	root.AddCommand(NewHeadCommand(open))
	root.AddCommand(NewHealthCommand(open))
	return root
}
