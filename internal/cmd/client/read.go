package client

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aleksion/commanded/internal/eventstore"
)

// eventJSON is the CLI rendering of a recorded event.
type eventJSON struct {
	EventID       uint64          `json:"event_id"`
	StreamID      string          `json:"stream_id"`
	StreamVersion uint64          `json:"stream_version"`
	EventType     string          `json:"event_type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CausationID   string          `json:"causation_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func printEvents(w io.Writer, events []eventstore.RecordedEvent) error {
	enc := json.NewEncoder(w)
	for _, e := range events {
		out := eventJSON{
			EventID:       e.EventID,
			StreamID:      e.StreamID,
			StreamVersion: e.StreamVersion,
			EventType:     e.EventType,
			CorrelationID: e.CorrelationID,
			CausationID:   e.CausationID,
			Data:          json.RawMessage(e.Data),
			Metadata:      json.RawMessage(e.Metadata),
			CreatedAt:     e.CreatedAt,
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

// NewReadCommand reads one stream forward and prints events as JSON lines.
func NewReadCommand(open OpenFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a stream forward",
		RunE: func(cmd *cobra.Command, args []string) error {
			streamID, _ := cmd.Flags().GetString("stream")
			from, _ := cmd.Flags().GetUint64("from")
			count, _ := cmd.Flags().GetInt("count")
			if streamID == "" {
				return fmt.Errorf("--stream is required")
			}
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			events, err := rt.Store().ReadStreamForward(cmd.Context(), streamID, from, count)
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().String("stream", "", "Stream identity to read")
	cmd.Flags().Uint64("from", 1, "Stream version to start from (1-based)")
	cmd.Flags().Int("count", 100, "Maximum number of events")
	return cmd
}

// NewReadAllCommand reads the global log forward and prints events as JSON
// lines.
func NewReadAllCommand(open OpenFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read-all",
		Short: "Read the global log forward",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetUint64("from")
			count, _ := cmd.Flags().GetInt("count")
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			events, err := rt.Store().ReadAllForward(cmd.Context(), from, count)
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().Uint64("from", 1, "Global position to start from")
	cmd.Flags().Int("count", 100, "Maximum number of events")
	return cmd
}

// NewHeadCommand prints the global position of the newest event.
func NewHeadCommand(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "head",
		Short: "Print the newest global position",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			head, err := rt.Store().LatestEventID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), head)
			return nil
		},
	}
}

// NewHealthCommand pings the event store.
func NewHealthCommand(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check event store connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.CheckHealth(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
