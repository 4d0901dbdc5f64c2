package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/workgate/internal/events"
	"github.com/me/workgate/pkg/model"
)

func newWatchCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream constraint changes as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			seen := 0
			err := client.Stream(cmd.Context(), "/api/v1/sse/constraints", func(ev SSEEvent) error {
				switch ev.Name {
				case "init":
					var statuses []model.ConditionStatus
					if err := json.Unmarshal(ev.Data, &statuses); err != nil {
						return fmt.Errorf("parse init event: %w", err)
					}
					printConstraints(cmd, statuses)
					fmt.Fprintln(out)
				case "delta":
					var d events.Event
					if err := json.Unmarshal(ev.Data, &d); err != nil {
						return fmt.Errorf("parse delta event: %w", err)
					}
					printDelta(cmd, d)
					seen++
					if count > 0 && seen >= count {
						return errStopStream
					}
				case "close":
					return errStopStream
				}
				return nil
			})
			if errors.Is(err, errStopStream) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many changes (0 streams until interrupted)")
	return cmd
}

func printDelta(cmd *cobra.Command, d events.Event) {
	out := cmd.OutOrStdout()
	ts := d.Timestamp.Local().Format(time.TimeOnly)
	if len(d.Constrained) > 0 {
		fmt.Fprintf(out, "%s  %-22s  %s  %s\n", ts, d.Kind, badColor.Sprint("constrained  "), joinIDs(d.Constrained))
	}
	if len(d.Unconstrained) > 0 {
		fmt.Fprintf(out, "%s  %-22s  %s  %s\n", ts, d.Kind, okColor.Sprint("unconstrained"), joinIDs(d.Unconstrained))
	}
}
