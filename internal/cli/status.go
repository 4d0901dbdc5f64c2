package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/workgate/pkg/model"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show a job and what is blocking it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/api/v1/jobs/"+args[0])
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}

			var job model.JobStatus
			if err := json.Unmarshal(resp.Data, &job); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			printStatus(cmd, job)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, job model.JobStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job: %s\n", job.ID)
	fmt.Fprintf(out, "  Name:     %s\n", job.Name)
	fmt.Fprintf(out, "  State:    %s\n", stateLabel(job.State))
	if kinds := job.Constraints.Kinds(); len(kinds) > 0 {
		fmt.Fprintf(out, "  Requires: %s\n", joinKinds(kinds))
	}
	if !job.State.IsTerminal() {
		if job.Eligible {
			fmt.Fprintf(out, "  Eligible: %s\n", okColor.Sprint("yes"))
		} else {
			fmt.Fprintf(out, "  Eligible: %s (blocked by %s)\n", badColor.Sprint("no"), joinKinds(job.Blocking))
		}
	}
	if job.HaltCount > 0 {
		fmt.Fprintf(out, "  Halted:   %d time(s)\n", job.HaltCount)
	}
	fmt.Fprintf(out, "  Created:  %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Fprintf(out, "  Started:  %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(out, "  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
	}
}
