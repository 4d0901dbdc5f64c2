package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/workgate/pkg/model"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job_id>",
		Short: "Cancel an enqueued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(cmd.Context(), "/api/v1/jobs/"+args[0]+"/cancel", nil)
			if err != nil {
				return fmt.Errorf("cancel job: %w", err)
			}
			return printTransition(cmd, resp)
		},
	}
}

func newCompleteCmd() *cobra.Command {
	var failed bool

	cmd := &cobra.Command{
		Use:   "complete <job_id>",
		Short: "Report a running job as finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(cmd.Context(), "/api/v1/jobs/"+args[0]+"/complete", map[string]bool{"success": !failed})
			if err != nil {
				return fmt.Errorf("complete job: %w", err)
			}
			return printTransition(cmd, resp)
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "Mark the job as failed instead of succeeded")
	return cmd
}

func printTransition(cmd *cobra.Command, resp *apiResponse) error {
	var job model.JobStatus
	if err := json.Unmarshal(resp.Data, &job); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s\n", job.ID, stateLabel(job.State))
	return nil
}
