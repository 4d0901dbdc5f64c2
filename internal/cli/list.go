package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/workgate/pkg/model"
)

func newListCmd() *cobra.Command {
	var (
		state string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/v1/jobs/"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			resp, err := client.Get(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			var jobs []model.Job
			if err := json.Unmarshal(resp.Data, &jobs); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-10s  %-24s  %s\n", "ID", "STATE", "NAME", "CONSTRAINTS")
			fmt.Fprintf(out, "%-40s  %-10s  %-24s  %s\n", "----", "-----", "----", "-----------")
			for _, job := range jobs {
				fmt.Fprintf(out, "%-40s  %-10s  %-24s  %s\n", job.ID, job.State, job.Name, joinKinds(job.Constraints.Kinds()))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(jobs), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by state (ENQUEUED, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to show")
	return cmd
}
