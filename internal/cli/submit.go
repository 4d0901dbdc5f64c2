package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/workgate/pkg/model"
)

func newSubmitCmd() *cobra.Command {
	var (
		network       string
		batteryNotLow bool
		charging      bool
		storageNotLow bool
	)

	cmd := &cobra.Command{
		Use:   "submit <name>",
		Short: "Submit a job with constraints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := model.SubmitJobRequest{
				Name: args[0],
				Constraints: model.Constraints{
					RequiredNetwork:       model.NetworkRequirement(strings.ToUpper(strings.ReplaceAll(network, "-", "_"))),
					RequiresBatteryNotLow: batteryNotLow,
					RequiresCharging:      charging,
					RequiresStorageNotLow: storageNotLow,
				},
			}
			if errs := req.Validate(); len(errs) > 0 {
				return model.NewValidationError("invalid job", errs...)
			}

			resp, err := client.Post(cmd.Context(), "/api/v1/jobs/", req)
			if err != nil {
				return fmt.Errorf("submit job: %w", err)
			}

			var job model.JobStatus
			if err := json.Unmarshal(resp.Data, &job); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job submitted: %s\n", job.ID)
			if kinds := job.Constraints.Kinds(); len(kinds) > 0 {
				fmt.Fprintf(out, "  Constraints: %s\n", joinKinds(kinds))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&network, "network", "", "Required network: any, unmetered, not-roaming, metered")
	cmd.Flags().BoolVar(&batteryNotLow, "battery-not-low", false, "Require battery above the low threshold")
	cmd.Flags().BoolVar(&charging, "charging", false, "Require the device to be charging")
	cmd.Flags().BoolVar(&storageNotLow, "storage-not-low", false, "Require free storage above the low threshold")
	return cmd
}
