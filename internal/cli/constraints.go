package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/workgate/pkg/model"
)

func newConstraintsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "constraints",
		Short: "Show the constrained status of every condition kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/api/v1/constraints")
			if err != nil {
				return fmt.Errorf("get constraints: %w", err)
			}

			var statuses []model.ConditionStatus
			if err := json.Unmarshal(resp.Data, &statuses); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			printConstraints(cmd, statuses)
			return nil
		},
	}
}

func printConstraints(cmd *cobra.Command, statuses []model.ConditionStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-22s  %-8s  %-13s  %-8s  %s\n", "KIND", "SOURCE", "STATUS", "ATTACHED", "TRACKED")
	for _, st := range statuses {
		attached := "no"
		if st.Attached {
			attached = "yes"
		}
		fmt.Fprintf(out, "%-22s  %-8s  %s  %-8s  %d\n", st.Kind, st.Source, constraintLabel(st), attached, st.Tracked)
		if st.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", st.Error)
		}
	}
}
