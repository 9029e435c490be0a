package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/deepesh-sr/Trustplay/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the Trustplay service",
	Args:    cobra.NoArgs,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := tpClient.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		err = emit(cmd.OutOrStdout(), map[string]string{"status": status}, func(w io.Writer) {
			shown := ui.RenderFailure(status)
			if status == "ok" {
				shown = ui.RenderSuccess(status)
			}
			fmt.Fprintf(w, "Health: %s\n", shown)
		})
		if err != nil {
			return err
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
