package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/ui"
)

var whitelistCmd = &cobra.Command{
	Use:     "whitelist",
	Short:   "Manage the voter whitelist",
	GroupID: "claims",
}

var whitelistInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the whitelist with the current identity as admin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wl, err := tpClient.InitializeWhitelist(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), wl, func(w io.Writer) {
			fmt.Fprintf(w, "%s whitelist %s (admin %s)\n", ui.RenderSuccess("Initialized"), wl.Address, wl.Admin)
		})
	},
}

var whitelistShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the whitelist admin and members",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wl, err := tpClient.GetWhitelist(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), wl, func(w io.Writer) { printWhitelist(w, wl) })
	},
}

func whitelistMemberCmd(use, short, verb string, call func(cmd *cobra.Command, id string) (*engine.WhitelistResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <identity>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []*engine.WhitelistResult
			for _, id := range args {
				res, err := call(cmd, id)
				if err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				results = append(results, res)
			}
			return emit(cmd.OutOrStdout(), results, func(w io.Writer) {
				for i, res := range results {
					if res.Changed {
						fmt.Fprintf(w, "%s %s\n", ui.RenderSuccess(verb), args[i])
					} else {
						fmt.Fprintf(w, "%s %s\n", ui.RenderMuted("Unchanged"), args[i])
					}
				}
				last := results[len(results)-1]
				fmt.Fprintf(w, "Whitelist has %d members\n", len(last.Whitelist.Members))
			})
		},
	}
}

var whitelistAddCmd = whitelistMemberCmd("add", "Add voters (admin only, idempotent)", "Added",
	func(cmd *cobra.Command, id string) (*engine.WhitelistResult, error) {
		return tpClient.AddToWhitelist(cmd.Context(), id)
	})

var whitelistRemoveCmd = whitelistMemberCmd("remove", "Remove voters (admin only, idempotent)", "Removed",
	func(cmd *cobra.Command, id string) (*engine.WhitelistResult, error) {
		return tpClient.RemoveFromWhitelist(cmd.Context(), id)
	})

func init() {
	whitelistCmd.AddCommand(whitelistInitCmd)
	whitelistCmd.AddCommand(whitelistShowCmd)
	whitelistCmd.AddCommand(whitelistAddCmd)
	whitelistCmd.AddCommand(whitelistRemoveCmd)
}
