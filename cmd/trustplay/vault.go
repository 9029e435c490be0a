package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deepesh-sr/Trustplay/internal/amount"
	"github.com/deepesh-sr/Trustplay/internal/ui"
)

var depositCmd = &cobra.Command{
	Use:   "deposit <room> <tokens>",
	Short: "Deposit tokens into a room's vault",
	Long: `Deposit tokens into a room's vault. The amount is in whole tokens with
up to 9 decimal places; pass --units to give base units instead.`,
	Args:    cobra.ExactArgs(2),
	GroupID: "rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		units, _ := cmd.Flags().GetBool("units")
		amt, err := parseAmount(args[1], units)
		if err != nil {
			return err
		}
		res, err := tpClient.Deposit(cmd.Context(), args[0], amt)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), res, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s tokens into %s\n", ui.RenderSuccess("Deposited"), tokens(res.Deposit.Amount), res.Vault.Address)
			fmt.Fprintf(w, "Vault balance: %s\n", tokens(res.Vault.Balance))
		})
	},
}

var vaultCmd = &cobra.Command{
	Use:     "vault",
	Short:   "Inspect room vaults",
	GroupID: "rooms",
}

var vaultShowCmd = &cobra.Command{
	Use:   "show <room>",
	Short: "Show a room's vault balance and withdrawable amount",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := tpClient.GetVault(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), v, func(w io.Writer) { printVault(w, v) })
	},
}

var vaultDepositsCmd = &cobra.Command{
	Use:   "deposits <room>",
	Short: "List deposits into a room's vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := tpClient.ListDeposits(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), ds, func(w io.Writer) { printDeposits(w, ds) })
	},
}

func parseAmount(s string, baseUnits bool) (uint64, error) {
	if baseUnits {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("amount %q: not a base-unit integer", s)
		}
		return n, nil
	}
	return amount.Parse(s)
}

func init() {
	depositCmd.Flags().Bool("units", false, "amount is in base units")

	vaultCmd.AddCommand(vaultShowCmd)
	vaultCmd.AddCommand(vaultDepositsCmd)
}
