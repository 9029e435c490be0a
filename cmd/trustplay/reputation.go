package main

import (
	"io"

	"github.com/spf13/cobra"
)

var reputationCmd = &cobra.Command{
	Use:     "reputation [<player>]",
	Short:   "Show a player's reputation (defaults to the current identity)",
	Args:    cobra.MaximumNArgs(1),
	GroupID: "views",
	RunE: func(cmd *cobra.Command, args []string) error {
		player := identity
		if len(args) == 1 {
			player = args[0]
		}
		rep, err := tpClient.GetReputation(cmd.Context(), player)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), rep, func(w io.Writer) { printReputation(w, rep) })
	},
}

var leaderboardCmd = &cobra.Command{
	Use:     "leaderboard",
	Short:   "Rank players by reputation score",
	Args:    cobra.NoArgs,
	GroupID: "views",
	RunE: func(cmd *cobra.Command, args []string) error {
		top, _ := cmd.Flags().GetInt("top")
		board, err := tpClient.Leaderboard(cmd.Context())
		if err != nil {
			return err
		}
		if top > 0 && len(board) > top {
			board = board[:top]
		}
		return emit(cmd.OutOrStdout(), board, func(w io.Writer) { printLeaderboard(w, board) })
	},
}

func init() {
	leaderboardCmd.Flags().Int("top", 0, "show only the first N players (0 = all)")
}
