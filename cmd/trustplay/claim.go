package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/deepesh-sr/Trustplay/internal/client"
	"github.com/deepesh-sr/Trustplay/internal/ui"
)

var claimCmd = &cobra.Command{
	Use:     "claim",
	Short:   "Submit and inspect claims",
	GroupID: "claims",
}

var claimSubmitCmd = &cobra.Command{
	Use:   "submit <room>",
	Short: "Submit a claim on a room's pool as the current identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		claimID, _ := cmd.Flags().GetString("id")
		proof, _ := cmd.Flags().GetString("proof")

		c, err := tpClient.SubmitClaim(cmd.Context(), &client.SubmitClaimRequest{
			Room: args[0], ClaimID: claimID, ProofHash: proof,
		})
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), c, func(w io.Writer) {
			fmt.Fprintf(w, "%s claim %s\n", ui.RenderSuccess("Submitted"), ui.RenderAccent(c.Address))
			printClaim(w, c)
		})
	},
}

var claimShowCmd = &cobra.Command{
	Use:   "show <claim>",
	Short: "Show a claim and its tally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := tpClient.GetClaim(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), c, func(w io.Writer) { printClaim(w, c) })
	},
}

var claimListCmd = &cobra.Command{
	Use:   "list",
	Short: "List claims",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		room, _ := cmd.Flags().GetString("room")
		claimant, _ := cmd.Flags().GetString("claimant")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		req := &client.ListClaimsRequest{Room: room, Claimant: claimant, Limit: limit, Offset: offset}
		switch {
		case cmd.Flags().Changed("resolved"):
			v, _ := cmd.Flags().GetBool("resolved")
			req.Resolved = &v
		case cmd.Flags().Changed("pending"):
			v, _ := cmd.Flags().GetBool("pending")
			v = !v
			req.Resolved = &v
		}

		cs, err := tpClient.ListClaims(cmd.Context(), req)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), cs, func(w io.Writer) { printClaimList(w, cs) })
	},
}

var claimVotesCmd = &cobra.Command{
	Use:   "votes <claim>",
	Short: "List the votes cast on a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vs, err := tpClient.ListVotes(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), vs, func(w io.Writer) { printVotes(w, vs) })
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <claim> accept|reject",
	Short: "Vote on a claim as a whitelisted voter",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 1 {
			return []string{"accept", "reject"}, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	GroupID: "claims",
	RunE: func(cmd *cobra.Command, args []string) error {
		var accept bool
		switch args[1] {
		case "accept", "yes", "for":
			accept = true
		case "reject", "no", "against":
		default:
			return fmt.Errorf("vote must be accept or reject, got %q", args[1])
		}
		res, err := tpClient.CastVote(cmd.Context(), args[0], accept)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), res, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s on %s (%d for, %d against)\n", ui.RenderSuccess("Voted"),
				args[1], res.Claim.Address, res.Claim.VotesFor, res.Claim.VotesAgainst)
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:     "resolve <claim>",
	Short:   "Settle a claim: pay out on acceptance and update reputation",
	Args:    cobra.ExactArgs(1),
	GroupID: "claims",
	RunE: func(cmd *cobra.Command, args []string) error {
		room, _ := cmd.Flags().GetString("room")
		claimant, _ := cmd.Flags().GetString("claimant")

		res, err := tpClient.ResolveClaim(cmd.Context(), &client.ResolveClaimRequest{
			Claim: args[0], Room: room, Claimant: claimant,
		})
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), res, func(w io.Writer) {
			fmt.Fprintf(w, "Claim %s %s\n", res.Claim.Address, ui.RenderVerdict(res.Claim))
			if res.Claim.Accepted {
				fmt.Fprintf(w, "Paid %s tokens to %s\n", tokens(res.Claim.Payout), res.Claim.Claimant)
			}
			if res.Reputation != nil {
				fmt.Fprintf(w, "Reputation of %s: %d (%d wins)\n", res.Reputation.Player, res.Reputation.Score, res.Reputation.Wins)
			}
			fmt.Fprintf(w, "Room %s is %s\n", res.Room.Address, ui.RenderRoomStatus(res.Room.Status))
		})
	},
}

func init() {
	claimSubmitCmd.Flags().String("id", "", "claim id, unique per room and claimant (generated if empty)")
	claimSubmitCmd.Flags().String("proof", "", "hash of off-system evidence")

	claimListCmd.Flags().String("room", "", "only claims on this room")
	claimListCmd.Flags().String("claimant", "", "only claims by this identity")
	claimListCmd.Flags().Bool("resolved", false, "only resolved claims")
	claimListCmd.Flags().Bool("pending", false, "only unresolved claims")
	claimListCmd.MarkFlagsMutuallyExclusive("resolved", "pending")
	claimListCmd.Flags().Int("limit", 50, "maximum claims to return")
	claimListCmd.Flags().Int("offset", 0, "claims to skip")

	resolveCmd.Flags().String("room", "", "expected room, checked against the claim")
	resolveCmd.Flags().String("claimant", "", "expected claimant, checked against the claim")

	claimCmd.AddCommand(claimSubmitCmd)
	claimCmd.AddCommand(claimListCmd)
	claimCmd.AddCommand(claimShowCmd)
	claimCmd.AddCommand(claimVotesCmd)
}
