package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/amount"
	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// emit prints v as JSON when --json is set and otherwise calls table.
func emit(w io.Writer, v any, table func(io.Writer)) error {
	if jsonOutput {
		return printJSON(w, v)
	}
	table(w)
	return nil
}

func tokens(units uint64) string { return amount.Format(units) }

func printRoom(w io.Writer, r *model.Room) {
	fmt.Fprintf(w, "Address:     %s\n", ui.RenderAccent(r.Address))
	fmt.Fprintf(w, "Room ID:     %s\n", r.RoomID)
	fmt.Fprintf(w, "Name:        %s\n", r.Name)
	fmt.Fprintf(w, "Organizer:   %s\n", r.Organizer)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderRoomStatus(r.Status))
	fmt.Fprintf(w, "Vault:       %s\n", r.Vault)
	fmt.Fprintf(w, "Total Pool:  %s\n", tokens(r.TotalPool))
	fmt.Fprintf(w, "Threshold:   %d%%\n", r.VoteThreshold)
	fmt.Fprintf(w, "Created At:  %s\n", r.CreatedAt.Format(timeLayout))
	if !r.DeadlineAt.IsZero() {
		fmt.Fprintf(w, "Deadline:    %s\n", r.DeadlineAt.Format(timeLayout))
	}
}

func printRoomList(w io.Writer, rooms []*model.Room, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tROOM ID\tSTATUS\tPOOL\tTHRESHOLD\tNAME")
	for _, r := range rooms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\n",
			r.Address, r.RoomID, ui.RenderRoomStatus(r.Status), tokens(r.TotalPool), r.VoteThreshold, truncate(r.Name, 40))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d rooms (%d total)\n", len(rooms), total)
}

func printParticipants(w io.Writer, ps []*model.Participant) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tJOINED")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\n", p.Player, p.JoinedAt.Format(timeLayout))
	}
	tw.Flush()
}

func printVault(w io.Writer, v *engine.VaultView) {
	fmt.Fprintf(w, "Room:          %s\n", v.Room)
	fmt.Fprintf(w, "Vault:         %s\n", ui.RenderAccent(v.Account.Address))
	fmt.Fprintf(w, "Balance:       %s\n", tokens(v.Account.Balance))
	fmt.Fprintf(w, "Reserve:       %s\n", ui.RenderMuted(tokens(v.Account.Reserve)))
	fmt.Fprintf(w, "Withdrawable:  %s\n", ui.RenderSuccess(tokens(v.Withdrawable)))
}

func printDeposits(w io.Writer, ds []*model.Deposit) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPAYER\tAMOUNT\tAT")
	var sum uint64
	for _, d := range ds {
		sum += d.Amount
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.ID, d.Payer, tokens(d.Amount), d.CreatedAt.Format(timeLayout))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d deposits, %s tokens\n", len(ds), tokens(sum))
}

func printClaim(w io.Writer, c *model.Claim) {
	fmt.Fprintf(w, "Address:     %s\n", ui.RenderAccent(c.Address))
	fmt.Fprintf(w, "Claim ID:    %s\n", c.ClaimID)
	fmt.Fprintf(w, "Room:        %s\n", c.Room)
	fmt.Fprintf(w, "Claimant:    %s\n", c.Claimant)
	if c.ProofHash != "" {
		fmt.Fprintf(w, "Proof:       %s\n", c.ProofHash)
	}
	fmt.Fprintf(w, "Votes:       %d for, %d against\n", c.VotesFor, c.VotesAgainst)
	fmt.Fprintf(w, "Verdict:     %s\n", ui.RenderVerdict(c))
	if c.Resolved {
		fmt.Fprintf(w, "Payout:      %s\n", tokens(c.Payout))
	}
	fmt.Fprintf(w, "Created At:  %s\n", c.CreatedAt.Format(timeLayout))
	if c.ResolvedAt != nil {
		fmt.Fprintf(w, "Resolved At: %s\n", c.ResolvedAt.Format(timeLayout))
	}
}

func printClaimList(w io.Writer, cs []*model.Claim) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tCLAIM ID\tCLAIMANT\tFOR\tAGAINST\tVERDICT\tPAYOUT")
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			c.Address, c.ClaimID, c.Claimant, c.VotesFor, c.VotesAgainst, ui.RenderVerdict(c), tokens(c.Payout))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d claims\n", len(cs))
}

func printVotes(w io.Writer, vs []*model.VoterRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VOTER\tVOTE\tAT")
	for _, v := range vs {
		vote := ui.RenderFailure("reject")
		if v.Accept {
			vote = ui.RenderSuccess("accept")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Voter, vote, v.CastAt.Format(timeLayout))
	}
	tw.Flush()
}

func printWhitelist(w io.Writer, wl *model.Whitelist) {
	fmt.Fprintf(w, "Address:  %s\n", ui.RenderAccent(wl.Address))
	fmt.Fprintf(w, "Admin:    %s\n", wl.Admin)
	fmt.Fprintf(w, "Members:  %d\n", len(wl.Members))
	for _, m := range wl.Members {
		fmt.Fprintf(w, "  %s\n", m)
	}
}

func printReputation(w io.Writer, r *model.Reputation) {
	fmt.Fprintf(w, "Player:  %s\n", r.Player)
	fmt.Fprintf(w, "Score:   %s\n", ui.RenderAccent(fmt.Sprint(r.Score)))
	fmt.Fprintf(w, "Wins:    %d\n", r.Wins)
	if !r.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated: %s\n", r.UpdatedAt.Format(timeLayout))
	}
}

func printLeaderboard(w io.Writer, rs []*model.Reputation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tWINS")
	for i, r := range rs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", i+1, r.Player, r.Score, r.Wins)
	}
	tw.Flush()
}

func printEvents(w io.Writer, evs []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTOPIC\tACTOR\tAT")
	for _, e := range evs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, ui.RenderAccent(e.Topic), e.Actor, e.CreatedAt.Format(timeLayout))
	}
	tw.Flush()
}

func printWatchedEvent(w io.Writer, at time.Time, topic string, data []byte) {
	fmt.Fprintf(w, "%s %s %s\n", ui.RenderMuted(at.Format("15:04:05")), ui.RenderAccent(topic), data)
}

func printRemote(w io.Writer, r remoteView) {
	name := r.Name
	if r.Active {
		name += " " + ui.RenderSuccess("(active)")
	}
	fmt.Fprintf(w, "Name:       %s\n", name)
	fmt.Fprintf(w, "URL:        %s\n", ui.RenderAccent(r.URL))
	fmt.Fprintf(w, "Transport:  %s\n", r.Transport)
	if r.Identity != "" {
		fmt.Fprintf(w, "Identity:   %s\n", r.Identity)
	}
	if r.Token != "" {
		fmt.Fprintf(w, "Token:      %s\n", r.Token)
	}
	if r.NATSURL != "" {
		fmt.Fprintf(w, "NATS:       %s\n", r.NATSURL)
	}
}

func printRemoteList(w io.Writer, rs []remoteView) {
	if len(rs) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("No remotes configured"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tURL\tTRANSPORT\tIDENTITY\tTOKEN")
	for _, r := range rs {
		marker := "  "
		if r.Active {
			marker = "* "
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\n", marker, r.Name, r.URL, r.Transport, r.Identity, truncate(r.Token, 12))
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
