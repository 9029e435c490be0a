package engine

import (
	"context"
	"fmt"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// VoteResult is the claim after a vote together with the new record.
type VoteResult struct {
	Claim *model.Claim       `json:"claim"`
	Vote  *model.VoterRecord `json:"vote"`
}

// CastVote records voter's vote on claim and bumps the matching tally.
//
// Checks run in a fixed order: the voter must be whitelisted, then voting
// for the first time, then the claim must still be open. The voter record
// is written before the resolved check and rolls back with it, so a repeat
// voter sees ErrDuplicate even on a closed claim. Any failure leaves both
// the tallies and the voter records untouched.
func (e *Engine) CastVote(ctx context.Context, claim, voter string, accept bool) (*VoteResult, error) {
	res := &VoteResult{}
	err := e.mutate(ctx, "cast_vote", func(ctx context.Context, tx store.Store) error {
		c, err := tx.GetClaim(ctx, claim)
		if err != nil {
			return err
		}

		w, err := tx.GetWhitelist(ctx)
		if err != nil && !isNotFound(err) {
			return err
		}
		if w == nil || !w.Contains(voter) {
			return fmt.Errorf("vote by %s: %w", voter, model.ErrVoterNotWhitelisted)
		}

		v := &model.VoterRecord{Claim: c.Address, Voter: voter, Accept: accept, CastAt: e.now()}
		if err := tx.CreateVoterRecord(ctx, v); err != nil {
			return err
		}

		if c.Resolved {
			return fmt.Errorf("claim %s: %w", c.ClaimID, model.ErrAlreadyResolved)
		}
		if e.policy.GateRoomStatus || e.policy.EnforceDeadline {
			room, err := tx.GetRoom(ctx, c.Room)
			if err != nil {
				return err
			}
			if err := e.checkOpen(room); err != nil {
				return err
			}
		}

		if accept {
			c.VotesFor, err = model.CheckedAdd(c.VotesFor, 1)
		} else {
			c.VotesAgainst, err = model.CheckedAdd(c.VotesAgainst, 1)
		}
		if err != nil {
			return fmt.Errorf("tally claim %s: %w", c.ClaimID, err)
		}
		if err := tx.UpdateClaim(ctx, c); err != nil {
			return err
		}
		res.Claim, res.Vote = c, v
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.voted(accept)
	return res, nil
}
