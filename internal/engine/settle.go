package engine

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// ResolveRequest names the claim to settle and the room it must belong to.
// Claimant, when set, must equal the claim's claimant.
type ResolveRequest struct {
	Room     string `json:"room"`
	Claim    string `json:"claim"`
	Claimant string `json:"claimant,omitempty"`
}

// ResolveResult is the outcome of a settlement. Reputation is nil when the
// claim was rejected.
type ResolveResult struct {
	Claim      *model.Claim      `json:"claim"`
	Room       *model.Room       `json:"room"`
	Reputation *model.Reputation `json:"reputation,omitempty"`
}

// Threshold reports whether votesFor out of votesFor+votesAgainst meets
// threshold percent. The comparison votesFor*100 >= threshold*total is done
// on 128-bit products, so it is exact for every input.
func Threshold(votesFor, votesAgainst uint64, threshold uint8) (bool, error) {
	total, err := model.CheckedAdd(votesFor, votesAgainst)
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, model.ErrNoVotes
	}
	forHi, forLo := bits.Mul64(votesFor, 100)
	needHi, needLo := bits.Mul64(uint64(threshold), total)
	if forHi != needHi {
		return forHi > needHi, nil
	}
	return forLo >= needLo, nil
}

// ResolveClaim settles a claim exactly once. On acceptance the vault's
// whole withdrawable balance goes to the claimant, the claimant's
// reputation records a win and the room is marked resolved. On rejection
// nothing but the claim changes. Anyone may trigger settlement.
func (e *Engine) ResolveClaim(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	res := &ResolveResult{}
	err := e.mutate(ctx, "resolve_claim", func(ctx context.Context, tx store.Store) error {
		room, err := tx.GetRoom(ctx, req.Room)
		if err != nil {
			return err
		}
		c, err := tx.GetClaim(ctx, req.Claim)
		if err != nil {
			return err
		}
		if c.Room != room.Address {
			return fmt.Errorf("claim %s: %w", c.ClaimID, model.ErrClaimRoomMismatch)
		}
		if req.Claimant != "" && req.Claimant != c.Claimant {
			return fmt.Errorf("claim %s: %w", c.ClaimID, model.ErrClaimantMismatch)
		}
		if c.Resolved {
			return fmt.Errorf("claim %s: %w", c.ClaimID, model.ErrAlreadyResolved)
		}

		accepted, err := Threshold(c.VotesFor, c.VotesAgainst, room.VoteThreshold)
		if err != nil {
			return fmt.Errorf("claim %s: %w", c.ClaimID, err)
		}

		now := e.now()
		if accepted {
			vault, err := loadVault(ctx, tx, room)
			if err != nil {
				return err
			}
			paid, err := withdrawAllExcess(ctx, tx, room, vault, c.Claimant, newVaultAuthority(room, vault))
			if err != nil {
				return err
			}
			rep, err := e.recordWin(ctx, tx, c.Claimant, now)
			if err != nil {
				return err
			}
			if room.Status.CanTransition(model.RoomResolved) {
				if err := tx.UpdateRoomStatus(ctx, room.Address, model.RoomResolved); err != nil {
					return err
				}
				room.Status = model.RoomResolved
			}
			c.Payout = paid
			res.Reputation = rep
		}

		c.Resolved = true
		c.Accepted = accepted
		c.ResolvedAt = &now
		if err := tx.UpdateClaim(ctx, c); err != nil {
			return err
		}
		res.Claim, res.Room = c, room
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.settled(res.Claim.Accepted, res.Claim.Payout)
	e.logger.Info("claim resolved",
		"claim", res.Claim.Address,
		"room", res.Room.Address,
		"claimant", res.Claim.Claimant,
		"votes_for", res.Claim.VotesFor,
		"votes_against", res.Claim.VotesAgainst,
		"threshold", res.Room.VoteThreshold,
		"accepted", res.Claim.Accepted,
		"payout", res.Claim.Payout,
	)
	return res, nil
}
