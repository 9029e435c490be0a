package engine

import (
	"context"

	"github.com/deepesh-sr/Trustplay/internal/idgen"
	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// SubmitClaimRequest opens a claim on a room. An empty ClaimID is
// generated.
type SubmitClaimRequest struct {
	Room      string `json:"room"`
	Claimant  string `json:"claimant"`
	ClaimID   string `json:"claim_id,omitempty"`
	ProofHash string `json:"proof_hash,omitempty"`
}

// SubmitClaim creates an unresolved claim with zero tallies. Each claimant
// may hold one claim per claim id per room.
func (e *Engine) SubmitClaim(ctx context.Context, req SubmitClaimRequest) (*model.Claim, error) {
	claimID := req.ClaimID
	if claimID == "" {
		id, err := idgen.New(ClaimIDPrefix)
		if err != nil {
			return nil, err
		}
		claimID = id
	}
	c := &model.Claim{
		Room:      req.Room,
		Claimant:  req.Claimant,
		ClaimID:   claimID,
		ProofHash: req.ProofHash,
		CreatedAt: e.now(),
	}
	if err := model.ValidateClaim(c); err != nil {
		return nil, err
	}
	c.Address = model.ClaimAddress(c.Room, c.Claimant, c.ClaimID)

	err := e.mutate(ctx, "submit_claim", func(ctx context.Context, tx store.Store) error {
		room, err := tx.GetRoom(ctx, c.Room)
		if err != nil {
			return err
		}
		if err := e.checkOpen(room); err != nil {
			return err
		}
		return tx.CreateClaim(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetClaim returns the claim at address.
func (e *Engine) GetClaim(ctx context.Context, address string) (*model.Claim, error) {
	ctx, span := e.view(ctx, "get_claim")
	defer span.End()
	return e.store.GetClaim(ctx, address)
}

// ListClaims returns claims matching filter, oldest first.
func (e *Engine) ListClaims(ctx context.Context, filter model.ClaimFilter) ([]*model.Claim, error) {
	ctx, span := e.view(ctx, "list_claims")
	defer span.End()
	return e.store.ListClaims(ctx, filter)
}

// ListVotes returns the votes cast on claim.
func (e *Engine) ListVotes(ctx context.Context, claim string) ([]*model.VoterRecord, error) {
	ctx, span := e.view(ctx, "list_votes")
	defer span.End()
	if _, err := e.store.GetClaim(ctx, claim); err != nil {
		return nil, err
	}
	return e.store.ListVoterRecords(ctx, claim)
}
