package model

import "time"

// Claim is a dispute over payout eligibility, keyed by (Room, Claimant, ClaimID).
type Claim struct {
	Address      string     `json:"address"`
	Room         string     `json:"room"`
	Claimant     string     `json:"claimant"`
	ClaimID      string     `json:"claim_id"`
	ProofHash    string     `json:"proof_hash,omitempty"`
	VotesFor     uint64     `json:"votes_for"`
	VotesAgainst uint64     `json:"votes_against"`
	Resolved     bool       `json:"resolved"`
	Accepted     bool       `json:"accepted"`
	Payout       uint64     `json:"payout"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// ClaimFilter holds criteria for listing claims.
type ClaimFilter struct {
	Room     string `json:"room,omitempty"`
	Claimant string `json:"claimant,omitempty"`
	Resolved *bool  `json:"resolved,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// VoterRecord marks that Voter has voted on Claim. At most one exists per pair.
type VoterRecord struct {
	Claim  string    `json:"claim"`
	Voter  string    `json:"voter"`
	Accept bool      `json:"accept"`
	CastAt time.Time `json:"cast_at"`
}
