package model

import (
	"math"
	"time"
)

// RewardPerWin is the score added for each accepted claim.
const RewardPerWin uint64 = 10

// Reputation is a player's cumulative settlement record. Score and Wins
// never decrease.
type Reputation struct {
	Player      string    `json:"player"`
	Score       uint64    `json:"score"`
	Wins        uint32    `json:"wins"`
	Initialized bool      `json:"initialized"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewReputation returns a freshly zeroed record for player.
func NewReputation(player string) *Reputation {
	return &Reputation{Player: player, Initialized: true}
}

// RecordWin adds one win and RewardPerWin to the score. The record is left
// unchanged if either counter would overflow.
func (r *Reputation) RecordWin() error {
	if r.Wins == math.MaxUint32 {
		return ErrNumericalOverflow
	}
	score, err := CheckedAdd(r.Score, RewardPerWin)
	if err != nil {
		return err
	}
	r.Wins++
	r.Score = score
	return nil
}
