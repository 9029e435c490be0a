package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// SnapshotVersion is written into every snapshot header.
const SnapshotVersion = "1"

// Source is the read side of the ledger that a snapshot needs.
type Source interface {
	ListRooms(ctx context.Context, filter model.RoomFilter) ([]*model.Room, int, error)
	ListParticipants(ctx context.Context, room string) ([]*model.Participant, error)
	ListDeposits(ctx context.Context, room string) ([]*model.Deposit, error)
	GetAccount(ctx context.Context, address string) (*model.Account, error)
	ListClaims(ctx context.Context, filter model.ClaimFilter) ([]*model.Claim, error)
	ListVoterRecords(ctx context.Context, claim string) ([]*model.VoterRecord, error)
	GetWhitelist(ctx context.Context) (*model.Whitelist, error)
	ListReputations(ctx context.Context) ([]*model.Reputation, error)
}

// Header is the first JSONL record of a snapshot.
type Header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	RoomCount       int       `json:"room_count"`
	ClaimCount      int       `json:"claim_count"`
	ReputationCount int       `json:"reputation_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// roomEntry is a room with its vault slot, participants and deposits.
type roomEntry struct {
	*model.Room
	VaultAccount *model.Account       `json:"vault_account,omitempty"`
	Participants []*model.Participant `json:"participants"`
	Deposits     []*model.Deposit     `json:"deposits"`
}

// claimEntry is a claim with its voter records.
type claimEntry struct {
	*model.Claim
	Votes []*model.VoterRecord `json:"votes"`
}

// ExportJSONL writes the ledger as JSONL to w: a header, the whitelist when
// one exists, then rooms, claims and reputations. Rooms and claims are
// sorted by address and reputations by player, so unchanged ledgers export
// identical bodies apart from the header timestamp.
func ExportJSONL(ctx context.Context, s Source, w io.Writer, now time.Time) error {
	wl, err := s.GetWhitelist(ctx)
	if errors.Is(err, model.ErrNotFound) {
		wl, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("get whitelist: %w", err)
	}

	rooms, _, err := s.ListRooms(ctx, model.RoomFilter{})
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Address < rooms[j].Address })

	roomEntries := make([]roomEntry, 0, len(rooms))
	for _, r := range rooms {
		e := roomEntry{Room: r}
		if e.Participants, err = s.ListParticipants(ctx, r.Address); err != nil {
			return fmt.Errorf("list participants for %s: %w", r.Address, err)
		}
		if e.Deposits, err = s.ListDeposits(ctx, r.Address); err != nil {
			return fmt.Errorf("list deposits for %s: %w", r.Address, err)
		}
		acct, err := s.GetAccount(ctx, r.Vault)
		switch {
		case err == nil:
			e.VaultAccount = acct
		case !errors.Is(err, model.ErrNotFound):
			return fmt.Errorf("get vault for %s: %w", r.Address, err)
		}
		roomEntries = append(roomEntries, e)
	}

	claims, err := s.ListClaims(ctx, model.ClaimFilter{})
	if err != nil {
		return fmt.Errorf("list claims: %w", err)
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].Address < claims[j].Address })

	claimEntries := make([]claimEntry, 0, len(claims))
	for _, c := range claims {
		votes, err := s.ListVoterRecords(ctx, c.Address)
		if err != nil {
			return fmt.Errorf("list votes for %s: %w", c.Address, err)
		}
		claimEntries = append(claimEntries, claimEntry{Claim: c, Votes: votes})
	}

	reps, err := s.ListReputations(ctx)
	if err != nil {
		return fmt.Errorf("list reputations: %w", err)
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].Player < reps[j].Player })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(Header{
		Version:         SnapshotVersion,
		Type:            "header",
		Timestamp:       now.UTC(),
		RoomCount:       len(roomEntries),
		ClaimCount:      len(claimEntries),
		ReputationCount: len(reps),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	if wl != nil {
		if err := enc.Encode(record{Type: "whitelist", Data: wl}); err != nil {
			return fmt.Errorf("encode whitelist: %w", err)
		}
	}
	for _, e := range roomEntries {
		if err := enc.Encode(record{Type: "room", Data: e}); err != nil {
			return fmt.Errorf("encode room %s: %w", e.Address, err)
		}
	}
	for _, e := range claimEntries {
		if err := enc.Encode(record{Type: "claim", Data: e}); err != nil {
			return fmt.Errorf("encode claim %s: %w", e.Address, err)
		}
	}
	for _, r := range reps {
		if err := enc.Encode(record{Type: "reputation", Data: r}); err != nil {
			return fmt.Errorf("encode reputation %s: %w", r.Player, err)
		}
	}
	return nil
}
