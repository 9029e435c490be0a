package store

import (
	"context"
	"fmt"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// Authority proves the right to debit an owned custody slot. The store
// re-derives the slot address from Proof and rejects the debit unless it
// matches.
type Authority interface {
	// Slot is the address the authority may debit.
	Slot() string
	// Proof returns the derivation seeds and salt for Slot.
	Proof() (seeds []string, salt uint8)
}

// VerifyAuthority checks that auth is bound to from.
func VerifyAuthority(auth Authority, from string) error {
	if auth == nil || auth.Slot() != from {
		return fmt.Errorf("debit %s: %w", from, model.ErrInvalidAuthority)
	}
	seeds, salt := auth.Proof()
	if model.DeriveWithSalt(salt, seeds...) != from {
		return fmt.Errorf("debit %s: %w", from, model.ErrInvalidAuthority)
	}
	return nil
}

// Store defines the persistence interface for the settlement ledger.
// Lookups return model.ErrNotFound for missing records and inserts return
// model.ErrDuplicate when the record key already exists.
type Store interface {
	// Rooms
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, address string) (*model.Room, error)
	ListRooms(ctx context.Context, filter model.RoomFilter) ([]*model.Room, int, error) // returns rooms, total count, error
	UpdateRoomStatus(ctx context.Context, address string, status model.RoomStatus) error

	// Participants
	AddParticipant(ctx context.Context, p *model.Participant) error
	ListParticipants(ctx context.Context, room string) ([]*model.Participant, error)

	// Claims
	CreateClaim(ctx context.Context, claim *model.Claim) error
	GetClaim(ctx context.Context, address string) (*model.Claim, error)
	ListClaims(ctx context.Context, filter model.ClaimFilter) ([]*model.Claim, error)
	UpdateClaim(ctx context.Context, claim *model.Claim) error

	// Votes
	CreateVoterRecord(ctx context.Context, v *model.VoterRecord) error
	ListVoterRecords(ctx context.Context, claim string) ([]*model.VoterRecord, error)

	// Whitelist
	CreateWhitelist(ctx context.Context, w *model.Whitelist) error
	GetWhitelist(ctx context.Context) (*model.Whitelist, error)
	AddWhitelistMember(ctx context.Context, identity string) error
	RemoveWhitelistMember(ctx context.Context, identity string) error

	// Reputation
	GetReputation(ctx context.Context, player string) (*model.Reputation, error)
	PutReputation(ctx context.Context, r *model.Reputation) error
	ListReputations(ctx context.Context) ([]*model.Reputation, error)

	// Custody slots
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, address string) (*model.Account, error)
	// Credit records an external inflow into address, creating an
	// ownerless slot if none exists.
	Credit(ctx context.Context, address string, amount uint64) error
	// Transfer moves amount between slots. The source must stay at or above
	// its reserve and auth must verify against it.
	Transfer(ctx context.Context, from, to string, amount uint64, auth Authority) error
	// ReserveFor grows slot to dataLen and collects the reserve difference
	// from payer.
	ReserveFor(ctx context.Context, slot, payer string, dataLen int) error
	// ReleaseReserve shrinks slot to dataLen and refunds the surplus reserve
	// to refundTo.
	ReleaseReserve(ctx context.Context, slot, refundTo string, dataLen int) error

	// Deposits
	RecordDeposit(ctx context.Context, d *model.Deposit) error
	ListDeposits(ctx context.Context, room string) ([]*model.Deposit, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, ref string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
