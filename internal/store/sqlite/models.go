package sqlite

import (
	"encoding/json"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// Row types mirror the Postgres schema. gorm creates and migrates them.

type roomRow struct {
	Address       string `gorm:"primaryKey"`
	Organizer     string `gorm:"uniqueIndex:idx_rooms_organizer_room_id;not null"`
	RoomID        string `gorm:"uniqueIndex:idx_rooms_organizer_room_id;not null"`
	Name          string `gorm:"not null"`
	Vault         string `gorm:"not null"`
	TotalPool     uint64
	Status        string    `gorm:"index;not null"`
	CreatedAt     time.Time `gorm:"index"`
	DeadlineAt    *time.Time
	VoteThreshold uint8
	Salt          uint8
}

func (roomRow) TableName() string { return "rooms" }

func newRoomRow(r *model.Room) *roomRow {
	row := &roomRow{
		Address:       r.Address,
		Organizer:     r.Organizer,
		RoomID:        r.RoomID,
		Name:          r.Name,
		Vault:         r.Vault,
		TotalPool:     r.TotalPool,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		VoteThreshold: r.VoteThreshold,
		Salt:          r.Salt,
	}
	if !r.DeadlineAt.IsZero() {
		t := r.DeadlineAt
		row.DeadlineAt = &t
	}
	return row
}

func (r *roomRow) model() *model.Room {
	out := &model.Room{
		Address:       r.Address,
		Organizer:     r.Organizer,
		RoomID:        r.RoomID,
		Name:          r.Name,
		Vault:         r.Vault,
		TotalPool:     r.TotalPool,
		Status:        model.RoomStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		VoteThreshold: r.VoteThreshold,
		Salt:          r.Salt,
	}
	if r.DeadlineAt != nil {
		out.DeadlineAt = *r.DeadlineAt
	}
	return out
}

type participantRow struct {
	Room     string `gorm:"primaryKey"`
	Player   string `gorm:"primaryKey"`
	JoinedAt time.Time
}

func (participantRow) TableName() string { return "participants" }

type claimRow struct {
	Address      string `gorm:"primaryKey"`
	Room         string `gorm:"uniqueIndex:idx_claims_key;not null"`
	Claimant     string `gorm:"uniqueIndex:idx_claims_key;not null"`
	ClaimID      string `gorm:"uniqueIndex:idx_claims_key;not null"`
	ProofHash    string
	VotesFor     uint64
	VotesAgainst uint64
	Resolved     bool
	Accepted     bool
	Payout       uint64
	CreatedAt    time.Time `gorm:"index"`
	ResolvedAt   *time.Time
}

func (claimRow) TableName() string { return "claims" }

func newClaimRow(c *model.Claim) *claimRow {
	return &claimRow{
		Address:      c.Address,
		Room:         c.Room,
		Claimant:     c.Claimant,
		ClaimID:      c.ClaimID,
		ProofHash:    c.ProofHash,
		VotesFor:     c.VotesFor,
		VotesAgainst: c.VotesAgainst,
		Resolved:     c.Resolved,
		Accepted:     c.Accepted,
		Payout:       c.Payout,
		CreatedAt:    c.CreatedAt,
		ResolvedAt:   c.ResolvedAt,
	}
}

func (c *claimRow) model() *model.Claim {
	return &model.Claim{
		Address:      c.Address,
		Room:         c.Room,
		Claimant:     c.Claimant,
		ClaimID:      c.ClaimID,
		ProofHash:    c.ProofHash,
		VotesFor:     c.VotesFor,
		VotesAgainst: c.VotesAgainst,
		Resolved:     c.Resolved,
		Accepted:     c.Accepted,
		Payout:       c.Payout,
		CreatedAt:    c.CreatedAt,
		ResolvedAt:   c.ResolvedAt,
	}
}

type voterRecordRow struct {
	Claim  string `gorm:"primaryKey"`
	Voter  string `gorm:"primaryKey"`
	Accept bool
	CastAt time.Time
}

func (voterRecordRow) TableName() string { return "voter_records" }

type whitelistRow struct {
	Address   string `gorm:"primaryKey"`
	Admin     string `gorm:"not null"`
	Salt      uint8
	CreatedAt time.Time
}

func (whitelistRow) TableName() string { return "whitelist" }

type whitelistMemberRow struct {
	Position uint   `gorm:"primaryKey;autoIncrement"`
	Member   string `gorm:"uniqueIndex;not null"`
}

func (whitelistMemberRow) TableName() string { return "whitelist_members" }

type reputationRow struct {
	Player      string `gorm:"primaryKey"`
	Score       uint64 `gorm:"index"`
	Wins        uint32
	Initialized bool
	UpdatedAt   time.Time
}

func (reputationRow) TableName() string { return "reputations" }

func (r *reputationRow) model() *model.Reputation {
	return &model.Reputation{
		Player:      r.Player,
		Score:       r.Score,
		Wins:        r.Wins,
		Initialized: r.Initialized,
		UpdatedAt:   r.UpdatedAt,
	}
}

type accountRow struct {
	Address string `gorm:"primaryKey"`
	Owner   string
	Balance uint64
	Reserve uint64
	DataLen int
	Salt    uint8
}

func (accountRow) TableName() string { return "accounts" }

func (a *accountRow) model() *model.Account {
	return &model.Account{
		Address: a.Address,
		Owner:   a.Owner,
		Balance: a.Balance,
		Reserve: a.Reserve,
		DataLen: a.DataLen,
		Salt:    a.Salt,
	}
}

func newAccountRow(a *model.Account) *accountRow {
	return &accountRow{
		Address: a.Address,
		Owner:   a.Owner,
		Balance: a.Balance,
		Reserve: a.Reserve,
		DataLen: a.DataLen,
		Salt:    a.Salt,
	}
}

type depositRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Room      string `gorm:"index;not null"`
	Payer     string `gorm:"not null"`
	Amount    uint64
	CreatedAt time.Time
}

func (depositRow) TableName() string { return "deposits" }

type eventRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Topic     string `gorm:"not null"`
	Ref       string `gorm:"index"`
	Actor     string
	Payload   []byte
	CreatedAt time.Time
}

func (eventRow) TableName() string { return "events" }

func (e *eventRow) model() *model.Event {
	out := &model.Event{
		ID:        e.ID,
		Topic:     e.Topic,
		Ref:       e.Ref,
		Actor:     e.Actor,
		CreatedAt: e.CreatedAt,
	}
	if len(e.Payload) > 0 {
		out.Payload = json.RawMessage(e.Payload)
	}
	return out
}

// migrateModels lists every table created at startup.
var migrateModels = []any{
	&roomRow{},
	&participantRow{},
	&claimRow{},
	&voterRecordRow{},
	&whitelistRow{},
	&whitelistMemberRow{},
	&reputationRow{},
	&accountRow{},
	&depositRow{},
	&eventRow{},
}
