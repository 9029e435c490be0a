package events

import (
	"context"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// Event topic constants
const (
	TopicRoomCreated   = "trustplay.room.created"
	TopicRoomJoined    = "trustplay.room.joined"
	TopicRoomStarted   = "trustplay.room.started"
	TopicRoomCancelled = "trustplay.room.cancelled"
	TopicRoomResolved  = "trustplay.room.resolved"

	TopicVaultDeposited = "trustplay.vault.deposited"

	TopicClaimSubmitted = "trustplay.claim.submitted"
	TopicClaimVoted     = "trustplay.claim.voted"
	TopicClaimResolved  = "trustplay.claim.resolved"

	TopicWhitelistInitialized = "trustplay.whitelist.initialized"
	TopicWhitelistAdded       = "trustplay.whitelist.added"
	TopicWhitelistRemoved     = "trustplay.whitelist.removed"

	TopicReputationUpdated = "trustplay.reputation.updated"
)

// AllTopics matches every Trustplay topic.
const AllTopics = "trustplay.>"

// Event types

type RoomCreated struct {
	Room  *model.Room    `json:"room"`
	Vault *model.Account `json:"vault"`
}

type RoomJoined struct {
	Participant *model.Participant `json:"participant"`
}

// RoomStatusChanged is emitted for start, cancel and resolve.
type RoomStatusChanged struct {
	Room *model.Room `json:"room"`
	By   string      `json:"by,omitempty"`
}

type VaultDeposited struct {
	Deposit *model.Deposit `json:"deposit"`
	Balance uint64         `json:"balance"`
}

type ClaimSubmitted struct {
	Claim *model.Claim `json:"claim"`
}

type ClaimVoted struct {
	Claim *model.Claim       `json:"claim"`
	Vote  *model.VoterRecord `json:"vote"`
}

type ClaimResolved struct {
	Claim *model.Claim `json:"claim"`
	Room  *model.Room  `json:"room"`
}

type WhitelistChanged struct {
	Admin    string `json:"admin"`
	Identity string `json:"identity,omitempty"`
	Members  int    `json:"members"`
}

type ReputationUpdated struct {
	Reputation *model.Reputation `json:"reputation"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
