package model

import "time"

// RoomStatus represents the lifecycle state of a room.
type RoomStatus string

const (
	RoomOpen       RoomStatus = "open"
	RoomInProgress RoomStatus = "in_progress"
	RoomResolved   RoomStatus = "resolved"
	RoomCancelled  RoomStatus = "cancelled"
)

// String returns the string representation of the status.
func (s RoomStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s RoomStatus) IsValid() bool {
	switch s {
	case RoomOpen, RoomInProgress, RoomResolved, RoomCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s RoomStatus) IsTerminal() bool {
	return s == RoomResolved || s == RoomCancelled
}

// CanTransition reports whether moving from s to next keeps the status
// machine monotone: open -> in_progress -> resolved|cancelled, with open
// allowed to skip straight to a terminal state.
func (s RoomStatus) CanTransition(next RoomStatus) bool {
	switch s {
	case RoomOpen:
		return next == RoomInProgress || next == RoomResolved || next == RoomCancelled
	case RoomInProgress:
		return next == RoomResolved || next == RoomCancelled
	}
	return false
}

// Room is one prize pool, keyed by (Organizer, RoomID).
type Room struct {
	Address       string     `json:"address"`
	Organizer     string     `json:"organizer"`
	RoomID        string     `json:"room_id"`
	Name          string     `json:"name"`
	Vault         string     `json:"vault"`
	TotalPool     uint64     `json:"total_pool"`
	Status        RoomStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	DeadlineAt    time.Time  `json:"deadline_at"`
	VoteThreshold uint8      `json:"vote_threshold"`
	Salt          uint8      `json:"salt"`
}

// RoomFilter holds criteria for listing rooms.
type RoomFilter struct {
	Organizer string       `json:"organizer,omitempty"`
	Status    []RoomStatus `json:"status,omitempty"`
	Limit     int          `json:"limit,omitempty"`
	Offset    int          `json:"offset,omitempty"`
}

// Participant is the informational join record for (Room, Player).
type Participant struct {
	Room     string    `json:"room"`
	Player   string    `json:"player"`
	JoinedAt time.Time `json:"joined_at"`
}

// Deposit is one inflow into a room's vault.
type Deposit struct {
	ID        int64     `json:"id"`
	Room      string    `json:"room"`
	Payer     string    `json:"payer"`
	Amount    uint64    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
