package rpc

import (
	"encoding/json"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// Requests carry no caller identity; the identity travels in the
// x-trustplay-identity metadata key.

type Empty struct{}

type CreateRoomRequest struct {
	RoomID        string                 `json:"room_id,omitempty"`
	Name          string                 `json:"name"`
	TotalPool     uint64                 `json:"total_pool"`
	Deadline      *timestamppb.Timestamp `json:"deadline,omitempty"`
	VoteThreshold uint32                 `json:"vote_threshold"`
}

type RoomRequest struct {
	Room string `json:"room"`
}

type ListRoomsRequest struct {
	Organizer string   `json:"organizer,omitempty"`
	Status    []string `json:"status,omitempty"`
	Limit     int32    `json:"limit,omitempty"`
	Offset    int32    `json:"offset,omitempty"`
}

type ListRoomsResponse struct {
	Rooms []*model.Room `json:"rooms"`
	Total int32         `json:"total"`
}

type ParticipantsResponse struct {
	Participants []*model.Participant `json:"participants"`
}

type DepositRequest struct {
	Room   string `json:"room"`
	Amount uint64 `json:"amount"`
}

type DepositsResponse struct {
	Deposits []*model.Deposit `json:"deposits"`
}

type SubmitClaimRequest struct {
	Room      string `json:"room"`
	ClaimID   string `json:"claim_id,omitempty"`
	ProofHash string `json:"proof_hash,omitempty"`
}

type ListClaimsRequest struct {
	Room     string `json:"room,omitempty"`
	Claimant string `json:"claimant,omitempty"`
	Resolved *bool  `json:"resolved,omitempty"`
	Limit    int32  `json:"limit,omitempty"`
	Offset   int32  `json:"offset,omitempty"`
}

type ClaimsResponse struct {
	Claims []*model.Claim `json:"claims"`
}

type ClaimRequest struct {
	Claim string `json:"claim"`
}

type CastVoteRequest struct {
	Claim  string `json:"claim"`
	Accept bool   `json:"accept"`
}

type VotesResponse struct {
	Votes []*model.VoterRecord `json:"votes"`
}

type ResolveClaimRequest struct {
	Room     string `json:"room"`
	Claim    string `json:"claim"`
	Claimant string `json:"claimant,omitempty"`
}

type MemberRequest struct {
	Identity string `json:"identity"`
}

type PlayerRequest struct {
	Player string `json:"player"`
}

type LeaderboardResponse struct {
	Reputations []*model.Reputation `json:"reputations"`
}

type EventsRequest struct {
	Ref string `json:"ref"`
}

// Event is the wire form of model.Event.
type Event struct {
	ID        int64                  `json:"id"`
	Topic     string                 `json:"topic"`
	Ref       string                 `json:"ref"`
	Actor     string                 `json:"actor,omitempty"`
	Payload   json.RawMessage        `json:"payload,omitempty"`
	CreatedAt *timestamppb.Timestamp `json:"created_at,omitempty"`
}

type EventsResponse struct {
	Events []*Event `json:"events"`
}

// EventToWire converts a stored event to its wire form.
func EventToWire(e *model.Event) *Event {
	if e == nil {
		return nil
	}
	return &Event{
		ID:        e.ID,
		Topic:     e.Topic,
		Ref:       e.Ref,
		Actor:     e.Actor,
		Payload:   e.Payload,
		CreatedAt: timestamppb.New(e.CreatedAt),
	}
}

// EventFromWire converts a wire event back to a model.Event.
func EventFromWire(e *Event) *model.Event {
	if e == nil {
		return nil
	}
	out := &model.Event{
		ID:      e.ID,
		Topic:   e.Topic,
		Ref:     e.Ref,
		Actor:   e.Actor,
		Payload: e.Payload,
	}
	if e.CreatedAt != nil {
		out.CreatedAt = e.CreatedAt.AsTime()
	}
	return out
}

// DeadlineFromWire returns the zero time for a nil timestamp.
func DeadlineFromWire(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.AsTime()
}

// DeadlineToWire returns nil for the zero time.
func DeadlineToWire(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}
