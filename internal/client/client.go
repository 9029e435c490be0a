// Package client provides a transport-agnostic interface for the Trustplay
// service, with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/model"
)

// TrustplayClient is what the trustplay CLI uses to talk to a server. The
// caller identity is fixed when the client is built.
type TrustplayClient interface {
	// Rooms
	CreateRoom(ctx context.Context, req *CreateRoomRequest) (*engine.RoomResult, error)
	GetRoom(ctx context.Context, room string) (*model.Room, error)
	ListRooms(ctx context.Context, req *ListRoomsRequest) (*ListRoomsResponse, error)
	StartRoom(ctx context.Context, room string) (*model.Room, error)
	CancelRoom(ctx context.Context, room string) (*model.Room, error)
	JoinRoom(ctx context.Context, room string) (*model.Participant, error)
	ListParticipants(ctx context.Context, room string) ([]*model.Participant, error)

	// Vault
	Deposit(ctx context.Context, room string, amount uint64) (*engine.DepositResult, error)
	GetVault(ctx context.Context, room string) (*engine.VaultView, error)
	ListDeposits(ctx context.Context, room string) ([]*model.Deposit, error)

	// Claims
	SubmitClaim(ctx context.Context, req *SubmitClaimRequest) (*model.Claim, error)
	GetClaim(ctx context.Context, claim string) (*model.Claim, error)
	ListClaims(ctx context.Context, req *ListClaimsRequest) ([]*model.Claim, error)
	CastVote(ctx context.Context, claim string, accept bool) (*engine.VoteResult, error)
	ListVotes(ctx context.Context, claim string) ([]*model.VoterRecord, error)
	ResolveClaim(ctx context.Context, req *ResolveClaimRequest) (*engine.ResolveResult, error)

	// Whitelist
	InitializeWhitelist(ctx context.Context) (*model.Whitelist, error)
	AddToWhitelist(ctx context.Context, identity string) (*engine.WhitelistResult, error)
	RemoveFromWhitelist(ctx context.Context, identity string) (*engine.WhitelistResult, error)
	GetWhitelist(ctx context.Context) (*model.Whitelist, error)

	// Reputation and events
	GetReputation(ctx context.Context, player string) (*model.Reputation, error)
	Leaderboard(ctx context.Context) ([]*model.Reputation, error)
	GetEvents(ctx context.Context, ref string) ([]*model.Event, error)

	Health(ctx context.Context) (string, error)
	Close() error
}

// CreateRoomRequest holds parameters for creating a room. A zero Deadline
// means the room never expires.
type CreateRoomRequest struct {
	RoomID        string     `json:"room_id,omitempty"`
	Name          string     `json:"name"`
	TotalPool     uint64     `json:"total_pool"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	VoteThreshold uint8      `json:"vote_threshold"`
}

// ListRoomsRequest holds filters for listing rooms.
type ListRoomsRequest struct {
	Organizer string
	Status    []string
	Limit     int
	Offset    int
}

// ListRoomsResponse is the response from ListRooms.
type ListRoomsResponse struct {
	Rooms []*model.Room `json:"rooms"`
	Total int           `json:"total"`
}

// SubmitClaimRequest holds parameters for submitting a claim.
type SubmitClaimRequest struct {
	Room      string `json:"-"`
	ClaimID   string `json:"claim_id,omitempty"`
	ProofHash string `json:"proof_hash,omitempty"`
}

// ListClaimsRequest holds filters for listing claims. Room may be empty to
// list across rooms.
type ListClaimsRequest struct {
	Room     string
	Claimant string
	Resolved *bool
	Limit    int
	Offset   int
}

// ResolveClaimRequest names the claim to settle. Room and Claimant are
// optional cross-checks.
type ResolveClaimRequest struct {
	Claim    string `json:"-"`
	Room     string `json:"room,omitempty"`
	Claimant string `json:"claimant,omitempty"`
}

// APIError is an error reported by the server. Code is the engine's error
// kind when the server supplied one; errors.Is matches the corresponding
// model sentinel.
type APIError struct {
	StatusCode int        // HTTP status, zero over gRPC
	GRPCCode   codes.Code // gRPC status code, OK over HTTP
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rpc %s: %s", e.GRPCCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return model.ErrorForCode(e.Code)
}

// IsNotFound reports whether err is a not-found response from either
// transport.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404 || apiErr.GRPCCode == codes.NotFound
	}
	return errors.Is(err, model.ErrNotFound)
}

// fromStatus turns a gRPC status error into an APIError, splitting the
// "kind: message" prefix the server puts on engine errors.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	apiErr := &APIError{GRPCCode: st.Code(), Message: st.Message()}
	if kind, rest, found := strings.Cut(st.Message(), ": "); found {
		if model.ErrorForCode(kind) != nil || kind == model.CodeInvalidArgument {
			apiErr.Code = kind
			apiErr.Message = rest
		}
	}
	return apiErr
}
