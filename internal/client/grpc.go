package client

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/rpc"
)

// GRPCClient implements TrustplayClient using the gRPC transport.
type GRPCClient struct {
	conn     grpc.ClientConnInterface
	closer   func() error
	token    string
	identity string
}

// NewGRPCClient connects to the given gRPC address. token and identity are
// attached to every call as metadata when non-empty.
func NewGRPCClient(addr, token, identity string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	c := NewGRPCClientFromConn(conn, token, identity)
	c.closer = conn.Close
	return c, nil
}

// NewGRPCClientFromConn wraps an existing connection. Close does not close
// conn.
func NewGRPCClientFromConn(conn grpc.ClientConnInterface, token, identity string) *GRPCClient {
	return &GRPCClient{conn: conn, token: token, identity: identity}
}

func (c *GRPCClient) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *GRPCClient) outgoing(ctx context.Context) context.Context {
	var kv []string
	if c.token != "" {
		kv = append(kv, "authorization", "Bearer "+c.token)
	}
	if c.identity != "" {
		kv = append(kv, "x-trustplay-identity", c.identity)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func invoke[Resp any](ctx context.Context, c *GRPCClient, method string, in any) (*Resp, error) {
	out, err := rpc.Invoke[Resp](c.outgoing(ctx), c.conn, method, in)
	if err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

// --- Rooms ---

func (c *GRPCClient) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*engine.RoomResult, error) {
	in := &rpc.CreateRoomRequest{
		RoomID:        req.RoomID,
		Name:          req.Name,
		TotalPool:     req.TotalPool,
		VoteThreshold: uint32(req.VoteThreshold),
	}
	if req.Deadline != nil {
		in.Deadline = rpc.DeadlineToWire(*req.Deadline)
	}
	return invoke[engine.RoomResult](ctx, c, "CreateRoom", in)
}

func (c *GRPCClient) GetRoom(ctx context.Context, room string) (*model.Room, error) {
	return invoke[model.Room](ctx, c, "GetRoom", &rpc.RoomRequest{Room: room})
}

func (c *GRPCClient) ListRooms(ctx context.Context, req *ListRoomsRequest) (*ListRoomsResponse, error) {
	resp, err := invoke[rpc.ListRoomsResponse](ctx, c, "ListRooms", &rpc.ListRoomsRequest{
		Organizer: req.Organizer,
		Status:    req.Status,
		Limit:     int32(req.Limit),
		Offset:    int32(req.Offset),
	})
	if err != nil {
		return nil, err
	}
	return &ListRoomsResponse{Rooms: resp.Rooms, Total: int(resp.Total)}, nil
}

func (c *GRPCClient) StartRoom(ctx context.Context, room string) (*model.Room, error) {
	return invoke[model.Room](ctx, c, "StartRoom", &rpc.RoomRequest{Room: room})
}

func (c *GRPCClient) CancelRoom(ctx context.Context, room string) (*model.Room, error) {
	return invoke[model.Room](ctx, c, "CancelRoom", &rpc.RoomRequest{Room: room})
}

func (c *GRPCClient) JoinRoom(ctx context.Context, room string) (*model.Participant, error) {
	return invoke[model.Participant](ctx, c, "JoinRoom", &rpc.RoomRequest{Room: room})
}

func (c *GRPCClient) ListParticipants(ctx context.Context, room string) ([]*model.Participant, error) {
	resp, err := invoke[rpc.ParticipantsResponse](ctx, c, "ListParticipants", &rpc.RoomRequest{Room: room})
	if err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

// --- Vault ---

func (c *GRPCClient) Deposit(ctx context.Context, room string, amount uint64) (*engine.DepositResult, error) {
	return invoke[engine.DepositResult](ctx, c, "Deposit", &rpc.DepositRequest{Room: room, Amount: amount})
}

func (c *GRPCClient) GetVault(ctx context.Context, room string) (*engine.VaultView, error) {
	return invoke[engine.VaultView](ctx, c, "GetVault", &rpc.RoomRequest{Room: room})
}

func (c *GRPCClient) ListDeposits(ctx context.Context, room string) ([]*model.Deposit, error) {
	resp, err := invoke[rpc.DepositsResponse](ctx, c, "ListDeposits", &rpc.RoomRequest{Room: room})
	if err != nil {
		return nil, err
	}
	return resp.Deposits, nil
}

// --- Claims ---

func (c *GRPCClient) SubmitClaim(ctx context.Context, req *SubmitClaimRequest) (*model.Claim, error) {
	return invoke[model.Claim](ctx, c, "SubmitClaim", &rpc.SubmitClaimRequest{
		Room:      req.Room,
		ClaimID:   req.ClaimID,
		ProofHash: req.ProofHash,
	})
}

func (c *GRPCClient) GetClaim(ctx context.Context, claim string) (*model.Claim, error) {
	return invoke[model.Claim](ctx, c, "GetClaim", &rpc.ClaimRequest{Claim: claim})
}

func (c *GRPCClient) ListClaims(ctx context.Context, req *ListClaimsRequest) ([]*model.Claim, error) {
	resp, err := invoke[rpc.ClaimsResponse](ctx, c, "ListClaims", &rpc.ListClaimsRequest{
		Room:     req.Room,
		Claimant: req.Claimant,
		Resolved: req.Resolved,
		Limit:    int32(req.Limit),
		Offset:   int32(req.Offset),
	})
	if err != nil {
		return nil, err
	}
	return resp.Claims, nil
}

func (c *GRPCClient) CastVote(ctx context.Context, claim string, accept bool) (*engine.VoteResult, error) {
	return invoke[engine.VoteResult](ctx, c, "CastVote", &rpc.CastVoteRequest{Claim: claim, Accept: accept})
}

func (c *GRPCClient) ListVotes(ctx context.Context, claim string) ([]*model.VoterRecord, error) {
	resp, err := invoke[rpc.VotesResponse](ctx, c, "ListVotes", &rpc.ClaimRequest{Claim: claim})
	if err != nil {
		return nil, err
	}
	return resp.Votes, nil
}

func (c *GRPCClient) ResolveClaim(ctx context.Context, req *ResolveClaimRequest) (*engine.ResolveResult, error) {
	return invoke[engine.ResolveResult](ctx, c, "ResolveClaim", &rpc.ResolveClaimRequest{
		Room:     req.Room,
		Claim:    req.Claim,
		Claimant: req.Claimant,
	})
}

// --- Whitelist ---

func (c *GRPCClient) InitializeWhitelist(ctx context.Context) (*model.Whitelist, error) {
	return invoke[model.Whitelist](ctx, c, "InitializeWhitelist", &rpc.Empty{})
}

func (c *GRPCClient) AddToWhitelist(ctx context.Context, identity string) (*engine.WhitelistResult, error) {
	return invoke[engine.WhitelistResult](ctx, c, "AddToWhitelist", &rpc.MemberRequest{Identity: identity})
}

func (c *GRPCClient) RemoveFromWhitelist(ctx context.Context, identity string) (*engine.WhitelistResult, error) {
	return invoke[engine.WhitelistResult](ctx, c, "RemoveFromWhitelist", &rpc.MemberRequest{Identity: identity})
}

func (c *GRPCClient) GetWhitelist(ctx context.Context) (*model.Whitelist, error) {
	return invoke[model.Whitelist](ctx, c, "GetWhitelist", &rpc.Empty{})
}

// --- Reputation and events ---

func (c *GRPCClient) GetReputation(ctx context.Context, player string) (*model.Reputation, error) {
	return invoke[model.Reputation](ctx, c, "GetReputation", &rpc.PlayerRequest{Player: player})
}

func (c *GRPCClient) Leaderboard(ctx context.Context) ([]*model.Reputation, error) {
	resp, err := invoke[rpc.LeaderboardResponse](ctx, c, "Leaderboard", &rpc.Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Reputations, nil
}

func (c *GRPCClient) GetEvents(ctx context.Context, ref string) ([]*model.Event, error) {
	resp, err := invoke[rpc.EventsResponse](ctx, c, "GetEvents", &rpc.EventsRequest{Ref: ref})
	if err != nil {
		return nil, err
	}
	out := make([]*model.Event, 0, len(resp.Events))
	for _, e := range resp.Events {
		out = append(out, rpc.EventFromWire(e))
	}
	return out, nil
}

// Health asks the standard gRPC health service about the Trustplay service.
func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(c.outgoing(ctx), &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return "", fromStatus(err)
	}
	if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
		return "ok", nil
	}
	return strings.ToLower(resp.GetStatus().String()), nil
}
