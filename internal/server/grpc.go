package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/rpc"
)

// NewGRPCServer creates a gRPC server with the standard interceptors and
// registers the Trustplay service, the health service and reflection.
func (s *Server) NewGRPCServer(authToken string, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			RequestIDInterceptor,
			LoggingInterceptor(s.logger),
			AuthInterceptor(authToken),
			IdentityInterceptor,
		),
	}, opts...)
	srv := grpc.NewServer(opts...)

	rpc.RegisterTrustplayServer(srv, &grpcService{s: s})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv
}

// grpcService adapts Server to rpc.TrustplayServer. Every error leaving it
// is a status error.
type grpcService struct {
	s *Server
}

var _ rpc.TrustplayServer = (*grpcService)(nil)

func reply[T any](v T, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, grpcStatusFor(err)
	}
	return v, nil
}

// --- Rooms ---

func (g *grpcService) CreateRoom(ctx context.Context, req *rpc.CreateRoomRequest) (*engine.RoomResult, error) {
	threshold := req.VoteThreshold
	if threshold > 255 {
		threshold = 255 // fails range validation in the engine
	}
	return reply(g.s.createRoom(ctx, IdentityFrom(ctx), engine.CreateRoomRequest{
		RoomID:        req.RoomID,
		Name:          req.Name,
		TotalPool:     req.TotalPool,
		Deadline:      rpc.DeadlineFromWire(req.Deadline),
		VoteThreshold: uint8(threshold),
	}))
}

func (g *grpcService) JoinRoom(ctx context.Context, req *rpc.RoomRequest) (*model.Participant, error) {
	return reply(g.s.joinRoom(ctx, IdentityFrom(ctx), req.Room))
}

func (g *grpcService) StartRoom(ctx context.Context, req *rpc.RoomRequest) (*model.Room, error) {
	return reply(g.s.startRoom(ctx, IdentityFrom(ctx), req.Room))
}

func (g *grpcService) CancelRoom(ctx context.Context, req *rpc.RoomRequest) (*model.Room, error) {
	return reply(g.s.cancelRoom(ctx, IdentityFrom(ctx), req.Room))
}

func (g *grpcService) GetRoom(ctx context.Context, req *rpc.RoomRequest) (*model.Room, error) {
	return reply(g.s.engine.GetRoom(ctx, req.Room))
}

func (g *grpcService) ListRooms(ctx context.Context, req *rpc.ListRoomsRequest) (*rpc.ListRoomsResponse, error) {
	filter := model.RoomFilter{
		Organizer: req.Organizer,
		Limit:     int(req.Limit),
		Offset:    int(req.Offset),
	}
	for _, st := range req.Status {
		filter.Status = append(filter.Status, model.RoomStatus(st))
	}
	rooms, total, err := g.s.engine.ListRooms(ctx, filter)
	if err != nil {
		return nil, grpcStatusFor(err)
	}
	return &rpc.ListRoomsResponse{Rooms: rooms, Total: int32(total)}, nil
}

func (g *grpcService) ListParticipants(ctx context.Context, req *rpc.RoomRequest) (*rpc.ParticipantsResponse, error) {
	ps, err := g.s.engine.ListParticipants(ctx, req.Room)
	if err != nil {
		return nil, grpcStatusFor(err)
	}
	return &rpc.ParticipantsResponse{Participants: ps}, nil
}

// --- Vault ---

func (g *grpcService) Deposit(ctx context.Context, req *rpc.DepositRequest) (*engine.DepositResult, error) {
	return reply(g.s.deposit(ctx, IdentityFrom(ctx), req.Room, req.Amount))
}

func (g *grpcService) GetVault(ctx context.Context, req *rpc.RoomRequest) (*engine.VaultView, error) {
	return reply(g.s.engine.GetVault(ctx, req.Room))
}

func (g *grpcService) ListDeposits(ctx context.Context, req *rpc.RoomRequest) (*rpc.DepositsResponse, error) {
	ds, err := g.s.engine.ListDeposits(ctx, req.Room)
	if err != nil {
		return nil, grpcStatusFor(err)
	}
	return &rpc.DepositsResponse{Deposits: ds}, nil
}

// --- Claims ---

func (g *grpcService) SubmitClaim(ctx context.Context, req *rpc.SubmitClaimRequest) (*model.Claim, error) {
	return reply(g.s.submitClaim(ctx, IdentityFrom(ctx), engine.SubmitClaimRequest{
		Room:      req.Room,
		ClaimID:   req.ClaimID,
		ProofHash: req.ProofHash,
	}))
}

func (g *grpcService) GetClaim(ctx context.Context, req *rpc.ClaimRequest) (*model.Claim, error) {
	return reply(g.s.engine.GetClaim(ctx, req.Claim))
}

func (g *grpcService) ListClaims(ctx context.Context, req *rpc.ListClaimsRequest) (*rpc.ClaimsResponse, error) {
	claims, err := g.s.engine.ListClaims(ctx, model.ClaimFilter{
		Room:     req.Room,
		Claimant: req.Claimant,
		Resolved: req.Resolved,
		Limit:    int(req.Limit),
		Offset:   int(req.Offset),
	})
	if err != nil {
		return nil, grpcStatusFor(err)
	}
	return &rpc.ClaimsResponse{Claims: claims}, nil
}

func (g *grpcService) CastVote(ctx context.Context, req *rpc.CastVoteRequest) (*engine.VoteResult, error) {
	return reply(g.s.castVote(ctx, IdentityFrom(ctx), req.Claim, req.Accept))
}

func (g *grpcService) ListVotes(ctx context.Context, req *rpc.ClaimRequest) (*rpc.VotesResponse, error) {
	votes, err := g.s.engine.ListVotes(ctx, req.Claim)
	if err != nil {
		return nil, grpcStatusFor(err)
	}
	return &rpc.VotesResponse{Votes: votes}, nil
}

func (g *grpcService) ResolveClaim(ctx context.Context, req *rpc.ResolveClaimRequest) (*engine.ResolveResult, error) {
	room := req.Room
	if room == "" {
		c, err := g.s.engine.GetClaim(ctx, req.Claim)
		if err != nil {
			return nil, grpcStatusFor(err)
		}
		room = c.Room
	}
	return reply(g.s.resolveClaim(ctx, IdentityFrom(ctx), engine.ResolveRequest{
		Room:     room,
		Claim:    req.Claim,
		Claimant: req.Claimant,
	}))
}

// --- Whitelist ---

func (g *grpcService) InitializeWhitelist(ctx context.Context, _ *rpc.Empty) (*model.Whitelist, error) {
	return reply(g.s.initializeWhitelist(ctx, IdentityFrom(ctx)))
}

func (g *grpcService) AddToWhitelist(ctx context.Context, req *rpc.MemberRequest) (*engine.WhitelistResult, error) {
	return reply(g.s.addToWhitelist(ctx, IdentityFrom(ctx), req.Identity))
}

func (g *grpcService) RemoveFromWhitelist(ctx context.Context, req *rpc.MemberRequest) (*engine.WhitelistResult, error) {
	return reply(g.s.removeFromWhitelist(ctx, IdentityFrom(ctx), req.Identity))
}

func (g *grpcService) GetWhitelist(ctx context.Context, _ *rpc.Empty) (*model.Whitelist, error) {
	return reply(g.s.engine.GetWhitelist(ctx))
}

// --- Reputation and events ---

func (g *grpcService) GetReputation(ctx context.Context, req *rpc.PlayerRequest) (*model.Reputation, error) {
	return reply(g.s.engine.GetReputation(ctx, req.Player))
}

func (g *grpcService) Leaderboard(ctx context.Context, _ *rpc.Empty) (*rpc.LeaderboardResponse, error) {
	reps, err := g.s.engine.Leaderboard(ctx)
	if err != nil {
		return nil, grpcStatusFor(err)
	}
	return &rpc.LeaderboardResponse{Reputations: reps}, nil
}

func (g *grpcService) GetEvents(ctx context.Context, req *rpc.EventsRequest) (*rpc.EventsResponse, error) {
	evts, err := g.s.store.GetEvents(ctx, req.Ref)
	if err != nil {
		return nil, grpcStatusFor(err)
	}
	out := &rpc.EventsResponse{Events: make([]*rpc.Event, 0, len(evts))}
	for _, e := range evts {
		out.Events = append(out.Events, rpc.EventToWire(e))
	}
	return out, nil
}
