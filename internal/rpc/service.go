package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "trustplay.v1.Trustplay"

// FullMethod returns the "/service/method" path for method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// TrustplayServer is implemented by the service behind ServiceDesc.
type TrustplayServer interface {
	CreateRoom(context.Context, *CreateRoomRequest) (*engine.RoomResult, error)
	JoinRoom(context.Context, *RoomRequest) (*model.Participant, error)
	StartRoom(context.Context, *RoomRequest) (*model.Room, error)
	CancelRoom(context.Context, *RoomRequest) (*model.Room, error)
	GetRoom(context.Context, *RoomRequest) (*model.Room, error)
	ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error)
	ListParticipants(context.Context, *RoomRequest) (*ParticipantsResponse, error)

	Deposit(context.Context, *DepositRequest) (*engine.DepositResult, error)
	GetVault(context.Context, *RoomRequest) (*engine.VaultView, error)
	ListDeposits(context.Context, *RoomRequest) (*DepositsResponse, error)

	SubmitClaim(context.Context, *SubmitClaimRequest) (*model.Claim, error)
	GetClaim(context.Context, *ClaimRequest) (*model.Claim, error)
	ListClaims(context.Context, *ListClaimsRequest) (*ClaimsResponse, error)
	CastVote(context.Context, *CastVoteRequest) (*engine.VoteResult, error)
	ListVotes(context.Context, *ClaimRequest) (*VotesResponse, error)
	ResolveClaim(context.Context, *ResolveClaimRequest) (*engine.ResolveResult, error)

	InitializeWhitelist(context.Context, *Empty) (*model.Whitelist, error)
	AddToWhitelist(context.Context, *MemberRequest) (*engine.WhitelistResult, error)
	RemoveFromWhitelist(context.Context, *MemberRequest) (*engine.WhitelistResult, error)
	GetWhitelist(context.Context, *Empty) (*model.Whitelist, error)

	GetReputation(context.Context, *PlayerRequest) (*model.Reputation, error)
	Leaderboard(context.Context, *Empty) (*LeaderboardResponse, error)
	GetEvents(context.Context, *EventsRequest) (*EventsResponse, error)
}

// Mutating reports whether method changes ledger state. Mutating calls
// require a caller identity.
func Mutating(method string) bool {
	switch method {
	case "CreateRoom", "JoinRoom", "StartRoom", "CancelRoom", "Deposit",
		"SubmitClaim", "CastVote", "ResolveClaim",
		"InitializeWhitelist", "AddToWhitelist", "RemoveFromWhitelist":
		return true
	}
	return false
}

func unary[Req, Resp any](name string, call func(TrustplayServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TrustplayServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TrustplayServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Trustplay service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrustplayServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateRoom", TrustplayServer.CreateRoom),
		unary("JoinRoom", TrustplayServer.JoinRoom),
		unary("StartRoom", TrustplayServer.StartRoom),
		unary("CancelRoom", TrustplayServer.CancelRoom),
		unary("GetRoom", TrustplayServer.GetRoom),
		unary("ListRooms", TrustplayServer.ListRooms),
		unary("ListParticipants", TrustplayServer.ListParticipants),
		unary("Deposit", TrustplayServer.Deposit),
		unary("GetVault", TrustplayServer.GetVault),
		unary("ListDeposits", TrustplayServer.ListDeposits),
		unary("SubmitClaim", TrustplayServer.SubmitClaim),
		unary("GetClaim", TrustplayServer.GetClaim),
		unary("ListClaims", TrustplayServer.ListClaims),
		unary("CastVote", TrustplayServer.CastVote),
		unary("ListVotes", TrustplayServer.ListVotes),
		unary("ResolveClaim", TrustplayServer.ResolveClaim),
		unary("InitializeWhitelist", TrustplayServer.InitializeWhitelist),
		unary("AddToWhitelist", TrustplayServer.AddToWhitelist),
		unary("RemoveFromWhitelist", TrustplayServer.RemoveFromWhitelist),
		unary("GetWhitelist", TrustplayServer.GetWhitelist),
		unary("GetReputation", TrustplayServer.GetReputation),
		unary("Leaderboard", TrustplayServer.Leaderboard),
		unary("GetEvents", TrustplayServer.GetEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trustplay/v1/trustplay",
}

// RegisterTrustplayServer registers srv on s.
func RegisterTrustplayServer(s grpc.ServiceRegistrar, srv TrustplayServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Invoke calls method on conn with the JSON codec.
func Invoke[Resp any](ctx context.Context, conn grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	if err := conn.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
