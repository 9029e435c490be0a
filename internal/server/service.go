package server

import (
	"context"

	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/events"
	"github.com/deepesh-sr/Trustplay/internal/model"
)

// The methods below are the mutating operations shared by both
// transports. Each runs the engine operation and, once it has committed,
// emits the matching events. actor is the authenticated caller identity.

func (s *Server) createRoom(ctx context.Context, actor string, req engine.CreateRoomRequest) (*engine.RoomResult, error) {
	req.Organizer = actor
	res, err := s.engine.CreateRoom(ctx, req)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicRoomCreated, res.Room.Address, actor, events.RoomCreated{Room: res.Room, Vault: res.Vault})
	return res, nil
}

func (s *Server) joinRoom(ctx context.Context, actor, room string) (*model.Participant, error) {
	p, err := s.engine.JoinRoom(ctx, room, actor)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicRoomJoined, room, actor, events.RoomJoined{Participant: p})
	return p, nil
}

func (s *Server) startRoom(ctx context.Context, actor, room string) (*model.Room, error) {
	r, err := s.engine.StartRoom(ctx, actor, room)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicRoomStarted, r.Address, actor, events.RoomStatusChanged{Room: r, By: actor})
	return r, nil
}

func (s *Server) cancelRoom(ctx context.Context, actor, room string) (*model.Room, error) {
	r, err := s.engine.CancelRoom(ctx, actor, room)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicRoomCancelled, r.Address, actor, events.RoomStatusChanged{Room: r, By: actor})
	return r, nil
}

func (s *Server) deposit(ctx context.Context, actor, room string, amount uint64) (*engine.DepositResult, error) {
	res, err := s.engine.Deposit(ctx, room, actor, amount)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicVaultDeposited, res.Deposit.Room, actor, events.VaultDeposited{
		Deposit: res.Deposit,
		Balance: res.Vault.Balance,
	})
	return res, nil
}

func (s *Server) submitClaim(ctx context.Context, actor string, req engine.SubmitClaimRequest) (*model.Claim, error) {
	req.Claimant = actor
	c, err := s.engine.SubmitClaim(ctx, req)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicClaimSubmitted, c.Address, actor, events.ClaimSubmitted{Claim: c})
	return c, nil
}

func (s *Server) castVote(ctx context.Context, actor, claim string, accept bool) (*engine.VoteResult, error) {
	res, err := s.engine.CastVote(ctx, claim, actor, accept)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicClaimVoted, claim, actor, events.ClaimVoted{Claim: res.Claim, Vote: res.Vote})
	return res, nil
}

func (s *Server) resolveClaim(ctx context.Context, actor string, req engine.ResolveRequest) (*engine.ResolveResult, error) {
	res, err := s.engine.ResolveClaim(ctx, req)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicClaimResolved, res.Claim.Address, actor, events.ClaimResolved{Claim: res.Claim, Room: res.Room})
	if res.Reputation != nil {
		s.recordAndPublish(ctx, events.TopicReputationUpdated, res.Reputation.Player, actor, events.ReputationUpdated{Reputation: res.Reputation})
	}
	if res.Claim.Accepted && res.Room.Status == model.RoomResolved {
		s.recordAndPublish(ctx, events.TopicRoomResolved, res.Room.Address, actor, events.RoomStatusChanged{Room: res.Room, By: actor})
	}
	return res, nil
}

func (s *Server) initializeWhitelist(ctx context.Context, actor string) (*model.Whitelist, error) {
	w, err := s.engine.InitializeWhitelist(ctx, actor)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicWhitelistInitialized, w.Address, actor, events.WhitelistChanged{Admin: w.Admin})
	return w, nil
}

func (s *Server) addToWhitelist(ctx context.Context, actor, identity string) (*engine.WhitelistResult, error) {
	res, err := s.engine.AddToWhitelist(ctx, actor, identity)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		s.recordAndPublish(ctx, events.TopicWhitelistAdded, res.Whitelist.Address, actor, events.WhitelistChanged{
			Admin:    res.Whitelist.Admin,
			Identity: identity,
			Members:  len(res.Whitelist.Members),
		})
	}
	return res, nil
}

func (s *Server) removeFromWhitelist(ctx context.Context, actor, identity string) (*engine.WhitelistResult, error) {
	res, err := s.engine.RemoveFromWhitelist(ctx, actor, identity)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		s.recordAndPublish(ctx, events.TopicWhitelistRemoved, res.Whitelist.Address, actor, events.WhitelistChanged{
			Admin:    res.Whitelist.Admin,
			Identity: identity,
			Members:  len(res.Whitelist.Members),
		})
	}
	return res, nil
}
