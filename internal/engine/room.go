package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/idgen"
	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// Generated id prefixes.
const (
	RoomIDPrefix  = "rm"
	ClaimIDPrefix = "cl"
)

// CreateRoomRequest describes a new room. An empty RoomID is generated.
type CreateRoomRequest struct {
	Organizer     string    `json:"organizer"`
	RoomID        string    `json:"room_id,omitempty"`
	Name          string    `json:"name"`
	TotalPool     uint64    `json:"total_pool"`
	Deadline      time.Time `json:"deadline,omitzero"`
	VoteThreshold uint8     `json:"vote_threshold"`
}

// RoomResult is a room together with its vault slot.
type RoomResult struct {
	Room  *model.Room    `json:"room"`
	Vault *model.Account `json:"vault"`
}

// CreateRoom creates a room in state open and its vault, with the vault's
// existence reserve paid by the organizer.
func (e *Engine) CreateRoom(ctx context.Context, req CreateRoomRequest) (*RoomResult, error) {
	roomID := req.RoomID
	if roomID == "" {
		id, err := idgen.New(RoomIDPrefix)
		if err != nil {
			return nil, err
		}
		roomID = id
	}

	now := e.now()
	room := &model.Room{
		Organizer:     req.Organizer,
		RoomID:        roomID,
		Name:          req.Name,
		TotalPool:     req.TotalPool,
		Status:        model.RoomOpen,
		CreatedAt:     now,
		DeadlineAt:    req.Deadline.UTC(),
		VoteThreshold: req.VoteThreshold,
	}
	if err := model.ValidateRoom(room); err != nil {
		return nil, err
	}
	room.Address, room.Salt = model.RoomAddress(room.Organizer, room.RoomID)
	vaultAddr, vaultSalt := model.VaultAddress(room.Address)
	room.Vault = vaultAddr

	var vault *model.Account
	err := e.mutate(ctx, "create_room", func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateRoom(ctx, room); err != nil {
			return err
		}
		if err := tx.CreateAccount(ctx, &model.Account{
			Address: vaultAddr,
			Owner:   room.Address,
			Salt:    vaultSalt,
		}); err != nil {
			return fmt.Errorf("create vault: %w", err)
		}
		if err := tx.ReserveFor(ctx, vaultAddr, room.Organizer, 0); err != nil {
			return fmt.Errorf("fund vault reserve: %w", err)
		}
		v, err := tx.GetAccount(ctx, vaultAddr)
		if err != nil {
			return err
		}
		vault = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("room created", "room", room.Address, "room_id", room.RoomID, "organizer", room.Organizer)
	return &RoomResult{Room: room, Vault: vault}, nil
}

// JoinRoom records player as a participant of room.
func (e *Engine) JoinRoom(ctx context.Context, room, player string) (*model.Participant, error) {
	if err := model.ValidateIdentity("player", player); err != nil {
		return nil, err
	}
	p := &model.Participant{Room: room, Player: player, JoinedAt: e.now()}
	err := e.mutate(ctx, "join_room", func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetRoom(ctx, room); err != nil {
			return err
		}
		return tx.AddParticipant(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// StartRoom moves an open room to in_progress.
func (e *Engine) StartRoom(ctx context.Context, caller, room string) (*model.Room, error) {
	return e.transition(ctx, "start_room", caller, room, model.RoomInProgress)
}

// CancelRoom moves an open or in-progress room to cancelled. No funds move;
// the vault keeps its balance.
func (e *Engine) CancelRoom(ctx context.Context, caller, room string) (*model.Room, error) {
	return e.transition(ctx, "cancel_room", caller, room, model.RoomCancelled)
}

func (e *Engine) transition(ctx context.Context, op, caller, address string, next model.RoomStatus) (*model.Room, error) {
	var room *model.Room
	err := e.mutate(ctx, op, func(ctx context.Context, tx store.Store) error {
		r, err := tx.GetRoom(ctx, address)
		if err != nil {
			return err
		}
		if err := requireOrganizer(caller, r); err != nil {
			return err
		}
		if !r.Status.CanTransition(next) {
			if r.Status.IsTerminal() {
				return fmt.Errorf("room %s is %s: %w", r.RoomID, r.Status, model.ErrRoomClosed)
			}
			return &model.ValidationError{Errors: []model.FieldError{{
				Field:   "status",
				Message: fmt.Sprintf("cannot move from %s to %s", r.Status, next),
			}}}
		}
		if err := tx.UpdateRoomStatus(ctx, r.Address, next); err != nil {
			return err
		}
		r.Status = next
		room = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("room status changed", "room", room.Address, "status", room.Status, "by", caller)
	return room, nil
}

// GetRoom returns the room at address.
func (e *Engine) GetRoom(ctx context.Context, address string) (*model.Room, error) {
	ctx, span := e.view(ctx, "get_room")
	defer span.End()
	return e.store.GetRoom(ctx, address)
}

// LookupRoom returns the room created by organizer under roomID.
func (e *Engine) LookupRoom(ctx context.Context, organizer, roomID string) (*model.Room, error) {
	addr, _ := model.RoomAddress(organizer, roomID)
	return e.GetRoom(ctx, addr)
}

// ListRooms returns a page of rooms and the total match count.
func (e *Engine) ListRooms(ctx context.Context, filter model.RoomFilter) ([]*model.Room, int, error) {
	ctx, span := e.view(ctx, "list_rooms")
	defer span.End()
	return e.store.ListRooms(ctx, filter)
}

// ListParticipants returns the participants of room in join order.
func (e *Engine) ListParticipants(ctx context.Context, room string) ([]*model.Participant, error) {
	ctx, span := e.view(ctx, "list_participants")
	defer span.End()
	if _, err := e.store.GetRoom(ctx, room); err != nil {
		return nil, err
	}
	return e.store.ListParticipants(ctx, room)
}

// isNotFound is shorthand for lazily-created records.
func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
