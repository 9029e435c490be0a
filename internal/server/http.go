package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/amount"
	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /v1/rooms", s.handleListRooms)
	mux.HandleFunc("GET /v1/rooms/{room}", s.handleGetRoom)
	mux.HandleFunc("POST /v1/rooms/{room}/start", s.handleStartRoom)
	mux.HandleFunc("POST /v1/rooms/{room}/cancel", s.handleCancelRoom)
	mux.HandleFunc("POST /v1/rooms/{room}/participants", s.handleJoinRoom)
	mux.HandleFunc("GET /v1/rooms/{room}/participants", s.handleListParticipants)
	mux.HandleFunc("POST /v1/rooms/{room}/deposits", s.handleDeposit)
	mux.HandleFunc("GET /v1/rooms/{room}/deposits", s.handleListDeposits)
	mux.HandleFunc("GET /v1/rooms/{room}/vault", s.handleGetVault)
	mux.HandleFunc("POST /v1/rooms/{room}/claims", s.handleSubmitClaim)
	mux.HandleFunc("GET /v1/rooms/{room}/claims", s.handleListRoomClaims)
	mux.HandleFunc("GET /v1/claims", s.handleListClaims)
	mux.HandleFunc("GET /v1/claims/{claim}", s.handleGetClaim)
	mux.HandleFunc("POST /v1/claims/{claim}/votes", s.handleCastVote)
	mux.HandleFunc("GET /v1/claims/{claim}/votes", s.handleListVotes)
	mux.HandleFunc("POST /v1/claims/{claim}/resolve", s.handleResolveClaim)
	mux.HandleFunc("POST /v1/whitelist", s.handleInitializeWhitelist)
	mux.HandleFunc("GET /v1/whitelist", s.handleGetWhitelist)
	mux.HandleFunc("POST /v1/whitelist/members", s.handleAddToWhitelist)
	mux.HandleFunc("DELETE /v1/whitelist/members/{identity}", s.handleRemoveFromWhitelist)
	mux.HandleFunc("GET /v1/reputation", s.handleLeaderboard)
	mux.HandleFunc("GET /v1/reputation/{player}", s.handleGetReputation)
	mux.HandleFunc("GET /v1/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	var h http.Handler = IdentityMiddleware(mux)
	h = AuthMiddleware(authToken, h)
	h = LoggingMiddleware(s.logger, h)
	return RequestIDMiddleware(h)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Rooms ---

type createRoomInput struct {
	RoomID        string    `json:"room_id"`
	Name          string    `json:"name"`
	TotalPool     uint64    `json:"total_pool"`
	Deadline      time.Time `json:"deadline"`
	VoteThreshold uint8     `json:"vote_threshold"`
}

// handleCreateRoom handles POST /v1/rooms.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var in createRoomInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := s.createRoom(r.Context(), actor, engine.CreateRoomRequest{
		RoomID:        in.RoomID,
		Name:          in.Name,
		TotalPool:     in.TotalPool,
		Deadline:      in.Deadline,
		VoteThreshold: in.VoteThreshold,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleListRooms handles GET /v1/rooms.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.RoomFilter{
		Organizer: q.Get("organizer"),
		Limit:     queryInt(q.Get("limit")),
		Offset:    queryInt(q.Get("offset")),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.RoomStatus(st))
		}
	}

	rooms, total, err := s.engine.ListRooms(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if rooms == nil {
		rooms = []*model.Room{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": rooms,
		"total": total,
	})
}

// handleGetRoom handles GET /v1/rooms/{room}.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.engine.GetRoom(r.Context(), r.PathValue("room"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleStartRoom handles POST /v1/rooms/{room}/start.
func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	room, err := s.startRoom(r.Context(), actor, r.PathValue("room"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleCancelRoom handles POST /v1/rooms/{room}/cancel.
func (s *Server) handleCancelRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	room, err := s.cancelRoom(r.Context(), actor, r.PathValue("room"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleJoinRoom handles POST /v1/rooms/{room}/participants.
func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	p, err := s.joinRoom(r.Context(), actor, r.PathValue("room"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleListParticipants handles GET /v1/rooms/{room}/participants.
func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := s.engine.ListParticipants(r.Context(), r.PathValue("room"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if ps == nil {
		ps = []*model.Participant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": ps})
}

// --- Vault ---

// depositInput takes either base units or a whole-token decimal string.
type depositInput struct {
	Amount uint64 `json:"amount"`
	Tokens string `json:"tokens"`
}

// handleDeposit handles POST /v1/rooms/{room}/deposits.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var in depositInput
	if !decodeBody(w, r, &in) {
		return
	}
	units := in.Amount
	if in.Tokens != "" {
		if in.Amount != 0 {
			writeError(w, http.StatusBadRequest, "set amount or tokens, not both")
			return
		}
		parsed, err := amount.Parse(in.Tokens)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		units = parsed
	}

	res, err := s.deposit(r.Context(), actor, r.PathValue("room"), units)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleListDeposits handles GET /v1/rooms/{room}/deposits.
func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	ds, err := s.engine.ListDeposits(r.Context(), r.PathValue("room"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if ds == nil {
		ds = []*model.Deposit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deposits": ds})
}

// handleGetVault handles GET /v1/rooms/{room}/vault.
func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.GetVault(r.Context(), r.PathValue("room"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// --- Claims ---

type submitClaimInput struct {
	ClaimID   string `json:"claim_id"`
	ProofHash string `json:"proof_hash"`
}

// handleSubmitClaim handles POST /v1/rooms/{room}/claims.
func (s *Server) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var in submitClaimInput
	if !decodeBody(w, r, &in) {
		return
	}
	c, err := s.submitClaim(r.Context(), actor, engine.SubmitClaimRequest{
		Room:      r.PathValue("room"),
		ClaimID:   in.ClaimID,
		ProofHash: in.ProofHash,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleListRoomClaims handles GET /v1/rooms/{room}/claims.
func (s *Server) handleListRoomClaims(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	if _, err := s.engine.GetRoom(r.Context(), room); err != nil {
		writeEngineError(w, err)
		return
	}
	filter := claimFilter(r)
	filter.Room = room
	s.writeClaims(w, r, filter)
}

// handleListClaims handles GET /v1/claims.
func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	filter := claimFilter(r)
	filter.Room = r.URL.Query().Get("room")
	s.writeClaims(w, r, filter)
}

func claimFilter(r *http.Request) model.ClaimFilter {
	q := r.URL.Query()
	filter := model.ClaimFilter{
		Claimant: q.Get("claimant"),
		Limit:    queryInt(q.Get("limit")),
		Offset:   queryInt(q.Get("offset")),
	}
	if v := q.Get("resolved"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Resolved = &b
		}
	}
	return filter
}

func (s *Server) writeClaims(w http.ResponseWriter, r *http.Request, filter model.ClaimFilter) {
	claims, err := s.engine.ListClaims(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if claims == nil {
		claims = []*model.Claim{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": claims})
}

// handleGetClaim handles GET /v1/claims/{claim}.
func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	c, err := s.engine.GetClaim(r.Context(), r.PathValue("claim"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type castVoteInput struct {
	Accept *bool `json:"accept"`
}

// handleCastVote handles POST /v1/claims/{claim}/votes.
func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var in castVoteInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Accept == nil {
		writeError(w, http.StatusBadRequest, "accept is required")
		return
	}
	res, err := s.castVote(r.Context(), actor, r.PathValue("claim"), *in.Accept)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleListVotes handles GET /v1/claims/{claim}/votes.
func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	votes, err := s.engine.ListVotes(r.Context(), r.PathValue("claim"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if votes == nil {
		votes = []*model.VoterRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes})
}

type resolveInput struct {
	Room     string `json:"room"`
	Claimant string `json:"claimant"`
}

// handleResolveClaim handles POST /v1/claims/{claim}/resolve. The room
// defaults to the claim's own room.
func (s *Server) handleResolveClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var in resolveInput
	if r.ContentLength != 0 && !decodeBody(w, r, &in) {
		return
	}
	claim := r.PathValue("claim")
	if in.Room == "" {
		c, err := s.engine.GetClaim(r.Context(), claim)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		in.Room = c.Room
	}
	res, err := s.resolveClaim(r.Context(), actor, engine.ResolveRequest{
		Room:     in.Room,
		Claim:    claim,
		Claimant: in.Claimant,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Whitelist ---

// handleInitializeWhitelist handles POST /v1/whitelist.
func (s *Server) handleInitializeWhitelist(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	wl, err := s.initializeWhitelist(r.Context(), actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wl)
}

// handleGetWhitelist handles GET /v1/whitelist.
func (s *Server) handleGetWhitelist(w http.ResponseWriter, r *http.Request) {
	wl, err := s.engine.GetWhitelist(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

type memberInput struct {
	Identity string `json:"identity"`
}

// handleAddToWhitelist handles POST /v1/whitelist/members.
func (s *Server) handleAddToWhitelist(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var in memberInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := s.addToWhitelist(r.Context(), actor, in.Identity)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRemoveFromWhitelist handles DELETE /v1/whitelist/members/{identity}.
func (s *Server) handleRemoveFromWhitelist(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	res, err := s.removeFromWhitelist(r.Context(), actor, r.PathValue("identity"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Reputation and events ---

// handleGetReputation handles GET /v1/reputation/{player}.
func (s *Server) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	rep, err := s.engine.GetReputation(r.Context(), r.PathValue("player"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleLeaderboard handles GET /v1/reputation.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	reps, err := s.engine.Leaderboard(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if reps == nil {
		reps = []*model.Reputation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reputations": reps})
}

// handleGetEvents handles GET /v1/events?ref=.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "ref is required")
		return
	}
	evts, err := s.store.GetEvents(r.Context(), ref)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// decodeBody decodes a JSON body into v or writes a 400.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// queryInt parses a non-negative integer query value, ignoring junk.
func queryInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}
