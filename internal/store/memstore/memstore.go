// Package memstore implements store.Store in process memory. Transactions
// run against a copy of the state that replaces the original only on
// success, so rollback behaviour matches the SQL stores. Failures can be
// injected per operation for tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu     sync.Mutex
	txMu   *sync.Mutex
	st     *state
	faults *faults
	inTx   bool
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		txMu:   &sync.Mutex{},
		st:     newState(),
		faults: &faults{m: make(map[string]error)},
	}
}

// FailNext makes the next call to op (a Store method name such as
// "Transfer") return err.
func (s *Store) FailNext(op string, err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.m[op] = err
}

type faults struct {
	mu sync.Mutex
	m  map[string]error
}

func (f *faults) take(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err, ok := f.m[op]
	if ok {
		delete(f.m, op)
	}
	return err
}

type state struct {
	rooms        map[string]*model.Room
	participants map[string]*model.Participant
	claims       map[string]*model.Claim
	votes        map[string]*model.VoterRecord
	whitelist    *model.Whitelist
	reputations  map[string]*model.Reputation
	accounts     map[string]*model.Account
	deposits     []*model.Deposit
	events       []*model.Event
	nextID       int64
}

func newState() *state {
	return &state{
		rooms:        make(map[string]*model.Room),
		participants: make(map[string]*model.Participant),
		claims:       make(map[string]*model.Claim),
		votes:        make(map[string]*model.VoterRecord),
		reputations:  make(map[string]*model.Reputation),
		accounts:     make(map[string]*model.Account),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.rooms {
		c.rooms[k] = ptr(*v)
	}
	for k, v := range st.participants {
		c.participants[k] = ptr(*v)
	}
	for k, v := range st.claims {
		c.claims[k] = cloneClaim(v)
	}
	for k, v := range st.votes {
		c.votes[k] = ptr(*v)
	}
	if st.whitelist != nil {
		c.whitelist = cloneWhitelist(st.whitelist)
	}
	for k, v := range st.reputations {
		c.reputations[k] = ptr(*v)
	}
	for k, v := range st.accounts {
		c.accounts[k] = ptr(*v)
	}
	for _, d := range st.deposits {
		c.deposits = append(c.deposits, ptr(*d))
	}
	for _, e := range st.events {
		c.events = append(c.events, ptr(*e))
	}
	c.nextID = st.nextID
	return c
}

func ptr[T any](v T) *T { return &v }

func cloneClaim(c *model.Claim) *model.Claim {
	out := *c
	if c.ResolvedAt != nil {
		out.ResolvedAt = ptr(*c.ResolvedAt)
	}
	return &out
}

func cloneWhitelist(w *model.Whitelist) *model.Whitelist {
	out := *w
	out.Members = slices.Clone(w.Members)
	return &out
}

// do runs fn under the store lock after consulting injected faults. Calls
// outside a transaction wait for any running transaction so its commit
// cannot overwrite them.
func (s *Store) do(op string, fn func(st *state) error) error {
	if err := s.faults.take(op); err != nil {
		return err
	}
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func pairKey(a, b string) string { return a + "/" + b }

// --- Rooms ---

func (s *Store) CreateRoom(_ context.Context, room *model.Room) error {
	return s.do("CreateRoom", func(st *state) error {
		if _, ok := st.rooms[room.Address]; ok {
			return fmt.Errorf("room %s: %w", room.RoomID, model.ErrDuplicate)
		}
		st.rooms[room.Address] = ptr(*room)
		return nil
	})
}

func (s *Store) GetRoom(_ context.Context, address string) (*model.Room, error) {
	var out *model.Room
	err := s.do("GetRoom", func(st *state) error {
		r, ok := st.rooms[address]
		if !ok {
			return model.ErrNotFound
		}
		out = ptr(*r)
		return nil
	})
	return out, err
}

func (s *Store) ListRooms(_ context.Context, filter model.RoomFilter) ([]*model.Room, int, error) {
	var out []*model.Room
	err := s.do("ListRooms", func(st *state) error {
		for _, r := range st.rooms {
			if filter.Organizer != "" && r.Organizer != filter.Organizer {
				continue
			}
			if len(filter.Status) > 0 && !slices.Contains(filter.Status, r.Status) {
				continue
			}
			out = append(out, ptr(*r))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Address < out[j].Address
	})
	total := len(out)
	return page(out, filter.Offset, filter.Limit), total, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *Store) UpdateRoomStatus(_ context.Context, address string, status model.RoomStatus) error {
	return s.do("UpdateRoomStatus", func(st *state) error {
		r, ok := st.rooms[address]
		if !ok {
			return model.ErrNotFound
		}
		r.Status = status
		return nil
	})
}

// --- Participants ---

func (s *Store) AddParticipant(_ context.Context, p *model.Participant) error {
	return s.do("AddParticipant", func(st *state) error {
		key := pairKey(p.Room, p.Player)
		if _, ok := st.participants[key]; ok {
			return fmt.Errorf("participant %s: %w", p.Player, model.ErrDuplicate)
		}
		st.participants[key] = ptr(*p)
		return nil
	})
}

func (s *Store) ListParticipants(_ context.Context, room string) ([]*model.Participant, error) {
	var out []*model.Participant
	err := s.do("ListParticipants", func(st *state) error {
		for _, p := range st.participants {
			if p.Room == room {
				out = append(out, ptr(*p))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, err
}

// --- Claims ---

func (s *Store) CreateClaim(_ context.Context, claim *model.Claim) error {
	return s.do("CreateClaim", func(st *state) error {
		if _, ok := st.claims[claim.Address]; ok {
			return fmt.Errorf("claim %s: %w", claim.ClaimID, model.ErrDuplicate)
		}
		st.claims[claim.Address] = cloneClaim(claim)
		return nil
	})
}

func (s *Store) GetClaim(_ context.Context, address string) (*model.Claim, error) {
	var out *model.Claim
	err := s.do("GetClaim", func(st *state) error {
		c, ok := st.claims[address]
		if !ok {
			return model.ErrNotFound
		}
		out = cloneClaim(c)
		return nil
	})
	return out, err
}

func (s *Store) ListClaims(_ context.Context, filter model.ClaimFilter) ([]*model.Claim, error) {
	var out []*model.Claim
	err := s.do("ListClaims", func(st *state) error {
		for _, c := range st.claims {
			if filter.Room != "" && c.Room != filter.Room {
				continue
			}
			if filter.Claimant != "" && c.Claimant != filter.Claimant {
				continue
			}
			if filter.Resolved != nil && c.Resolved != *filter.Resolved {
				continue
			}
			out = append(out, cloneClaim(c))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Address < out[j].Address
	})
	return page(out, filter.Offset, filter.Limit), err
}

func (s *Store) UpdateClaim(_ context.Context, claim *model.Claim) error {
	return s.do("UpdateClaim", func(st *state) error {
		if _, ok := st.claims[claim.Address]; !ok {
			return model.ErrNotFound
		}
		st.claims[claim.Address] = cloneClaim(claim)
		return nil
	})
}

// --- Votes ---

func (s *Store) CreateVoterRecord(_ context.Context, v *model.VoterRecord) error {
	return s.do("CreateVoterRecord", func(st *state) error {
		key := pairKey(v.Claim, v.Voter)
		if _, ok := st.votes[key]; ok {
			return fmt.Errorf("vote by %s: %w", v.Voter, model.ErrDuplicate)
		}
		st.votes[key] = ptr(*v)
		return nil
	})
}

func (s *Store) ListVoterRecords(_ context.Context, claim string) ([]*model.VoterRecord, error) {
	var out []*model.VoterRecord
	err := s.do("ListVoterRecords", func(st *state) error {
		for _, v := range st.votes {
			if v.Claim == claim {
				out = append(out, ptr(*v))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CastAt.Equal(out[j].CastAt) {
			return out[i].CastAt.Before(out[j].CastAt)
		}
		return out[i].Voter < out[j].Voter
	})
	return out, err
}

// --- Whitelist ---

func (s *Store) CreateWhitelist(_ context.Context, w *model.Whitelist) error {
	return s.do("CreateWhitelist", func(st *state) error {
		if st.whitelist != nil {
			return fmt.Errorf("whitelist: %w", model.ErrDuplicate)
		}
		st.whitelist = cloneWhitelist(w)
		return nil
	})
}

func (s *Store) GetWhitelist(_ context.Context) (*model.Whitelist, error) {
	var out *model.Whitelist
	err := s.do("GetWhitelist", func(st *state) error {
		if st.whitelist == nil {
			return model.ErrNotFound
		}
		out = cloneWhitelist(st.whitelist)
		return nil
	})
	return out, err
}

func (s *Store) AddWhitelistMember(_ context.Context, identity string) error {
	return s.do("AddWhitelistMember", func(st *state) error {
		if st.whitelist == nil {
			return model.ErrNotFound
		}
		if st.whitelist.Contains(identity) {
			return fmt.Errorf("member %s: %w", identity, model.ErrDuplicate)
		}
		st.whitelist.Members = append(st.whitelist.Members, identity)
		return nil
	})
}

func (s *Store) RemoveWhitelistMember(_ context.Context, identity string) error {
	return s.do("RemoveWhitelistMember", func(st *state) error {
		if st.whitelist == nil {
			return model.ErrNotFound
		}
		i := slices.Index(st.whitelist.Members, identity)
		if i < 0 {
			return model.ErrNotFound
		}
		st.whitelist.Members = slices.Delete(st.whitelist.Members, i, i+1)
		return nil
	})
}

// --- Reputation ---

func (s *Store) GetReputation(_ context.Context, player string) (*model.Reputation, error) {
	var out *model.Reputation
	err := s.do("GetReputation", func(st *state) error {
		r, ok := st.reputations[player]
		if !ok {
			return model.ErrNotFound
		}
		out = ptr(*r)
		return nil
	})
	return out, err
}

func (s *Store) PutReputation(_ context.Context, r *model.Reputation) error {
	return s.do("PutReputation", func(st *state) error {
		st.reputations[r.Player] = ptr(*r)
		return nil
	})
}

func (s *Store) ListReputations(_ context.Context) ([]*model.Reputation, error) {
	var out []*model.Reputation
	err := s.do("ListReputations", func(st *state) error {
		for _, r := range st.reputations {
			out = append(out, ptr(*r))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Player < out[j].Player
	})
	return out, err
}

// --- Custody slots ---

func (s *Store) CreateAccount(_ context.Context, a *model.Account) error {
	return s.do("CreateAccount", func(st *state) error {
		if _, ok := st.accounts[a.Address]; ok {
			return fmt.Errorf("account %s: %w", a.Address, model.ErrDuplicate)
		}
		st.accounts[a.Address] = ptr(*a)
		return nil
	})
}

func (s *Store) GetAccount(_ context.Context, address string) (*model.Account, error) {
	var out *model.Account
	err := s.do("GetAccount", func(st *state) error {
		a, ok := st.accounts[address]
		if !ok {
			return model.ErrNotFound
		}
		out = ptr(*a)
		return nil
	})
	return out, err
}

func (st *state) account(address string) *model.Account {
	a, ok := st.accounts[address]
	if !ok {
		a = &model.Account{Address: address}
		st.accounts[address] = a
	}
	return a
}

func (s *Store) Credit(_ context.Context, address string, amount uint64) error {
	return s.do("Credit", func(st *state) error {
		a := ptr(*st.account(address))
		if err := store.CreditAccount(a, amount); err != nil {
			return err
		}
		st.accounts[address] = a
		return nil
	})
}

func (s *Store) Transfer(_ context.Context, from, to string, amount uint64, auth store.Authority) error {
	return s.do("Transfer", func(st *state) error {
		src, ok := st.accounts[from]
		if !ok {
			return fmt.Errorf("transfer from %s: %w", from, model.ErrNotFound)
		}
		if err := store.VerifyAuthority(auth, from); err != nil {
			return err
		}
		src = ptr(*src)
		dst := ptr(*st.account(to))
		if err := store.Debit(src, amount); err != nil {
			return err
		}
		if err := store.CreditAccount(dst, amount); err != nil {
			return err
		}
		st.accounts[from] = src
		st.accounts[to] = dst
		return nil
	})
}

func (s *Store) ReserveFor(_ context.Context, slot, _ string, dataLen int) error {
	return s.do("ReserveFor", func(st *state) error {
		a, ok := st.accounts[slot]
		if !ok {
			return fmt.Errorf("reserve %s: %w", slot, model.ErrNotFound)
		}
		a = ptr(*a)
		if _, err := store.Grow(a, dataLen); err != nil {
			return err
		}
		st.accounts[slot] = a
		return nil
	})
}

func (s *Store) ReleaseReserve(_ context.Context, slot, refundTo string, dataLen int) error {
	return s.do("ReleaseReserve", func(st *state) error {
		a, ok := st.accounts[slot]
		if !ok {
			return fmt.Errorf("release %s: %w", slot, model.ErrNotFound)
		}
		a = ptr(*a)
		refund, err := store.Shrink(a, dataLen)
		if err != nil {
			return err
		}
		dst := ptr(*st.account(refundTo))
		if err := store.CreditAccount(dst, refund); err != nil {
			return err
		}
		st.accounts[slot] = a
		st.accounts[refundTo] = dst
		return nil
	})
}

// --- Deposits ---

func (s *Store) RecordDeposit(_ context.Context, d *model.Deposit) error {
	return s.do("RecordDeposit", func(st *state) error {
		st.nextID++
		d.ID = st.nextID
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now().UTC()
		}
		st.deposits = append(st.deposits, ptr(*d))
		return nil
	})
}

func (s *Store) ListDeposits(_ context.Context, room string) ([]*model.Deposit, error) {
	var out []*model.Deposit
	err := s.do("ListDeposits", func(st *state) error {
		for _, d := range st.deposits {
			if d.Room == room {
				out = append(out, ptr(*d))
			}
		}
		return nil
	})
	return out, err
}

// --- Events ---

func (s *Store) RecordEvent(_ context.Context, e *model.Event) error {
	return s.do("RecordEvent", func(st *state) error {
		st.nextID++
		e.ID = st.nextID
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		st.events = append(st.events, ptr(*e))
		return nil
	})
}

func (s *Store) GetEvents(_ context.Context, ref string) ([]*model.Event, error) {
	var out []*model.Event
	err := s.do("GetEvents", func(st *state) error {
		for _, e := range st.events {
			if e.Ref == ref {
				out = append(out, ptr(*e))
			}
		}
		return nil
	})
	return out, err
}

// RunInTransaction runs fn against a copy of the state and installs the
// copy only if fn succeeds. Transactions are serialized; a nested call
// reuses the enclosing transaction.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	tx := &Store{txMu: s.txMu, st: snapshot, faults: s.faults, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = tx.st
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
