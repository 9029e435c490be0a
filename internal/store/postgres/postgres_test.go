package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var roomRowColumns = []string{
	"address", "organizer", "room_id", "name", "vault", "total_pool", "status",
	"created_at", "deadline_at", "vote_threshold", "salt",
}

var claimRowColumns = []string{
	"address", "room", "claimant", "claim_id", "proof_hash", "votes_for",
	"votes_against", "resolved", "accepted", "payout", "created_at", "resolved_at",
}

var accountRowColumns = []string{"address", "owner", "balance", "reserve", "data_len", "salt"}

type testAuthority struct {
	slot  string
	seeds []string
	salt  uint8
}

func (a testAuthority) Slot() string             { return a.slot }
func (a testAuthority) Proof() ([]string, uint8) { return a.seeds, a.salt }

func TestScanHelpers(t *testing.T) {
	if nullTimePtr(nil).Valid {
		t.Error("nullTimePtr(nil) should be invalid")
	}
	now := time.Now()
	if nt := nullTimePtr(&now); !nt.Valid || !nt.Time.Equal(now) {
		t.Errorf("nullTimePtr(now) = %v", nt)
	}
	if nullTime(time.Time{}).Valid {
		t.Error("nullTime(zero) should be invalid")
	}
	if got := numeric(18446744073709551615); got != "18446744073709551615" {
		t.Errorf("numeric(max) = %s", got)
	}
}

func TestMapErr(t *testing.T) {
	if err := mapErr(&pq.Error{Code: uniqueViolation}, "x"); !errors.Is(err, model.ErrDuplicate) {
		t.Errorf("unique violation: got %v", err)
	}
	if err := mapErr(sql.ErrNoRows, "x"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("no rows: got %v", err)
	}
	other := errors.New("connection reset")
	if err := mapErr(other, "x"); !errors.Is(err, other) {
		t.Errorf("other: got %v", err)
	}
	if mapErr(nil, "x") != nil {
		t.Error("nil should stay nil")
	}
}

func TestQueryCreateRoom(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	room := &model.Room{
		Address: "room-addr", Organizer: "org", RoomID: "r1", Name: "Finals",
		Vault: "vault-addr", TotalPool: 5000, Status: model.RoomOpen,
		CreatedAt: now, VoteThreshold: 60, Salt: 254,
	}
	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("room-addr", "org", "r1", "Finals", "vault-addr", "5000", "open", now, sqlmock.AnyArg(), 60, 254).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateRoom(context.Background(), db, room); err != nil {
		t.Fatalf("queryCreateRoom: %v", err)
	}
}

func TestQueryCreateRoom_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO rooms").WillReturnError(&pq.Error{Code: uniqueViolation})

	err := queryCreateRoom(context.Background(), db, &model.Room{RoomID: "r1", Status: model.RoomOpen})
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestQueryGetRoom(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	deadline := now.Add(time.Hour)
	mock.ExpectQuery("SELECT .+ FROM rooms WHERE address = \\$1$").WithArgs("room-addr").
		WillReturnRows(sqlmock.NewRows(roomRowColumns).AddRow(
			"room-addr", "org", "r1", "Finals", "vault-addr", "5000", "in_progress",
			now, deadline, 60, 254,
		))

	r, err := queryGetRoom(context.Background(), db, "room-addr", false)
	if err != nil {
		t.Fatalf("queryGetRoom: %v", err)
	}
	if r.Status != model.RoomInProgress || r.TotalPool != 5000 || r.VoteThreshold != 60 || r.Salt != 254 {
		t.Errorf("unexpected room: %+v", r)
	}
	if !r.DeadlineAt.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", r.DeadlineAt, deadline)
	}
}

func TestQueryGetRoom_LockAndNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM rooms WHERE address = \\$1 FOR UPDATE").WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := queryGetRoom(context.Background(), db, "missing", true)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryListRooms(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	cols := append([]string{"total_count"}, roomRowColumns...)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) OVER\\(\\) AS total_count, .+ FROM rooms WHERE organizer = \\$1 AND status IN \\(\\$2, \\$3\\) ORDER BY created_at DESC, address LIMIT \\$4 OFFSET \\$5").
		WithArgs("org", "open", "in_progress", 10, 5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(7, "a1", "org", "r1", "One", "v1", "0", "open", now, nil, 51, 255).
			AddRow(7, "a2", "org", "r2", "Two", "v2", "0", "in_progress", now, nil, 51, 255))

	rooms, total, err := queryListRooms(context.Background(), db, model.RoomFilter{
		Organizer: "org",
		Status:    []model.RoomStatus{model.RoomOpen, model.RoomInProgress},
		Limit:     10,
		Offset:    5,
	})
	if err != nil {
		t.Fatalf("queryListRooms: %v", err)
	}
	if total != 7 || len(rooms) != 2 {
		t.Fatalf("got %d rooms total %d", len(rooms), total)
	}
	if !rooms[0].DeadlineAt.IsZero() {
		t.Error("NULL deadline should scan as zero time")
	}
}

func TestQueryListRooms_NoFilter(t *testing.T) {
	db, mock := newMockDB(t)
	cols := append([]string{"total_count"}, roomRowColumns...)
	mock.ExpectQuery("FROM rooms ORDER BY created_at DESC, address$").
		WillReturnRows(sqlmock.NewRows(cols))

	rooms, total, err := queryListRooms(context.Background(), db, model.RoomFilter{})
	if err != nil {
		t.Fatalf("queryListRooms: %v", err)
	}
	if total != 0 || len(rooms) != 0 {
		t.Errorf("expected empty result, got %d/%d", len(rooms), total)
	}
}

func TestQueryUpdateRoomStatus_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE rooms SET status = \\$2 WHERE address = \\$1").
		WithArgs("missing", "resolved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := queryUpdateRoomStatus(context.Background(), db, "missing", model.RoomResolved)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryGetClaim(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM claims WHERE address = \\$1 FOR UPDATE").WithArgs("claim-addr").
		WillReturnRows(sqlmock.NewRows(claimRowColumns).AddRow(
			"claim-addr", "room-addr", "alice", "c1", "deadbeef", "3", "1",
			true, true, "1000", now, now,
		))

	c, err := queryGetClaim(context.Background(), db, "claim-addr", true)
	if err != nil {
		t.Fatalf("queryGetClaim: %v", err)
	}
	if c.VotesFor != 3 || c.VotesAgainst != 1 || !c.Resolved || c.Payout != 1000 {
		t.Errorf("unexpected claim: %+v", c)
	}
	if c.ResolvedAt == nil || !c.ResolvedAt.Equal(now) {
		t.Errorf("resolved_at = %v", c.ResolvedAt)
	}
}

func TestQueryListClaims(t *testing.T) {
	db, mock := newMockDB(t)
	resolved := false
	mock.ExpectQuery("FROM claims WHERE room = \\$1 AND claimant = \\$2 AND resolved = \\$3 ORDER BY created_at ASC, address LIMIT \\$4").
		WithArgs("room-addr", "alice", false, 20).
		WillReturnRows(sqlmock.NewRows(claimRowColumns))

	_, err := queryListClaims(context.Background(), db, model.ClaimFilter{
		Room: "room-addr", Claimant: "alice", Resolved: &resolved, Limit: 20,
	})
	if err != nil {
		t.Fatalf("queryListClaims: %v", err)
	}
}

func TestQueryUpdateClaim(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	c := &model.Claim{Address: "claim-addr", VotesFor: 3, VotesAgainst: 1, Resolved: true, Accepted: true, Payout: 1000, ResolvedAt: &now}
	mock.ExpectExec("UPDATE claims SET").
		WithArgs("claim-addr", "3", "1", true, true, "1000", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryUpdateClaim(context.Background(), db, c); err != nil {
		t.Fatalf("queryUpdateClaim: %v", err)
	}
}

func TestQueryCreateVoterRecord_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO voter_records").
		WithArgs("claim-addr", "v1", true, now).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := queryCreateVoterRecord(context.Background(), db, &model.VoterRecord{Claim: "claim-addr", Voter: "v1", Accept: true, CastAt: now})
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestQueryGetWhitelist(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT address, admin, salt, created_at FROM whitelist LIMIT 1 FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"address", "admin", "salt", "created_at"}).
			AddRow("wl-addr", "org", 255, now))
	mock.ExpectQuery("SELECT member FROM whitelist_members ORDER BY position ASC").
		WillReturnRows(sqlmock.NewRows([]string{"member"}).AddRow("v1").AddRow("v2"))

	w, err := queryGetWhitelist(context.Background(), db, true)
	if err != nil {
		t.Fatalf("queryGetWhitelist: %v", err)
	}
	if w.Admin != "org" || len(w.Members) != 2 || w.Members[1] != "v2" {
		t.Errorf("unexpected whitelist: %+v", w)
	}
}

func TestQueryRemoveWhitelistMember_Absent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM whitelist_members WHERE member = \\$1").WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := queryRemoveWhitelistMember(context.Background(), db, "ghost")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryPutReputation(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO reputations .+ ON CONFLICT \\(player\\) DO UPDATE").
		WithArgs("alice", "20", int64(2), true, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := &model.Reputation{Player: "alice", Score: 20, Wins: 2, Initialized: true, UpdatedAt: now}
	if err := queryPutReputation(context.Background(), db, r); err != nil {
		t.Fatalf("queryPutReputation: %v", err)
	}
}

func TestQueryCredit_CreatesSlot(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE address = \\$1 FOR UPDATE").WithArgs("alice").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO accounts .+ ON CONFLICT \\(address\\) DO UPDATE").
		WithArgs("alice", "", "250", "0", 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCredit(context.Background(), db, "alice", 250); err != nil {
		t.Fatalf("queryCredit: %v", err)
	}
}

func TestQueryTransfer(t *testing.T) {
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)

	vault, salt := model.VaultAddress("room-1")
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE address = \\$1 FOR UPDATE").WithArgs(vault).
		WillReturnRows(sqlmock.NewRows(accountRowColumns).AddRow(vault, "room-1", "1500", "500", 0, int(salt)))
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE address = \\$1 FOR UPDATE").WithArgs("alice").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(vault, "room-1", "500", "500", 0, int(salt)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("alice", "", "1000", "0", 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	auth := testAuthority{slot: vault, seeds: []string{model.SeedVault, "room-1"}, salt: salt}
	if err := queryTransfer(context.Background(), db, vault, "alice", 1000, auth); err != nil {
		t.Fatalf("queryTransfer: %v", err)
	}
}

func TestQueryTransfer_RejectsForgedAuthority(t *testing.T) {
	db, _ := newMockDB(t)
	vault, salt := model.VaultAddress("room-1")
	forged := testAuthority{slot: vault, seeds: []string{model.SeedVault, "room-2"}, salt: salt}

	// No queries are expected: the proof is checked before any row is read.
	err := queryTransfer(context.Background(), db, vault, "mallory", 1, forged)
	if !errors.Is(err, model.ErrInvalidAuthority) {
		t.Fatalf("expected ErrInvalidAuthority, got %v", err)
	}
}

func TestQueryTransfer_IntoReserve(t *testing.T) {
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)

	vault, salt := model.VaultAddress("room-1")
	mock.ExpectQuery("FROM accounts WHERE address = \\$1 FOR UPDATE").WithArgs(vault).
		WillReturnRows(sqlmock.NewRows(accountRowColumns).AddRow(vault, "room-1", "600", "500", 0, int(salt)))
	mock.ExpectQuery("FROM accounts WHERE address = \\$1 FOR UPDATE").WithArgs("alice").
		WillReturnError(sql.ErrNoRows)

	auth := testAuthority{slot: vault, seeds: []string{model.SeedVault, "room-1"}, salt: salt}
	err := queryTransfer(context.Background(), db, vault, "alice", 101, auth)
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestQueryReleaseReserve(t *testing.T) {
	db, mock := newMockDB(t)
	big := model.ReserveFor(model.WhitelistDataLen(1))
	small := model.ReserveFor(model.WhitelistDataLen(0))

	mock.ExpectQuery("FROM accounts WHERE address = \\$1 FOR UPDATE").WithArgs("wl").
		WillReturnRows(sqlmock.NewRows(accountRowColumns).AddRow("wl", "wl", numeric(big), numeric(big), model.WhitelistDataLen(1), 255))
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("wl", "wl", numeric(small), numeric(small), model.WhitelistDataLen(0), 255).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM accounts WHERE address = \\$1 FOR UPDATE").WithArgs("org").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("org", "", numeric(big-small), "0", 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryReleaseReserve(context.Background(), db, "wl", "org", model.WhitelistDataLen(0)); err != nil {
		t.Fatalf("queryReleaseReserve: %v", err)
	}
}

func TestQueryRecordEvent(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	payload := json.RawMessage(`{"accepted":true}`)
	mock.ExpectQuery("INSERT INTO events").
		WithArgs("trustplay.claim.resolved", "claim-addr", "alice", []byte(payload)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, now))

	e := &model.Event{Topic: "trustplay.claim.resolved", Ref: "claim-addr", Actor: "alice", Payload: payload}
	if err := queryRecordEvent(context.Background(), db, e); err != nil {
		t.Fatalf("queryRecordEvent: %v", err)
	}
	if e.ID != 42 || !e.CreatedAt.Equal(now) {
		t.Errorf("event not populated: %+v", e)
	}
}

func TestRunInTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rooms SET status").WithArgs("room-addr", "cancelled").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.UpdateRoomStatus(context.Background(), "room-addr", model.RoomCancelled)
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestCredit_OutsideTransactionOpensOne(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM accounts WHERE address = \\$1 FOR UPDATE").WithArgs("vault").
		WillReturnRows(sqlmock.NewRows(accountRowColumns).AddRow("vault", "room", "100", "100", 0, 255))
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("vault", "room", "150", "100", 0, 255).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Credit(context.Background(), "vault", 50); err != nil {
		t.Fatalf("Credit: %v", err)
	}
}
