package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

type testAuthority struct {
	slot  string
	seeds []string
	salt  uint8
}

func (a testAuthority) Slot() string             { return a.slot }
func (a testAuthority) Proof() ([]string, uint8) { return a.seeds, a.salt }

func TestRunInTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateRoom(ctx, &model.Room{Address: "r1", RoomID: "r1"}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.GetRoom(ctx, "r1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("room survived rollback: %v", err)
	}
}

func TestRunInTransaction_Commits(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.CreateRoom(ctx, &model.Room{Address: "r1", RoomID: "r1"})
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if _, err := s.GetRoom(ctx, "r1"); err != nil {
		t.Fatalf("GetRoom after commit: %v", err)
	}
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	s := New()
	injected := errors.New("injected")
	s.FailNext("Credit", injected)
	if err := s.Credit(ctx, "a", 5); !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := s.Credit(ctx, "a", 5); err != nil {
		t.Fatalf("fault should fire once, got %v", err)
	}
}

func TestTransfer_OwnedSlotRequiresAuthority(t *testing.T) {
	ctx := context.Background()
	s := New()
	vault, salt := model.VaultAddress("room-1")
	if err := s.CreateAccount(ctx, &model.Account{Address: vault, Owner: "room-1", Balance: 1500, Reserve: 500, Salt: salt}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if err := s.Transfer(ctx, vault, "alice", 100, nil); !errors.Is(err, model.ErrInvalidAuthority) {
		t.Fatalf("nil authority: got %v", err)
	}
	forged := testAuthority{slot: vault, seeds: []string{model.SeedVault, "room-2"}, salt: salt}
	if err := s.Transfer(ctx, vault, "alice", 100, forged); !errors.Is(err, model.ErrInvalidAuthority) {
		t.Fatalf("forged authority: got %v", err)
	}

	auth := testAuthority{slot: vault, seeds: []string{model.SeedVault, "room-1"}, salt: salt}
	if err := s.Transfer(ctx, vault, "alice", 1001, auth); !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("transfer into reserve: got %v", err)
	}
	if err := s.Transfer(ctx, vault, "alice", 1000, auth); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	v, _ := s.GetAccount(ctx, vault)
	a, _ := s.GetAccount(ctx, "alice")
	if v.Balance != 500 || a.Balance != 1000 {
		t.Errorf("balances vault=%d alice=%d, want 500/1000", v.Balance, a.Balance)
	}
}

func TestReserveHooks(t *testing.T) {
	ctx := context.Background()
	s := New()
	slot := &model.Account{Address: "wl", Owner: "wl", Balance: model.ReserveFor(13), Reserve: model.ReserveFor(13), DataLen: 13}
	if err := s.CreateAccount(ctx, slot); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := s.ReserveFor(ctx, "wl", "org", 45); err != nil {
		t.Fatalf("ReserveFor: %v", err)
	}
	a, _ := s.GetAccount(ctx, "wl")
	if a.Reserve != model.ReserveFor(45) || a.Balance != a.Reserve {
		t.Fatalf("after grow reserve=%d balance=%d", a.Reserve, a.Balance)
	}
	if err := s.ReleaseReserve(ctx, "wl", "org", 13); err != nil {
		t.Fatalf("ReleaseReserve: %v", err)
	}
	org, _ := s.GetAccount(ctx, "org")
	if org.Balance != model.ReserveFor(45)-model.ReserveFor(13) {
		t.Errorf("refund = %d", org.Balance)
	}
}

func TestDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	v := &model.VoterRecord{Claim: "c", Voter: "v"}
	if err := s.CreateVoterRecord(ctx, v); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := s.CreateVoterRecord(ctx, v); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("second vote: got %v", err)
	}
}
