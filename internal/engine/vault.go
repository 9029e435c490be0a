package engine

import (
	"context"
	"fmt"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// vaultAuthority proves the engine's right to debit a room's vault. It is
// built only on the settlement path; nothing outside this package can
// produce one.
type vaultAuthority struct {
	room  string
	vault string
	salt  uint8
}

var _ store.Authority = vaultAuthority{}

func newVaultAuthority(room *model.Room, vault *model.Account) vaultAuthority {
	return vaultAuthority{room: room.Address, vault: vault.Address, salt: vault.Salt}
}

func (a vaultAuthority) Slot() string { return a.vault }

func (a vaultAuthority) Proof() ([]string, uint8) {
	return []string{model.SeedVault, a.room}, a.salt
}

// VaultView is a vault slot with its withdrawable balance.
type VaultView struct {
	Room         string         `json:"room"`
	Account      *model.Account `json:"account"`
	Withdrawable uint64         `json:"withdrawable"`
}

// DepositResult is the ledger entry and the vault after a deposit.
type DepositResult struct {
	Deposit *model.Deposit `json:"deposit"`
	Vault   *model.Account `json:"vault"`
}

// Deposit credits room's vault with exactly amount from payer.
func (e *Engine) Deposit(ctx context.Context, room, payer string, amount uint64) (*DepositResult, error) {
	if err := model.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := model.ValidateIdentity("payer", payer); err != nil {
		return nil, err
	}
	res := &DepositResult{}
	err := e.mutate(ctx, "deposit", func(ctx context.Context, tx store.Store) error {
		r, err := tx.GetRoom(ctx, room)
		if err != nil {
			return err
		}
		if err := verifyVaultRef(r); err != nil {
			return err
		}
		if err := tx.Credit(ctx, r.Vault, amount); err != nil {
			return fmt.Errorf("deposit into %s: %w", r.RoomID, err)
		}
		d := &model.Deposit{Room: r.Address, Payer: payer, Amount: amount, CreatedAt: e.now()}
		if err := tx.RecordDeposit(ctx, d); err != nil {
			return err
		}
		v, err := tx.GetAccount(ctx, r.Vault)
		if err != nil {
			return err
		}
		res.Deposit, res.Vault = d, v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetVault returns room's vault and how much of it a settlement could pay.
func (e *Engine) GetVault(ctx context.Context, room string) (*VaultView, error) {
	ctx, span := e.view(ctx, "get_vault")
	defer span.End()

	r, err := e.store.GetRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	v, err := loadVault(ctx, e.store, r)
	if err != nil {
		return nil, err
	}
	return &VaultView{Room: r.Address, Account: v, Withdrawable: v.Withdrawable()}, nil
}

// ListDeposits returns the deposit ledger of room.
func (e *Engine) ListDeposits(ctx context.Context, room string) ([]*model.Deposit, error) {
	ctx, span := e.view(ctx, "list_deposits")
	defer span.End()
	return e.store.ListDeposits(ctx, room)
}

// verifyVaultRef checks that the room's stored vault reference is the
// address derived from the room itself.
func verifyVaultRef(r *model.Room) error {
	want, _ := model.VaultAddress(r.Address)
	if r.Vault != want {
		return fmt.Errorf("room %s: %w", r.RoomID, model.ErrInvalidVaultAccount)
	}
	return nil
}

// loadVault reads room's vault and rejects any slot that is not the one
// derived from, and owned by, the room.
func loadVault(ctx context.Context, s store.Store, r *model.Room) (*model.Account, error) {
	if err := verifyVaultRef(r); err != nil {
		return nil, err
	}
	v, err := s.GetAccount(ctx, r.Vault)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("room %s: %w", r.RoomID, model.ErrInvalidVaultAccount)
		}
		return nil, err
	}
	if v.Owner != r.Address {
		return nil, fmt.Errorf("room %s: vault owner mismatch: %w", r.RoomID, model.ErrInvalidVaultAccount)
	}
	return v, nil
}

// withdrawAllExcess moves everything above the reserve from room's vault to
// destination and returns the amount moved.
func withdrawAllExcess(ctx context.Context, tx store.Store, r *model.Room, vault *model.Account, destination string, auth vaultAuthority) (uint64, error) {
	amount := vault.Withdrawable()
	if amount == 0 {
		return 0, fmt.Errorf("vault of %s: %w", r.RoomID, model.ErrInsufficientFunds)
	}
	if err := tx.Transfer(ctx, vault.Address, destination, amount, auth); err != nil {
		return 0, err
	}
	return amount, nil
}
