package engine

import (
	"context"
	"fmt"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// WhitelistResult reports the whitelist after an add or remove and whether
// the call changed it.
type WhitelistResult struct {
	Whitelist *model.Whitelist `json:"whitelist"`
	Changed   bool             `json:"changed"`
}

// InitializeWhitelist creates the empty voter whitelist administered by
// organizer. Its slot reserve is paid by the organizer.
func (e *Engine) InitializeWhitelist(ctx context.Context, organizer string) (*model.Whitelist, error) {
	if err := model.ValidateIdentity("organizer", organizer); err != nil {
		return nil, err
	}
	addr, salt := model.WhitelistAddress()
	w := &model.Whitelist{
		Address:   addr,
		Admin:     organizer,
		Members:   []string{},
		Salt:      salt,
		CreatedAt: e.now(),
	}
	err := e.mutate(ctx, "initialize_whitelist", func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateWhitelist(ctx, w); err != nil {
			return err
		}
		if err := tx.CreateAccount(ctx, &model.Account{Address: addr, Owner: addr, Salt: salt}); err != nil {
			return fmt.Errorf("create whitelist slot: %w", err)
		}
		return tx.ReserveFor(ctx, addr, organizer, model.WhitelistDataLen(0))
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// AddToWhitelist adds identity. Adding a present member is a no-op.
func (e *Engine) AddToWhitelist(ctx context.Context, caller, identity string) (*WhitelistResult, error) {
	if err := model.ValidateIdentity("identity", identity); err != nil {
		return nil, err
	}
	res := &WhitelistResult{}
	err := e.mutate(ctx, "add_to_whitelist", func(ctx context.Context, tx store.Store) error {
		w, err := tx.GetWhitelist(ctx)
		if err != nil {
			return err
		}
		if err := requireAdmin(caller, w); err != nil {
			return err
		}
		res.Whitelist = w
		if w.Contains(identity) {
			return nil
		}
		if err := tx.AddWhitelistMember(ctx, identity); err != nil {
			return err
		}
		w.Members = append(w.Members, identity)
		if err := tx.ReserveFor(ctx, w.Address, caller, model.WhitelistDataLen(len(w.Members))); err != nil {
			return fmt.Errorf("grow whitelist: %w", err)
		}
		res.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RemoveFromWhitelist removes identity. Removing an absent member is a
// no-op. The surplus reserve is refunded to the caller.
func (e *Engine) RemoveFromWhitelist(ctx context.Context, caller, identity string) (*WhitelistResult, error) {
	res := &WhitelistResult{}
	err := e.mutate(ctx, "remove_from_whitelist", func(ctx context.Context, tx store.Store) error {
		w, err := tx.GetWhitelist(ctx)
		if err != nil {
			return err
		}
		if err := requireAdmin(caller, w); err != nil {
			return err
		}
		res.Whitelist = w
		idx := -1
		for i, m := range w.Members {
			if m == identity {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		if err := tx.RemoveWhitelistMember(ctx, identity); err != nil {
			return err
		}
		w.Members = append(w.Members[:idx], w.Members[idx+1:]...)
		if err := tx.ReleaseReserve(ctx, w.Address, caller, model.WhitelistDataLen(len(w.Members))); err != nil {
			return fmt.Errorf("shrink whitelist: %w", err)
		}
		res.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetWhitelist returns the whitelist with members in insertion order.
func (e *Engine) GetWhitelist(ctx context.Context) (*model.Whitelist, error) {
	ctx, span := e.view(ctx, "get_whitelist")
	defer span.End()
	return e.store.GetWhitelist(ctx)
}

// IsWhitelisted reports whether identity may vote. A missing whitelist
// admits nobody.
func (e *Engine) IsWhitelisted(ctx context.Context, identity string) (bool, error) {
	w, err := e.GetWhitelist(ctx)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return w.Contains(identity), nil
}
