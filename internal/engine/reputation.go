package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// getOrCreate returns player's reputation, or a fresh zeroed record if the
// player has never won.
func getOrCreate(ctx context.Context, tx store.Store, player string) (*model.Reputation, error) {
	r, err := tx.GetReputation(ctx, player)
	if isNotFound(err) {
		return model.NewReputation(player), nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// recordWin adds one win and model.RewardPerWin to player's record.
func (e *Engine) recordWin(ctx context.Context, tx store.Store, player string, now time.Time) (*model.Reputation, error) {
	r, err := getOrCreate(ctx, tx, player)
	if err != nil {
		return nil, err
	}
	if err := r.RecordWin(); err != nil {
		return nil, fmt.Errorf("reputation of %s: %w", player, err)
	}
	r.UpdatedAt = now
	if err := tx.PutReputation(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetReputation returns player's record, or model.ErrNotFound if the
// player has never won a claim.
func (e *Engine) GetReputation(ctx context.Context, player string) (*model.Reputation, error) {
	ctx, span := e.view(ctx, "get_reputation")
	defer span.End()
	return e.store.GetReputation(ctx, player)
}

// Leaderboard returns every record, highest score first.
func (e *Engine) Leaderboard(ctx context.Context) ([]*model.Reputation, error) {
	ctx, span := e.view(ctx, "leaderboard")
	defer span.End()
	return e.store.ListReputations(ctx)
}
