package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

func TestThreshold(t *testing.T) {
	tests := []struct {
		name      string
		votesFor  uint64
		against   uint64
		threshold uint8
		want      bool
		wantErr   error
	}{
		{"exactly half at 50", 5, 5, 50, true, nil},
		{"just under half at 50", 4, 6, 50, false, nil},
		{"three of four at 60", 3, 1, 60, true, nil},
		{"three of four at 90", 3, 1, 90, false, nil},
		{"two of three at 67", 2, 1, 67, false, nil},
		{"two of three at 66", 2, 1, 66, true, nil},
		{"zero threshold accepts all against", 0, 1, 0, true, nil},
		{"unanimous at 100", 1, 0, 100, true, nil},
		{"one dissent at 100", 99, 1, 100, false, nil},
		{"no votes", 0, 0, 50, false, model.ErrNoVotes},
		{"tally overflow", math.MaxUint64, 1, 50, false, model.ErrNumericalOverflow},
		{"huge tallies stay exact", math.MaxUint64 / 2, math.MaxUint64 / 2, 50, true, nil},
		{"huge tallies one short", math.MaxUint64/2 - 1, math.MaxUint64 / 2, 50, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Threshold(tt.votesFor, tt.against, tt.threshold)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAccepted(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 60)
	f.deposit(r, 1000)
	c := f.claim(r, "alice", "c1")
	f.votes(c, 3, 1)

	res, err := f.resolve(r, c)
	require.NoError(t, err)

	assert.True(t, res.Claim.Resolved)
	assert.True(t, res.Claim.Accepted)
	assert.Equal(t, uint64(1000), res.Claim.Payout)
	require.NotNil(t, res.Claim.ResolvedAt)
	assert.Equal(t, f.now, *res.Claim.ResolvedAt)
	assert.Equal(t, model.RoomResolved, res.Room.Status)

	assert.Equal(t, uint64(1000), f.balance("alice"))
	assert.Equal(t, model.VaultReserve, f.balance(r.Vault))

	rep, err := f.eng.GetReputation(f.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), rep.Wins)
	assert.Equal(t, uint64(10), rep.Score)
	assert.Equal(t, rep, res.Reputation)

	room, err := f.eng.GetRoom(f.ctx, r.Address)
	require.NoError(t, err)
	assert.Equal(t, model.RoomResolved, room.Status)
}

func TestResolveRejected(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 90)
	f.deposit(r, 1000)
	c := f.claim(r, "alice", "c1")
	f.votes(c, 3, 1)

	res, err := f.resolve(r, c)
	require.NoError(t, err)

	assert.True(t, res.Claim.Resolved)
	assert.False(t, res.Claim.Accepted)
	assert.Zero(t, res.Claim.Payout)
	assert.Nil(t, res.Reputation)
	assert.Equal(t, model.RoomOpen, res.Room.Status)

	assert.Equal(t, model.VaultReserve+1000, f.balance(r.Vault))
	assert.Zero(t, f.balance("alice"))

	_, err = f.eng.GetReputation(f.ctx, "alice")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestResolveTwice(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	f.deposit(r, 1000)
	c := f.claim(r, "alice", "c1")
	f.votes(c, 2, 0)

	_, err := f.resolve(r, c)
	require.NoError(t, err)

	// Further deposits stay in the vault.
	f.deposit(r, 500)
	_, err = f.resolve(r, c)
	require.ErrorIs(t, err, model.ErrAlreadyResolved)

	assert.Equal(t, uint64(1000), f.balance("alice"))
	assert.Equal(t, model.VaultReserve+500, f.balance(r.Vault))
	rep, err := f.eng.GetReputation(f.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), rep.Wins)
}

func TestResolveNoVotes(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	f.deposit(r, 1000)
	c := f.claim(r, "alice", "c1")

	_, err := f.resolve(r, c)
	require.ErrorIs(t, err, model.ErrNoVotes)

	got, err := f.eng.GetClaim(f.ctx, c.Address)
	require.NoError(t, err)
	assert.False(t, got.Resolved)
}

func TestResolveEmptyVault(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	c := f.claim(r, "alice", "c1")
	f.votes(c, 1, 0)

	_, err := f.resolve(r, c)
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	got, err := f.eng.GetClaim(f.ctx, c.Address)
	require.NoError(t, err)
	assert.False(t, got.Resolved)
	assert.Equal(t, model.VaultReserve, f.balance(r.Vault))
}

func TestResolveMismatch(t *testing.T) {
	f := newFixture(t)
	a := f.room("a", 50)
	b := f.room("b", 50)
	f.deposit(a, 1000)
	c := f.claim(a, "alice", "c1")
	f.votes(c, 1, 0)

	_, err := f.resolve(b, c)
	require.ErrorIs(t, err, model.ErrClaimRoomMismatch)

	_, err = f.eng.ResolveClaim(f.ctx, ResolveRequest{Room: a.Address, Claim: c.Address, Claimant: "bob"})
	require.ErrorIs(t, err, model.ErrClaimantMismatch)

	_, err = f.eng.ResolveClaim(f.ctx, ResolveRequest{Room: a.Address, Claim: c.Address, Claimant: "alice"})
	require.NoError(t, err)
}

func TestResolveRollsBackOnTransferFailure(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	f.deposit(r, 1000)
	c := f.claim(r, "alice", "c1")
	f.votes(c, 1, 0)

	injected := errors.New("ledger unavailable")
	f.mem.FailNext("Transfer", injected)
	_, err := f.resolve(r, c)
	require.ErrorIs(t, err, injected)

	got, err := f.eng.GetClaim(f.ctx, c.Address)
	require.NoError(t, err)
	assert.False(t, got.Resolved)
	assert.Zero(t, got.Payout)
	assert.Equal(t, model.VaultReserve+1000, f.balance(r.Vault))
	_, err = f.eng.GetReputation(f.ctx, "alice")
	require.ErrorIs(t, err, model.ErrNotFound)
	room, err := f.eng.GetRoom(f.ctx, r.Address)
	require.NoError(t, err)
	assert.Equal(t, model.RoomOpen, room.Status)

	// The fault was one-shot; a retry settles normally.
	res, err := f.resolve(r, c)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), res.Claim.Payout)
}

func TestResolveRollsBackOnReputationFailure(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	f.deposit(r, 1000)
	c := f.claim(r, "alice", "c1")
	f.votes(c, 1, 0)

	injected := errors.New("disk full")
	f.mem.FailNext("PutReputation", injected)
	_, err := f.resolve(r, c)
	require.ErrorIs(t, err, injected)

	// The transfer that preceded the failure is undone too.
	assert.Zero(t, f.balance("alice"))
	assert.Equal(t, model.VaultReserve+1000, f.balance(r.Vault))
}

func TestWinsAccumulate(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"r1", "r2"} {
		r := f.room(id, 50)
		f.deposit(r, 100)
		c := f.claim(r, "alice", "c-"+id)
		f.votes(c, 1, 0)
		_, err := f.resolve(r, c)
		require.NoError(t, err)
	}

	rep, err := f.eng.GetReputation(f.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), rep.Wins)
	assert.Equal(t, uint64(20), rep.Score)
	assert.Equal(t, uint64(200), f.balance("alice"))

	board, err := f.eng.Leaderboard(f.ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "alice", board[0].Player)
}

func TestResolveOnCancelledRoomKeepsStatus(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	f.deposit(r, 300)
	c := f.claim(r, "alice", "c1")
	f.votes(c, 1, 0)
	_, err := f.eng.CancelRoom(f.ctx, organizer, r.Address)
	require.NoError(t, err)

	res, err := f.resolve(r, c)
	require.NoError(t, err)
	assert.True(t, res.Claim.Accepted)
	assert.Equal(t, model.RoomCancelled, res.Room.Status)
	assert.Equal(t, uint64(300), f.balance("alice"))
}

func TestSettlementMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	f := newFixture(t, WithMetrics(m))

	accepted := f.room("r1", 50)
	f.deposit(accepted, 400)
	c1 := f.claim(accepted, "alice", "c1")
	f.votes(c1, 2, 1)
	_, err := f.resolve(accepted, c1)
	require.NoError(t, err)

	rejected := f.room("r2", 90)
	c2 := f.claim(rejected, "bob", "c2")
	f.votes(c2, 0, 1)
	_, err = f.resolve(rejected, c2)
	require.NoError(t, err)

	_, err = f.resolve(rejected, c2)
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.settlements.WithLabelValues("accepted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.settlements.WithLabelValues("rejected")), 0)
	assert.InDelta(t, 400, testutil.ToFloat64(m.paidOut), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.votes.WithLabelValues("for")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.votes.WithLabelValues("against")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.operations.WithLabelValues("resolve_claim", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operations.WithLabelValues("resolve_claim", "already_resolved")), 0)
}

func TestSubmitClaimRejectsSlotClaimant(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	other := f.room("r2", 50)
	whitelist, _ := model.WhitelistAddress()

	for _, claimant := range []string{other.Vault, whitelist} {
		_, err := f.eng.SubmitClaim(f.ctx, SubmitClaimRequest{Room: r.Address, Claimant: claimant, ClaimID: "c1"})
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve, "claimant %s", claimant)
	}
	assert.Equal(t, model.VaultReserve, f.balance(other.Vault))
}
