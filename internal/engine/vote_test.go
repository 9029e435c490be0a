package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store/memstore"
)

func TestCastVote(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	c := f.claim(r, "alice", "c1")
	f.whitelist("v1", "v2")

	res, err := f.eng.CastVote(f.ctx, c.Address, "v1", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Claim.VotesFor)
	assert.True(t, res.Vote.Accept)
	assert.Equal(t, f.now, res.Vote.CastAt)

	res, err = f.eng.CastVote(f.ctx, c.Address, "v2", false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Claim.VotesFor)
	assert.Equal(t, uint64(1), res.Claim.VotesAgainst)

	votes, err := f.eng.ListVotes(f.ctx, c.Address)
	require.NoError(t, err)
	assert.Len(t, votes, 2)
}

func TestCastVoteTwiceLeavesTallies(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	c := f.claim(r, "alice", "c1")
	f.whitelist("v1")

	_, err := f.eng.CastVote(f.ctx, c.Address, "v1", true)
	require.NoError(t, err)

	// A second vote in either direction is refused.
	_, err = f.eng.CastVote(f.ctx, c.Address, "v1", true)
	require.ErrorIs(t, err, model.ErrDuplicate)
	_, err = f.eng.CastVote(f.ctx, c.Address, "v1", false)
	require.ErrorIs(t, err, model.ErrDuplicate)

	got, err := f.eng.GetClaim(f.ctx, c.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.VotesFor)
	assert.Zero(t, got.VotesAgainst)
}

func TestCastVoteNotWhitelisted(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	c := f.claim(r, "alice", "c1")

	_, err := f.eng.CastVote(f.ctx, c.Address, "stranger", true)
	require.ErrorIs(t, err, model.ErrVoterNotWhitelisted)

	votes, err := f.eng.ListVotes(f.ctx, c.Address)
	require.NoError(t, err)
	assert.Empty(t, votes)

	got, err := f.eng.GetClaim(f.ctx, c.Address)
	require.NoError(t, err)
	assert.Zero(t, got.VotesFor)

	// A removed member loses the right to vote.
	f.whitelist("v1")
	_, err = f.eng.RemoveFromWhitelist(f.ctx, organizer, "v1")
	require.NoError(t, err)
	_, err = f.eng.CastVote(f.ctx, c.Address, "v1", true)
	require.ErrorIs(t, err, model.ErrVoterNotWhitelisted)
}

func TestCastVoteWithoutWhitelist(t *testing.T) {
	ctx := context.Background()
	e := New(memstore.New())
	res, err := e.CreateRoom(ctx, CreateRoomRequest{Organizer: organizer, RoomID: "r1", Name: "r1", VoteThreshold: 50})
	require.NoError(t, err)
	c, err := e.SubmitClaim(ctx, SubmitClaimRequest{Room: res.Room.Address, Claimant: "alice", ClaimID: "c1"})
	require.NoError(t, err)

	ok, err := e.IsWhitelisted(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.CastVote(ctx, c.Address, "v1", true)
	require.ErrorIs(t, err, model.ErrVoterNotWhitelisted)
}

func TestCastVoteOnResolvedClaim(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	f.deposit(r, 100)
	c := f.claim(r, "alice", "c1")
	f.votes(c, 1, 0)
	_, err := f.resolve(r, c)
	require.NoError(t, err)

	f.whitelist("late")
	_, err = f.eng.CastVote(f.ctx, c.Address, "late", false)
	require.ErrorIs(t, err, model.ErrAlreadyResolved)

	votes, err := f.eng.ListVotes(f.ctx, c.Address)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestCastVoteCheckOrder(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	f.deposit(r, 100)
	c := f.claim(r, "alice", "c1")
	f.whitelist("v")
	_, err := f.eng.CastVote(f.ctx, c.Address, "v", true)
	require.NoError(t, err)
	_, err = f.resolve(r, c)
	require.NoError(t, err)

	// Membership is checked before the claim state.
	_, err = f.eng.CastVote(f.ctx, c.Address, "stranger", true)
	require.ErrorIs(t, err, model.ErrVoterNotWhitelisted)

	// A repeat voter hits the existing record before the resolved flag.
	_, err = f.eng.CastVote(f.ctx, c.Address, "v", false)
	require.ErrorIs(t, err, model.ErrDuplicate)

	got, err := f.eng.GetClaim(f.ctx, c.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.VotesFor)
	assert.Zero(t, got.VotesAgainst)
}

func TestCastVoteTallyOverflow(t *testing.T) {
	f := newFixture(t)
	r := f.room("r1", 50)
	c := f.claim(r, "alice", "c1")
	f.whitelist("v1")

	c.VotesFor = math.MaxUint64
	require.NoError(t, f.mem.UpdateClaim(f.ctx, c))

	_, err := f.eng.CastVote(f.ctx, c.Address, "v1", true)
	require.ErrorIs(t, err, model.ErrNumericalOverflow)

	votes, err := f.eng.ListVotes(f.ctx, c.Address)
	require.NoError(t, err)
	assert.Empty(t, votes)

	got, err := f.eng.GetClaim(f.ctx, c.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got.VotesFor)
	assert.Zero(t, got.VotesAgainst)
}

func TestCastVoteMissingClaim(t *testing.T) {
	f := newFixture(t)
	f.whitelist("v1")
	_, err := f.eng.CastVote(f.ctx, "missing", "v1", true)
	require.ErrorIs(t, err, model.ErrNotFound)
}
