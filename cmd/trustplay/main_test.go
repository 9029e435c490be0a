package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/deepesh-sr/Trustplay/internal/client"
	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/server"
	"github.com/deepesh-sr/Trustplay/internal/store/memstore"
	"github.com/deepesh-sr/Trustplay/internal/ui"
)

func TestMain(m *testing.M) {
	ui.SetColor(false)
	os.Exit(m.Run())
}

// resetFlags restores every flag in the tree to its default so runs do
// not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// cli runs the root command against a server URL as identity.
type cli struct {
	t   *testing.T
	url string
}

func (c cli) run(identity string, args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--transport", "http", "--http-url", c.url, "--token", "tok", "--identity", identity}, args...))
	err := rootCmd.ExecuteContext(c.t.Context())
	return out.String(), err
}

func (c cli) must(identity string, args ...string) string {
	c.t.Helper()
	out, err := c.run(identity, args...)
	if err != nil {
		c.t.Fatalf("trustplay %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func (c cli) json(v any, identity string, args ...string) {
	c.t.Helper()
	out := c.must(identity, append(args, "--json")...)
	if err := json.Unmarshal([]byte(out), v); err != nil {
		c.t.Fatalf("decoding %q: %v", out, err)
	}
}

func newCLI(t *testing.T) cli {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng := engine.New(memstore.New(),
		engine.WithClock(func() time.Time { return now }),
		engine.WithLogger(logger),
	)
	srv := httptest.NewServer(server.New(eng, nil, logger).NewHTTPHandler("tok"))
	t.Cleanup(srv.Close)
	return cli{t: t, url: srv.URL}
}

func TestSettlementThroughCLI(t *testing.T) {
	c := newCLI(t)

	c.must("org", "whitelist", "init")
	out := c.must("org", "whitelist", "add", "v1", "v2", "v1")
	if !strings.Contains(out, "Added v1") || !strings.Contains(out, "Unchanged v1") || !strings.Contains(out, "2 members") {
		t.Fatalf("whitelist add output:\n%s", out)
	}

	var room engine.RoomResult
	c.json(&room, "org", "room", "create", "Finals", "--id", "r1", "--pool", "1.5", "--threshold", "50")
	if room.Room.RoomID != "r1" || room.Room.TotalPool != 1_500_000_000 || room.Room.Status != model.RoomOpen {
		t.Fatalf("room = %+v", room.Room)
	}
	addr := room.Room.Address

	c.must("alice", "room", "join", addr)
	if out := c.must("org", "room", "participants", addr); !strings.Contains(out, "alice") {
		t.Fatalf("participants:\n%s", out)
	}
	if out := c.must("org", "deposit", addr, "1.5"); !strings.Contains(out, "Deposited 1.5 tokens") {
		t.Fatalf("deposit:\n%s", out)
	}
	if out := c.must("org", "vault", "deposits", addr); !strings.Contains(out, "1 deposits, 1.5 tokens") {
		t.Fatalf("deposits:\n%s", out)
	}

	var claim model.Claim
	c.json(&claim, "alice", "claim", "submit", addr, "--id", "c1", "--proof", "abc")
	if claim.Claimant != "alice" || claim.Room != addr {
		t.Fatalf("claim = %+v", claim)
	}

	c.must("v1", "vote", claim.Address, "accept")
	c.must("v2", "vote", claim.Address, "reject")
	if _, err := c.run("v1", "vote", claim.Address, "maybe"); err == nil {
		t.Fatal("expected error for an unknown vote")
	}
	if out := c.must("org", "claim", "votes", claim.Address); !strings.Contains(out, "v1") || !strings.Contains(out, "reject") {
		t.Fatalf("votes:\n%s", out)
	}

	out = c.must("bob", "resolve", claim.Address)
	for _, want := range []string{"accepted", "Paid 1.5 tokens to alice", "Reputation of alice: 10 (1 wins)"} {
		if !strings.Contains(out, want) {
			t.Errorf("resolve output missing %q:\n%s", want, out)
		}
	}

	_, err := c.run("bob", "resolve", claim.Address)
	if !errors.Is(err, model.ErrAlreadyResolved) {
		t.Fatalf("second resolve: expected ErrAlreadyResolved, got %v", err)
	}

	var board []*model.Reputation
	c.json(&board, "bob", "leaderboard")
	if len(board) != 1 || board[0].Player != "alice" || board[0].Score != 10 {
		t.Fatalf("leaderboard = %+v", board)
	}
	if out := c.must("alice", "reputation"); !strings.Contains(out, "Score:   10") {
		t.Fatalf("reputation:\n%s", out)
	}

	var claims []*model.Claim
	c.json(&claims, "bob", "claim", "list", "--room", addr, "--resolved")
	if len(claims) != 1 || !claims[0].Accepted {
		t.Fatalf("resolved claims = %+v", claims)
	}
	c.json(&claims, "bob", "claim", "list", "--pending")
	if len(claims) != 0 {
		t.Fatalf("pending claims = %+v", claims)
	}

	var evs []*model.Event
	c.json(&evs, "bob", "events", "list", claim.Address)
	if len(evs) != 4 {
		t.Fatalf("events = %d, want 4", len(evs))
	}

	if out := c.must("bob", "vault", "show", addr); !strings.Contains(out, "Withdrawable:") {
		t.Fatalf("vault:\n%s", out)
	}
	if out := c.must("bob", "health"); !strings.Contains(out, "Health: ok") {
		t.Fatalf("health:\n%s", out)
	}
}

func TestCLIErrors(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("bob", "room", "show", "missing")
	if !client.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = c.run("", "room", "create", "Anon")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Fatalf("anonymous create: expected 401, got %v", err)
	}

	if _, err := c.run("org", "room", "create", "Bad", "--pool", "1.0000000001"); err == nil {
		t.Fatal("expected error for too many decimals")
	}
	if _, err := c.run("org", "claim", "list", "--resolved", "--pending"); err == nil {
		t.Fatal("expected error for mutually exclusive flags")
	}

	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"--transport", "carrier-pigeon", "health"})
	if err := rootCmd.ExecuteContext(context.Background()); err == nil || !strings.Contains(err.Error(), "unknown transport") {
		t.Fatalf("expected unknown transport error, got %v", err)
	}
}

func TestParseDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseDeadline("72h", now)
	if err != nil || !got.Equal(now.Add(72*time.Hour)) {
		t.Fatalf("duration: %v, %v", got, err)
	}
	got, err = parseDeadline("2026-04-01T00:00:00+02:00", now)
	if err != nil || !got.Equal(time.Date(2026, 3, 31, 22, 0, 0, 0, time.UTC)) || got.Location() != time.UTC {
		t.Fatalf("rfc3339: %v, %v", got, err)
	}
	for _, bad := range []string{"-1h", "tomorrow"} {
		if _, err := parseDeadline(bad, now); err == nil {
			t.Errorf("parseDeadline(%q) should fail", bad)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		units bool
		want  uint64
		ok    bool
	}{
		{"1.5", false, 1_500_000_000, true},
		{"700", true, 700, true},
		{"1.5", true, 0, false},
		{"-1", true, 0, false},
		{"-1", false, 0, false},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in, tt.units)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("parseAmount(%q, %v) = %d, %v", tt.in, tt.units, got, err)
		}
	}
}
