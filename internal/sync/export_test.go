package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store/memstore"
)

var snapshotTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seededStore holds a whitelist with two voters, two rooms, one resolved
// claim and one open claim.
func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	mem := memstore.New()
	eng := engine.New(mem, engine.WithClock(func() time.Time { return snapshotTime }))
	ctx := context.Background()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_, err := eng.InitializeWhitelist(ctx, "org")
	must(err)
	for _, v := range []string{"v1", "v2"} {
		_, err = eng.AddToWhitelist(ctx, "org", v)
		must(err)
	}

	var rooms []*model.Room
	for _, id := range []string{"semis", "finals"} {
		res, err := eng.CreateRoom(ctx, engine.CreateRoomRequest{Organizer: "org", RoomID: id, Name: id, VoteThreshold: 50})
		must(err)
		rooms = append(rooms, res.Room)
	}
	_, err = eng.Deposit(ctx, rooms[0].Address, "org", 300)
	must(err)
	_, err = eng.JoinRoom(ctx, rooms[0].Address, "alice")
	must(err)

	won, err := eng.SubmitClaim(ctx, engine.SubmitClaimRequest{Room: rooms[0].Address, Claimant: "alice", ClaimID: "c1"})
	must(err)
	_, err = eng.CastVote(ctx, won.Address, "v1", true)
	must(err)
	_, err = eng.ResolveClaim(ctx, engine.ResolveRequest{Room: rooms[0].Address, Claim: won.Address})
	must(err)

	_, err = eng.SubmitClaim(ctx, engine.SubmitClaimRequest{Room: rooms[1].Address, Claimant: "bob", ClaimID: "c2"})
	must(err)
	return mem
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func recordTypes(t *testing.T, lines []string) []string {
	t.Helper()
	var types []string
	for _, line := range lines {
		var r struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		types = append(types, r.Type)
	}
	return types
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), memstore.New(), &buf, snapshotTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}
	var h Header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != SnapshotVersion || h.Type != "header" || h.RoomCount != 0 || !h.Timestamp.Equal(snapshotTime) {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_Ledger(t *testing.T) {
	mem := seededStore(t)
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), mem, &buf, snapshotTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	got := strings.Join(recordTypes(t, lines), ",")
	want := "header,whitelist,room,room,claim,claim,reputation"
	if got != want {
		t.Fatalf("record types = %s, want %s", got, want)
	}

	var h Header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.RoomCount != 2 || h.ClaimCount != 2 || h.ReputationCount != 1 {
		t.Fatalf("header = %+v", h)
	}

	// Rooms are ordered by address and carry their vault slot.
	var r1, r2 struct {
		Data struct {
			Address      string               `json:"address"`
			RoomID       string               `json:"room_id"`
			VaultAccount *model.Account       `json:"vault_account"`
			Participants []*model.Participant `json:"participants"`
			Deposits     []*model.Deposit     `json:"deposits"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[2]), &r1); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[3]), &r2); err != nil {
		t.Fatal(err)
	}
	if r1.Data.Address >= r2.Data.Address {
		t.Fatalf("rooms not sorted: %s >= %s", r1.Data.Address, r2.Data.Address)
	}
	semis := r1.Data
	if semis.RoomID != "semis" {
		semis = r2.Data
	}
	if semis.VaultAccount == nil || semis.VaultAccount.Balance != model.VaultReserve {
		t.Fatalf("semis vault = %+v", semis.VaultAccount)
	}
	if len(semis.Participants) != 1 || len(semis.Deposits) != 1 {
		t.Fatalf("semis participants = %d, deposits = %d", len(semis.Participants), len(semis.Deposits))
	}

	var rep struct {
		Data model.Reputation `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[6]), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Data.Player != "alice" || rep.Data.Wins != 1 {
		t.Fatalf("reputation = %+v", rep.Data)
	}
}

func TestExportJSONL_Deterministic(t *testing.T) {
	mem := seededStore(t)
	var a, b bytes.Buffer
	if err := ExportJSONL(context.Background(), mem, &a, snapshotTime); err != nil {
		t.Fatal(err)
	}
	if err := ExportJSONL(context.Background(), mem, &b, snapshotTime); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatal("two exports of the same ledger differ")
	}
}

func TestExportJSONL_StoreError(t *testing.T) {
	mem := seededStore(t)
	boom := errors.New("boom")
	mem.FailNext("ListClaims", boom)

	err := ExportJSONL(context.Background(), mem, &bytes.Buffer{}, snapshotTime)
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "list claims") {
		t.Fatalf("err = %v", err)
	}
}
