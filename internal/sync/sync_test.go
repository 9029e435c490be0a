package sync

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/deepesh-sr/Trustplay/internal/store/memstore"
)

// leakOpts ignores keep-alive connections left by the S3 client tests.
var leakOpts = []goleak.Option{
	goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
}

// mockDestination records calls to Write.
type mockDestination struct {
	name   string
	err    error
	writes atomic.Int64
	last   atomic.Value // []byte
}

func (d *mockDestination) Name() string { return d.name }

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

func TestSchedulerStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	dest := &mockDestination{name: "mock"}
	sched := NewScheduler(seededStore(t), []Destination{dest}, 50*time.Millisecond, nil)
	sched.Start()

	// Wait for at least the initial snapshot and one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	if lines := nonEmptyLines(string(data)); len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(memstore.New(), nil, time.Minute, nil)
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	dest := &mockDestination{name: "mock"}
	sched := NewScheduler(memstore.New(), []Destination{dest}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for dest.writes.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("initial snapshot never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSyncOnceFailingDestination(t *testing.T) {
	bad := &mockDestination{name: "bad", err: errors.New("denied")}
	good := &mockDestination{name: "good"}
	sched := NewScheduler(memstore.New(), []Destination{bad, good}, time.Minute, nil)

	err := sched.SyncOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad: denied") {
		t.Fatalf("err = %v", err)
	}
	if good.writes.Load() != 1 {
		t.Fatal("healthy destination was skipped")
	}
}

func TestSyncOnceExportError(t *testing.T) {
	mem := memstore.New()
	mem.FailNext("ListRooms", errors.New("offline"))
	dest := &mockDestination{name: "mock"}

	if err := NewScheduler(mem, []Destination{dest}, time.Minute, nil).SyncOnce(context.Background()); err == nil {
		t.Fatal("expected export error")
	}
	if dest.writes.Load() != 0 {
		t.Fatal("destination written after a failed export")
	}
}
