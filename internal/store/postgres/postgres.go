// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateRoom(ctx context.Context, room *model.Room) error {
	return queryCreateRoom(ctx, s.db, room)
}

func (s *PostgresStore) GetRoom(ctx context.Context, address string) (*model.Room, error) {
	return queryGetRoom(ctx, s.db, address, false)
}

func (s *PostgresStore) ListRooms(ctx context.Context, filter model.RoomFilter) ([]*model.Room, int, error) {
	return queryListRooms(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateRoomStatus(ctx context.Context, address string, status model.RoomStatus) error {
	return queryUpdateRoomStatus(ctx, s.db, address, status)
}

func (s *PostgresStore) AddParticipant(ctx context.Context, p *model.Participant) error {
	return queryAddParticipant(ctx, s.db, p)
}

func (s *PostgresStore) ListParticipants(ctx context.Context, room string) ([]*model.Participant, error) {
	return queryListParticipants(ctx, s.db, room)
}

func (s *PostgresStore) CreateClaim(ctx context.Context, claim *model.Claim) error {
	return queryCreateClaim(ctx, s.db, claim)
}

func (s *PostgresStore) GetClaim(ctx context.Context, address string) (*model.Claim, error) {
	return queryGetClaim(ctx, s.db, address, false)
}

func (s *PostgresStore) ListClaims(ctx context.Context, filter model.ClaimFilter) ([]*model.Claim, error) {
	return queryListClaims(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateClaim(ctx context.Context, claim *model.Claim) error {
	return queryUpdateClaim(ctx, s.db, claim)
}

func (s *PostgresStore) CreateVoterRecord(ctx context.Context, v *model.VoterRecord) error {
	return queryCreateVoterRecord(ctx, s.db, v)
}

func (s *PostgresStore) ListVoterRecords(ctx context.Context, claim string) ([]*model.VoterRecord, error) {
	return queryListVoterRecords(ctx, s.db, claim)
}

func (s *PostgresStore) CreateWhitelist(ctx context.Context, w *model.Whitelist) error {
	return queryCreateWhitelist(ctx, s.db, w)
}

func (s *PostgresStore) GetWhitelist(ctx context.Context) (*model.Whitelist, error) {
	return queryGetWhitelist(ctx, s.db, false)
}

func (s *PostgresStore) AddWhitelistMember(ctx context.Context, identity string) error {
	return queryAddWhitelistMember(ctx, s.db, identity)
}

func (s *PostgresStore) RemoveWhitelistMember(ctx context.Context, identity string) error {
	return queryRemoveWhitelistMember(ctx, s.db, identity)
}

func (s *PostgresStore) GetReputation(ctx context.Context, player string) (*model.Reputation, error) {
	return queryGetReputation(ctx, s.db, player, false)
}

func (s *PostgresStore) PutReputation(ctx context.Context, r *model.Reputation) error {
	return queryPutReputation(ctx, s.db, r)
}

func (s *PostgresStore) ListReputations(ctx context.Context) ([]*model.Reputation, error) {
	return queryListReputations(ctx, s.db)
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	return queryCreateAccount(ctx, s.db, a)
}

func (s *PostgresStore) GetAccount(ctx context.Context, address string) (*model.Account, error) {
	return queryGetAccount(ctx, s.db, address, false)
}

func (s *PostgresStore) RecordDeposit(ctx context.Context, d *model.Deposit) error {
	return queryRecordDeposit(ctx, s.db, d)
}

func (s *PostgresStore) ListDeposits(ctx context.Context, room string) ([]*model.Deposit, error) {
	return queryListDeposits(ctx, s.db, room)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, ref string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, ref)
}

func (s *PostgresStore) Credit(ctx context.Context, address string, amount uint64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return queryCredit(ctx, tx, address, amount)
	})
}

func (s *PostgresStore) Transfer(ctx context.Context, from, to string, amount uint64, auth store.Authority) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return queryTransfer(ctx, tx, from, to, amount, auth)
	})
}

func (s *PostgresStore) ReserveFor(ctx context.Context, slot, _ string, dataLen int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return queryReserveFor(ctx, tx, slot, dataLen)
	})
}

func (s *PostgresStore) ReleaseReserve(ctx context.Context, slot, refundTo string, dataLen int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return queryReleaseReserve(ctx, tx, slot, refundTo, dataLen)
	})
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx. Single-record reads take
// row locks so concurrent operations on the same records serialize.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateRoom(ctx context.Context, room *model.Room) error {
	return queryCreateRoom(ctx, s.tx, room)
}

func (s *txStore) GetRoom(ctx context.Context, address string) (*model.Room, error) {
	return queryGetRoom(ctx, s.tx, address, true)
}

func (s *txStore) ListRooms(ctx context.Context, filter model.RoomFilter) ([]*model.Room, int, error) {
	return queryListRooms(ctx, s.tx, filter)
}

func (s *txStore) UpdateRoomStatus(ctx context.Context, address string, status model.RoomStatus) error {
	return queryUpdateRoomStatus(ctx, s.tx, address, status)
}

func (s *txStore) AddParticipant(ctx context.Context, p *model.Participant) error {
	return queryAddParticipant(ctx, s.tx, p)
}

func (s *txStore) ListParticipants(ctx context.Context, room string) ([]*model.Participant, error) {
	return queryListParticipants(ctx, s.tx, room)
}

func (s *txStore) CreateClaim(ctx context.Context, claim *model.Claim) error {
	return queryCreateClaim(ctx, s.tx, claim)
}

func (s *txStore) GetClaim(ctx context.Context, address string) (*model.Claim, error) {
	return queryGetClaim(ctx, s.tx, address, true)
}

func (s *txStore) ListClaims(ctx context.Context, filter model.ClaimFilter) ([]*model.Claim, error) {
	return queryListClaims(ctx, s.tx, filter)
}

func (s *txStore) UpdateClaim(ctx context.Context, claim *model.Claim) error {
	return queryUpdateClaim(ctx, s.tx, claim)
}

func (s *txStore) CreateVoterRecord(ctx context.Context, v *model.VoterRecord) error {
	return queryCreateVoterRecord(ctx, s.tx, v)
}

func (s *txStore) ListVoterRecords(ctx context.Context, claim string) ([]*model.VoterRecord, error) {
	return queryListVoterRecords(ctx, s.tx, claim)
}

func (s *txStore) CreateWhitelist(ctx context.Context, w *model.Whitelist) error {
	return queryCreateWhitelist(ctx, s.tx, w)
}

func (s *txStore) GetWhitelist(ctx context.Context) (*model.Whitelist, error) {
	return queryGetWhitelist(ctx, s.tx, true)
}

func (s *txStore) AddWhitelistMember(ctx context.Context, identity string) error {
	return queryAddWhitelistMember(ctx, s.tx, identity)
}

func (s *txStore) RemoveWhitelistMember(ctx context.Context, identity string) error {
	return queryRemoveWhitelistMember(ctx, s.tx, identity)
}

func (s *txStore) GetReputation(ctx context.Context, player string) (*model.Reputation, error) {
	return queryGetReputation(ctx, s.tx, player, true)
}

func (s *txStore) PutReputation(ctx context.Context, r *model.Reputation) error {
	return queryPutReputation(ctx, s.tx, r)
}

func (s *txStore) ListReputations(ctx context.Context) ([]*model.Reputation, error) {
	return queryListReputations(ctx, s.tx)
}

func (s *txStore) CreateAccount(ctx context.Context, a *model.Account) error {
	return queryCreateAccount(ctx, s.tx, a)
}

func (s *txStore) GetAccount(ctx context.Context, address string) (*model.Account, error) {
	return queryGetAccount(ctx, s.tx, address, true)
}

func (s *txStore) RecordDeposit(ctx context.Context, d *model.Deposit) error {
	return queryRecordDeposit(ctx, s.tx, d)
}

func (s *txStore) ListDeposits(ctx context.Context, room string) ([]*model.Deposit, error) {
	return queryListDeposits(ctx, s.tx, room)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, ref string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, ref)
}

func (s *txStore) Credit(ctx context.Context, address string, amount uint64) error {
	return queryCredit(ctx, s.tx, address, amount)
}

func (s *txStore) Transfer(ctx context.Context, from, to string, amount uint64, auth store.Authority) error {
	return queryTransfer(ctx, s.tx, from, to, amount, auth)
}

func (s *txStore) ReserveFor(ctx context.Context, slot, _ string, dataLen int) error {
	return queryReserveFor(ctx, s.tx, slot, dataLen)
}

func (s *txStore) ReleaseReserve(ctx context.Context, slot, refundTo string, dataLen int) error {
	return queryReleaseReserve(ctx, s.tx, slot, refundTo, dataLen)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
