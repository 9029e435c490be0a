// Package sqlite implements store.Store on an embedded SQLite database
// through gorm. It backs single-node deployments (store: sqlite).
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// Store is a SQLite-backed store.Store.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	inTx   bool
}

var _ store.Store = (*Store)(nil)

// New opens the database under dataDir, creating the directory when needed.
// An empty dataDir opens a private in-memory database.
func New(dataDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var dsn string
	if dataDir == "" {
		// A unique name keeps concurrent in-memory stores apart.
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		path := filepath.Join(dataDir, "trustplay.sqlite")
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite has a single writer; one connection also keeps an in-memory
	// database alive for the life of the store.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("sqlite tracing: %w", err)
	}

	for _, m := range migrateModels {
		logger.Debug("migrating table", "model", fmt.Sprintf("%T", m))
		if err := db.AutoMigrate(m); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunInTransaction runs fn in a transaction. Calls nested inside fn reuse
// the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, logger: s.logger, inTx: true})
	})
}

// atomic runs fn in the current transaction or a fresh one.
func (s *Store) atomic(ctx context.Context, fn func(tx *Store) error) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return fn(tx.(*Store))
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// mapErr converts gorm and driver errors into the model sentinels.
func mapErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w", what, model.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// fitsColumn rejects amounts above the signed 64-bit INTEGER range.
func fitsColumn(vals ...uint64) error {
	for _, v := range vals {
		if v > math.MaxInt64 {
			return model.ErrNumericalOverflow
		}
	}
	return nil
}

// --- Rooms ---

func (s *Store) CreateRoom(ctx context.Context, r *model.Room) error {
	if err := fitsColumn(r.TotalPool); err != nil {
		return fmt.Errorf("create room %s: %w", r.RoomID, err)
	}
	return mapErr(s.conn(ctx).Create(newRoomRow(r)).Error, "create room "+r.RoomID)
}

func (s *Store) GetRoom(ctx context.Context, address string) (*model.Room, error) {
	var row roomRow
	if err := s.conn(ctx).Where("address = ?", address).First(&row).Error; err != nil {
		return nil, mapErr(err, "get room")
	}
	return row.model(), nil
}

func (s *Store) ListRooms(ctx context.Context, filter model.RoomFilter) ([]*model.Room, int, error) {
	q := s.conn(ctx).Model(&roomRow{})
	if filter.Organizer != "" {
		q = q.Where("organizer = ?", filter.Organizer)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}

	q = q.Order("created_at DESC").Order("address")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var rows []roomRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}
	out := make([]*model.Room, len(rows))
	for i := range rows {
		out[i] = rows[i].model()
	}
	return out, int(total), nil
}

func (s *Store) UpdateRoomStatus(ctx context.Context, address string, status model.RoomStatus) error {
	res := s.conn(ctx).Model(&roomRow{}).Where("address = ?", address).Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("update room status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update room status: %w", model.ErrNotFound)
	}
	return nil
}

// --- Participants ---

func (s *Store) AddParticipant(ctx context.Context, p *model.Participant) error {
	row := &participantRow{Room: p.Room, Player: p.Player, JoinedAt: p.JoinedAt}
	return mapErr(s.conn(ctx).Create(row).Error, "join "+p.Player)
}

func (s *Store) ListParticipants(ctx context.Context, room string) ([]*model.Participant, error) {
	var rows []participantRow
	if err := s.conn(ctx).Where("room = ?", room).Order("joined_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	out := make([]*model.Participant, len(rows))
	for i, r := range rows {
		out[i] = &model.Participant{Room: r.Room, Player: r.Player, JoinedAt: r.JoinedAt}
	}
	return out, nil
}

// --- Claims ---

func (s *Store) CreateClaim(ctx context.Context, c *model.Claim) error {
	if err := fitsColumn(c.VotesFor, c.VotesAgainst, c.Payout); err != nil {
		return fmt.Errorf("create claim %s: %w", c.ClaimID, err)
	}
	return mapErr(s.conn(ctx).Create(newClaimRow(c)).Error, "create claim "+c.ClaimID)
}

func (s *Store) GetClaim(ctx context.Context, address string) (*model.Claim, error) {
	var row claimRow
	if err := s.conn(ctx).Where("address = ?", address).First(&row).Error; err != nil {
		return nil, mapErr(err, "get claim")
	}
	return row.model(), nil
}

func (s *Store) ListClaims(ctx context.Context, filter model.ClaimFilter) ([]*model.Claim, error) {
	q := s.conn(ctx).Model(&claimRow{})
	if filter.Room != "" {
		q = q.Where("room = ?", filter.Room)
	}
	if filter.Claimant != "" {
		q = q.Where("claimant = ?", filter.Claimant)
	}
	if filter.Resolved != nil {
		q = q.Where("resolved = ?", *filter.Resolved)
	}
	q = q.Order("created_at").Order("address")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var rows []claimRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	out := make([]*model.Claim, len(rows))
	for i := range rows {
		out[i] = rows[i].model()
	}
	return out, nil
}

func (s *Store) UpdateClaim(ctx context.Context, c *model.Claim) error {
	if err := fitsColumn(c.VotesFor, c.VotesAgainst, c.Payout); err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	res := s.conn(ctx).Model(&claimRow{}).Where("address = ?", c.Address).Updates(map[string]any{
		"votes_for":     c.VotesFor,
		"votes_against": c.VotesAgainst,
		"resolved":      c.Resolved,
		"accepted":      c.Accepted,
		"payout":        c.Payout,
		"resolved_at":   c.ResolvedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("update claim: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update claim: %w", model.ErrNotFound)
	}
	return nil
}

// --- Votes ---

func (s *Store) CreateVoterRecord(ctx context.Context, v *model.VoterRecord) error {
	row := &voterRecordRow{Claim: v.Claim, Voter: v.Voter, Accept: v.Accept, CastAt: v.CastAt}
	return mapErr(s.conn(ctx).Create(row).Error, "vote by "+v.Voter)
}

func (s *Store) ListVoterRecords(ctx context.Context, claim string) ([]*model.VoterRecord, error) {
	var rows []voterRecordRow
	if err := s.conn(ctx).Where("claim = ?", claim).Order("cast_at").Order("voter").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	out := make([]*model.VoterRecord, len(rows))
	for i, r := range rows {
		out[i] = &model.VoterRecord{Claim: r.Claim, Voter: r.Voter, Accept: r.Accept, CastAt: r.CastAt}
	}
	return out, nil
}

// --- Whitelist ---

func (s *Store) CreateWhitelist(ctx context.Context, w *model.Whitelist) error {
	var n int64
	if err := s.conn(ctx).Model(&whitelistRow{}).Count(&n).Error; err != nil {
		return fmt.Errorf("create whitelist: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("create whitelist: %w", model.ErrDuplicate)
	}
	row := &whitelistRow{Address: w.Address, Admin: w.Admin, Salt: w.Salt, CreatedAt: w.CreatedAt}
	return mapErr(s.conn(ctx).Create(row).Error, "create whitelist")
}

func (s *Store) GetWhitelist(ctx context.Context) (*model.Whitelist, error) {
	var row whitelistRow
	if err := s.conn(ctx).First(&row).Error; err != nil {
		return nil, mapErr(err, "get whitelist")
	}
	members := []string{}
	if err := s.conn(ctx).Model(&whitelistMemberRow{}).Order("position").Pluck("member", &members).Error; err != nil {
		return nil, fmt.Errorf("get whitelist members: %w", err)
	}
	return &model.Whitelist{
		Address:   row.Address,
		Admin:     row.Admin,
		Members:   members,
		Salt:      row.Salt,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *Store) AddWhitelistMember(ctx context.Context, identity string) error {
	return mapErr(s.conn(ctx).Create(&whitelistMemberRow{Member: identity}).Error, "add member "+identity)
}

func (s *Store) RemoveWhitelistMember(ctx context.Context, identity string) error {
	res := s.conn(ctx).Where("member = ?", identity).Delete(&whitelistMemberRow{})
	if res.Error != nil {
		return fmt.Errorf("remove member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("remove member %s: %w", identity, model.ErrNotFound)
	}
	return nil
}

// --- Reputation ---

func (s *Store) GetReputation(ctx context.Context, player string) (*model.Reputation, error) {
	var row reputationRow
	if err := s.conn(ctx).Where("player = ?", player).First(&row).Error; err != nil {
		return nil, mapErr(err, "get reputation")
	}
	return row.model(), nil
}

func (s *Store) PutReputation(ctx context.Context, r *model.Reputation) error {
	if err := fitsColumn(r.Score); err != nil {
		return fmt.Errorf("put reputation: %w", err)
	}
	row := &reputationRow{
		Player:      r.Player,
		Score:       r.Score,
		Wins:        r.Wins,
		Initialized: r.Initialized,
		UpdatedAt:   r.UpdatedAt,
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "wins", "initialized", "updated_at"}),
	}).Create(row).Error
	return mapErr(err, "put reputation")
}

func (s *Store) ListReputations(ctx context.Context) ([]*model.Reputation, error) {
	var rows []reputationRow
	if err := s.conn(ctx).Order("score DESC").Order("player").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reputations: %w", err)
	}
	out := make([]*model.Reputation, len(rows))
	for i := range rows {
		out[i] = rows[i].model()
	}
	return out, nil
}

// --- Custody slots ---

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := fitsColumn(a.Balance, a.Reserve); err != nil {
		return fmt.Errorf("create account %s: %w", a.Address, err)
	}
	return mapErr(s.conn(ctx).Create(newAccountRow(a)).Error, "create account "+a.Address)
}

func (s *Store) GetAccount(ctx context.Context, address string) (*model.Account, error) {
	var row accountRow
	if err := s.conn(ctx).Where("address = ?", address).First(&row).Error; err != nil {
		return nil, mapErr(err, "get account")
	}
	return row.model(), nil
}

func (s *Store) saveAccount(ctx context.Context, a *model.Account) error {
	if err := fitsColumn(a.Balance, a.Reserve); err != nil {
		return fmt.Errorf("save account %s: %w", a.Address, err)
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "reserve", "data_len"}),
	}).Create(newAccountRow(a)).Error
	return mapErr(err, "save account "+a.Address)
}

func (s *Store) loadOrNew(ctx context.Context, address string) (*model.Account, error) {
	a, err := s.GetAccount(ctx, address)
	if errors.Is(err, model.ErrNotFound) {
		return &model.Account{Address: address}, nil
	}
	return a, err
}

func (s *Store) Credit(ctx context.Context, address string, amount uint64) error {
	return s.atomic(ctx, func(tx *Store) error {
		a, err := tx.loadOrNew(ctx, address)
		if err != nil {
			return err
		}
		if err := store.CreditAccount(a, amount); err != nil {
			return err
		}
		return tx.saveAccount(ctx, a)
	})
}

func (s *Store) Transfer(ctx context.Context, from, to string, amount uint64, auth store.Authority) error {
	if err := store.VerifyAuthority(auth, from); err != nil {
		return err
	}
	return s.atomic(ctx, func(tx *Store) error {
		src, err := tx.GetAccount(ctx, from)
		if err != nil {
			return fmt.Errorf("transfer from %s: %w", from, err)
		}
		if err := store.Debit(src, amount); err != nil {
			return err
		}
		if err := tx.saveAccount(ctx, src); err != nil {
			return err
		}
		dst, err := tx.loadOrNew(ctx, to)
		if err != nil {
			return err
		}
		if err := store.CreditAccount(dst, amount); err != nil {
			return err
		}
		return tx.saveAccount(ctx, dst)
	})
}

func (s *Store) ReserveFor(ctx context.Context, slot, _ string, dataLen int) error {
	return s.atomic(ctx, func(tx *Store) error {
		a, err := tx.GetAccount(ctx, slot)
		if err != nil {
			return err
		}
		if _, err := store.Grow(a, dataLen); err != nil {
			return err
		}
		return tx.saveAccount(ctx, a)
	})
}

func (s *Store) ReleaseReserve(ctx context.Context, slot, refundTo string, dataLen int) error {
	return s.atomic(ctx, func(tx *Store) error {
		a, err := tx.GetAccount(ctx, slot)
		if err != nil {
			return err
		}
		refund, err := store.Shrink(a, dataLen)
		if err != nil {
			return err
		}
		if err := tx.saveAccount(ctx, a); err != nil {
			return err
		}
		if refund == 0 {
			return nil
		}
		return tx.Credit(ctx, refundTo, refund)
	})
}

// --- Deposits ---

func (s *Store) RecordDeposit(ctx context.Context, d *model.Deposit) error {
	if err := fitsColumn(d.Amount); err != nil {
		return fmt.Errorf("record deposit: %w", err)
	}
	row := &depositRow{Room: d.Room, Payer: d.Payer, Amount: d.Amount, CreatedAt: d.CreatedAt}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		return mapErr(err, "record deposit")
	}
	d.ID = row.ID
	return nil
}

func (s *Store) ListDeposits(ctx context.Context, room string) ([]*model.Deposit, error) {
	var rows []depositRow
	if err := s.conn(ctx).Where("room = ?", room).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	out := make([]*model.Deposit, len(rows))
	for i, r := range rows {
		out[i] = &model.Deposit{ID: r.ID, Room: r.Room, Payer: r.Payer, Amount: r.Amount, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

// --- Events ---

func (s *Store) RecordEvent(ctx context.Context, e *model.Event) error {
	row := &eventRow{
		Topic:     e.Topic,
		Ref:       e.Ref,
		Actor:     e.Actor,
		Payload:   []byte(e.Payload),
		CreatedAt: e.CreatedAt,
	}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		return mapErr(err, "record event")
	}
	e.ID = row.ID
	e.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) GetEvents(ctx context.Context, ref string) ([]*model.Event, error) {
	var rows []eventRow
	if err := s.conn(ctx).Where("ref = ?", ref).Order("created_at").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	out := make([]*model.Event, len(rows))
	for i := range rows {
		out[i] = rows[i].model()
	}
	return out, nil
}
