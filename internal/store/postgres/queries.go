package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// Column lists used for SELECT statements.
const (
	roomColumns = `address, organizer, room_id, name, vault, total_pool, status,
	created_at, deadline_at, vote_threshold, salt`
	claimColumns = `address, room, claimant, claim_id, proof_hash, votes_for,
	votes_against, resolved, accepted, payout, created_at, resolved_at`
	accountColumns = `address, owner, balance, reserve, data_len, salt`
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapErr converts driver errors into the model sentinels.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", what, model.ErrDuplicate)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// requireRow turns a zero-row write into model.ErrNotFound.
func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return nil
}

func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

// --- Rooms ---

func queryCreateRoom(ctx context.Context, db executor, r *model.Room) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO rooms (
			address, organizer, room_id, name, vault, total_pool, status,
			created_at, deadline_at, vote_threshold, salt
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.Address,
		r.Organizer,
		r.RoomID,
		r.Name,
		r.Vault,
		numeric(r.TotalPool),
		string(r.Status),
		r.CreatedAt,
		nullTime(r.DeadlineAt),
		int(r.VoteThreshold),
		int(r.Salt),
	)
	return mapErr(err, "create room "+r.RoomID)
}

func queryGetRoom(ctx context.Context, db executor, address string, lock bool) (*model.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE address = $1`+forUpdate(lock), address)
	r, err := scanRoom(row)
	if err != nil {
		return nil, mapErr(err, "get room")
	}
	return r, nil
}

func queryListRooms(ctx context.Context, db executor, filter model.RoomFilter) ([]*model.Room, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Organizer != "" {
		whereClauses = append(whereClauses, "organizer = "+nextArg())
		args = append(args, filter.Organizer)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + roomColumns + " FROM rooms" + whereSQL + " ORDER BY created_at DESC, address"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*model.Room
	var total int
	for rows.Next() {
		r, t, err := scanRoomWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan rooms: %w", err)
		}
		total = t
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan rooms: %w", err)
	}
	return rooms, total, nil
}

func queryUpdateRoomStatus(ctx context.Context, db executor, address string, status model.RoomStatus) error {
	res, err := db.ExecContext(ctx, `UPDATE rooms SET status = $2 WHERE address = $1`, address, string(status))
	if err != nil {
		return fmt.Errorf("update room status: %w", err)
	}
	return requireRow(res, "update room status")
}

// --- Participants ---

func queryAddParticipant(ctx context.Context, db executor, p *model.Participant) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO participants (room, player, joined_at)
		VALUES ($1, $2, $3)`,
		p.Room, p.Player, p.JoinedAt,
	)
	return mapErr(err, "join "+p.Player)
}

func queryListParticipants(ctx context.Context, db executor, room string) ([]*model.Participant, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT room, player, joined_at
		FROM participants
		WHERE room = $1
		ORDER BY joined_at ASC`,
		room,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanParticipants(rows)
}

// --- Claims ---

func queryCreateClaim(ctx context.Context, db executor, c *model.Claim) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO claims (
			address, room, claimant, claim_id, proof_hash, votes_for,
			votes_against, resolved, accepted, payout, created_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.Address,
		c.Room,
		c.Claimant,
		c.ClaimID,
		c.ProofHash,
		numeric(c.VotesFor),
		numeric(c.VotesAgainst),
		c.Resolved,
		c.Accepted,
		numeric(c.Payout),
		c.CreatedAt,
		nullTimePtr(c.ResolvedAt),
	)
	return mapErr(err, "create claim "+c.ClaimID)
}

func queryGetClaim(ctx context.Context, db executor, address string, lock bool) (*model.Claim, error) {
	row := db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE address = $1`+forUpdate(lock), address)
	c, err := scanClaim(row)
	if err != nil {
		return nil, mapErr(err, "get claim")
	}
	return c, nil
}

func queryListClaims(ctx context.Context, db executor, filter model.ClaimFilter) ([]*model.Claim, error) {
	var (
		whereClauses []string
		args         []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		whereClauses = append(whereClauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Room != "" {
		add("room = $%d", filter.Room)
	}
	if filter.Claimant != "" {
		add("claimant = $%d", filter.Claimant)
	}
	if filter.Resolved != nil {
		add("resolved = $%d", *filter.Resolved)
	}

	q := `SELECT ` + claimColumns + ` FROM claims`
	if len(whereClauses) > 0 {
		q += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	q += " ORDER BY created_at ASC, address"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()
	return scanClaims(rows)
}

func queryUpdateClaim(ctx context.Context, db executor, c *model.Claim) error {
	res, err := db.ExecContext(ctx, `
		UPDATE claims SET
			votes_for = $2,
			votes_against = $3,
			resolved = $4,
			accepted = $5,
			payout = $6,
			resolved_at = $7
		WHERE address = $1`,
		c.Address,
		numeric(c.VotesFor),
		numeric(c.VotesAgainst),
		c.Resolved,
		c.Accepted,
		numeric(c.Payout),
		nullTimePtr(c.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	return requireRow(res, "update claim")
}

// --- Votes ---

func queryCreateVoterRecord(ctx context.Context, db executor, v *model.VoterRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO voter_records (claim, voter, accept, cast_at)
		VALUES ($1, $2, $3, $4)`,
		v.Claim, v.Voter, v.Accept, v.CastAt,
	)
	return mapErr(err, "vote by "+v.Voter)
}

func queryListVoterRecords(ctx context.Context, db executor, claim string) ([]*model.VoterRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT claim, voter, accept, cast_at
		FROM voter_records
		WHERE claim = $1
		ORDER BY cast_at ASC, voter`,
		claim,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVoterRecords(rows)
}

// --- Whitelist ---

func queryCreateWhitelist(ctx context.Context, db executor, w *model.Whitelist) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO whitelist (address, admin, salt, created_at)
		VALUES ($1, $2, $3, $4)`,
		w.Address, w.Admin, int(w.Salt), w.CreatedAt,
	)
	return mapErr(err, "create whitelist")
}

func queryGetWhitelist(ctx context.Context, db executor, lock bool) (*model.Whitelist, error) {
	var w model.Whitelist
	err := db.QueryRowContext(ctx, `SELECT address, admin, salt, created_at FROM whitelist LIMIT 1`+forUpdate(lock)).
		Scan(&w.Address, &w.Admin, &w.Salt, &w.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "get whitelist")
	}

	rows, err := db.QueryContext(ctx, `SELECT member FROM whitelist_members ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("get whitelist members: %w", err)
	}
	defer rows.Close()

	w.Members = []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		w.Members = append(w.Members, m)
	}
	return &w, rows.Err()
}

func queryAddWhitelistMember(ctx context.Context, db executor, identity string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO whitelist_members (member) VALUES ($1)`, identity)
	return mapErr(err, "add member "+identity)
}

func queryRemoveWhitelistMember(ctx context.Context, db executor, identity string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM whitelist_members WHERE member = $1`, identity)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return requireRow(res, "remove member "+identity)
}

// --- Reputation ---

func queryGetReputation(ctx context.Context, db executor, player string, lock bool) (*model.Reputation, error) {
	var r model.Reputation
	err := db.QueryRowContext(ctx, `
		SELECT player, score, wins, initialized, updated_at
		FROM reputations WHERE player = $1`+forUpdate(lock), player).
		Scan(&r.Player, &r.Score, &r.Wins, &r.Initialized, &r.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "get reputation")
	}
	return &r, nil
}

func queryPutReputation(ctx context.Context, db executor, r *model.Reputation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reputations (player, score, wins, initialized, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player) DO UPDATE
		SET score = EXCLUDED.score, wins = EXCLUDED.wins,
			initialized = EXCLUDED.initialized, updated_at = EXCLUDED.updated_at`,
		r.Player, numeric(r.Score), int64(r.Wins), r.Initialized, r.UpdatedAt,
	)
	return mapErr(err, "put reputation")
}

func queryListReputations(ctx context.Context, db executor) ([]*model.Reputation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT player, score, wins, initialized, updated_at
		FROM reputations
		ORDER BY score DESC, player`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Reputation
	for rows.Next() {
		var r model.Reputation
		if err := rows.Scan(&r.Player, &r.Score, &r.Wins, &r.Initialized, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// --- Custody slots ---

func queryCreateAccount(ctx context.Context, db executor, a *model.Account) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.Address, a.Owner, numeric(a.Balance), numeric(a.Reserve), a.DataLen, int(a.Salt),
	)
	return mapErr(err, "create account "+a.Address)
}

func queryGetAccount(ctx context.Context, db executor, address string, lock bool) (*model.Account, error) {
	row := db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE address = $1`+forUpdate(lock), address)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapErr(err, "get account")
	}
	return a, nil
}

func querySaveAccount(ctx context.Context, db executor, a *model.Account) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE
		SET balance = EXCLUDED.balance, reserve = EXCLUDED.reserve, data_len = EXCLUDED.data_len`,
		a.Address, a.Owner, numeric(a.Balance), numeric(a.Reserve), a.DataLen, int(a.Salt),
	)
	return mapErr(err, "save account "+a.Address)
}

// loadOrNew returns the locked slot at address, or a fresh ownerless one.
func loadOrNew(ctx context.Context, db executor, address string) (*model.Account, error) {
	a, err := queryGetAccount(ctx, db, address, true)
	if errors.Is(err, model.ErrNotFound) {
		return &model.Account{Address: address}, nil
	}
	return a, err
}

// The balance mutations below read the rows they touch with FOR UPDATE and
// must run inside a transaction.

func queryCredit(ctx context.Context, db executor, address string, amount uint64) error {
	a, err := loadOrNew(ctx, db, address)
	if err != nil {
		return err
	}
	if err := store.CreditAccount(a, amount); err != nil {
		return err
	}
	return querySaveAccount(ctx, db, a)
}

func queryTransfer(ctx context.Context, db executor, from, to string, amount uint64, auth store.Authority) error {
	if err := store.VerifyAuthority(auth, from); err != nil {
		return err
	}

	// Lock in address order so concurrent transfers cannot deadlock.
	first, second := from, to
	if second < first {
		first, second = second, first
	}
	locked := map[string]*model.Account{}
	for _, addr := range []string{first, second} {
		if addr == from {
			a, err := queryGetAccount(ctx, db, addr, true)
			if err != nil {
				return fmt.Errorf("transfer from %s: %w", from, err)
			}
			locked[addr] = a
			continue
		}
		a, err := loadOrNew(ctx, db, addr)
		if err != nil {
			return err
		}
		locked[addr] = a
	}

	src, dst := locked[from], locked[to]
	if err := store.Debit(src, amount); err != nil {
		return err
	}
	if err := store.CreditAccount(dst, amount); err != nil {
		return err
	}
	if err := querySaveAccount(ctx, db, src); err != nil {
		return err
	}
	return querySaveAccount(ctx, db, dst)
}

func queryReserveFor(ctx context.Context, db executor, slot string, dataLen int) error {
	a, err := queryGetAccount(ctx, db, slot, true)
	if err != nil {
		return err
	}
	if _, err := store.Grow(a, dataLen); err != nil {
		return err
	}
	return querySaveAccount(ctx, db, a)
}

func queryReleaseReserve(ctx context.Context, db executor, slot, refundTo string, dataLen int) error {
	a, err := queryGetAccount(ctx, db, slot, true)
	if err != nil {
		return err
	}
	refund, err := store.Shrink(a, dataLen)
	if err != nil {
		return err
	}
	if err := querySaveAccount(ctx, db, a); err != nil {
		return err
	}
	if refund == 0 {
		return nil
	}
	return queryCredit(ctx, db, refundTo, refund)
}

// --- Deposits ---

func queryRecordDeposit(ctx context.Context, db executor, d *model.Deposit) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO deposits (room, payer, amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		d.Room, d.Payer, numeric(d.Amount), d.CreatedAt,
	).Scan(&d.ID)
}

func queryListDeposits(ctx context.Context, db executor, room string) ([]*model.Deposit, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, room, payer, amount, created_at
		FROM deposits
		WHERE room = $1
		ORDER BY id ASC`,
		room,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Deposit
	for rows.Next() {
		var d model.Deposit
		if err := rows.Scan(&d.ID, &d.Room, &d.Payer, &d.Amount, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// --- Events ---

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, ref, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.Ref, e.Actor, []byte(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, ref string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, ref, actor, payload, created_at
		FROM events
		WHERE ref = $1
		ORDER BY created_at ASC, id ASC`,
		ref,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}
