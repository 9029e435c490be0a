package postgres

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// roomDest returns the scan targets for roomColumns.
func roomDest(r *model.Room, deadline *sql.NullTime) []any {
	return []any{
		&r.Address,
		&r.Organizer,
		&r.RoomID,
		&r.Name,
		&r.Vault,
		&r.TotalPool,
		&r.Status,
		&r.CreatedAt,
		deadline,
		&r.VoteThreshold,
		&r.Salt,
	}
}

// scanRoom scans a single row into a model.Room.
// The row must contain columns in the order defined by roomColumns.
func scanRoom(row scannable) (*model.Room, error) {
	var r model.Room
	var deadline sql.NullTime
	if err := row.Scan(roomDest(&r, &deadline)...); err != nil {
		return nil, err
	}
	if deadline.Valid {
		r.DeadlineAt = deadline.Time
	}
	return &r, nil
}

// scanRoomWithTotal scans a row that has a leading total_count column
// followed by the standard room columns.
func scanRoomWithTotal(row scannable) (*model.Room, int, error) {
	var total int
	var r model.Room
	var deadline sql.NullTime
	dest := append([]any{&total}, roomDest(&r, &deadline)...)
	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}
	if deadline.Valid {
		r.DeadlineAt = deadline.Time
	}
	return &r, total, nil
}

// scanClaim scans a single row into a model.Claim.
func scanClaim(row scannable) (*model.Claim, error) {
	var c model.Claim
	var resolvedAt sql.NullTime
	err := row.Scan(
		&c.Address,
		&c.Room,
		&c.Claimant,
		&c.ClaimID,
		&c.ProofHash,
		&c.VotesFor,
		&c.VotesAgainst,
		&c.Resolved,
		&c.Accepted,
		&c.Payout,
		&c.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	return &c, nil
}

func scanClaims(rows *sql.Rows) ([]*model.Claim, error) {
	var out []*model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// scanAccount scans a single row into a model.Account.
func scanAccount(row scannable) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.Address, &a.Owner, &a.Balance, &a.Reserve, &a.DataLen, &a.Salt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanParticipants(rows *sql.Rows) ([]*model.Participant, error) {
	var out []*model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.Room, &p.Player, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func scanVoterRecords(rows *sql.Rows) ([]*model.VoterRecord, error) {
	var out []*model.VoterRecord
	for rows.Next() {
		var v model.VoterRecord
		if err := rows.Scan(&v.Claim, &v.Voter, &v.Accept, &v.CastAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// scanEvents scans multiple rows into a slice of model.Event.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		var e model.Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Topic, &e.Ref, &e.Actor, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// numeric renders v for a NUMERIC(20,0) column; database/sql rejects
// uint64 arguments with the high bit set.
func numeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// nullTime converts a zero time.Time to a NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// nullTimePtr converts a *time.Time to sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
