package model

import "errors"

// Settlement errors. Every one aborts the operation that returned it.
var (
	ErrNumericalOverflow   = errors.New("number overflow")
	ErrAlreadyResolved     = errors.New("already resolved")
	ErrNoVotes             = errors.New("no votes")
	ErrNoParticipants      = errors.New("no participants")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrVoterNotWhitelisted = errors.New("voter is not whitelisted")
	ErrInvalidVaultAccount = errors.New("invalid vault account")
)

// Record and authority errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrUnauthorized      = errors.New("caller is not authorized")
	ErrInvalidAuthority  = errors.New("invalid authority for slot")
	ErrRoomClosed        = errors.New("room is closed")
	ErrDeadlinePassed    = errors.New("room deadline has passed")
	ErrClaimRoomMismatch = errors.New("claim does not belong to room")
	ErrClaimantMismatch  = errors.New("claimant does not match claim")
)

// CodeInvalidArgument is the code for a *ValidationError.
const CodeInvalidArgument = "invalid_argument"

// ErrorCode returns a stable machine-readable code for err, or "" when err
// is not one of the known kinds.
func ErrorCode(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return CodeInvalidArgument
	case errors.Is(err, ErrNumericalOverflow):
		return "numerical_overflow"
	case errors.Is(err, ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, ErrNoVotes):
		return "no_votes"
	case errors.Is(err, ErrNoParticipants):
		return "no_participants"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrVoterNotWhitelisted):
		return "voter_not_whitelisted"
	case errors.Is(err, ErrInvalidVaultAccount):
		return "invalid_vault_account"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidAuthority):
		return "invalid_authority"
	case errors.Is(err, ErrRoomClosed):
		return "room_closed"
	case errors.Is(err, ErrDeadlinePassed):
		return "deadline_passed"
	case errors.Is(err, ErrClaimRoomMismatch):
		return "claim_room_mismatch"
	case errors.Is(err, ErrClaimantMismatch):
		return "claimant_mismatch"
	}
	return ""
}

// errorsByCode maps codes back to sentinels so clients can rebuild typed
// errors from a response body.
var errorsByCode = map[string]error{
	"numerical_overflow":    ErrNumericalOverflow,
	"already_resolved":      ErrAlreadyResolved,
	"no_votes":              ErrNoVotes,
	"no_participants":       ErrNoParticipants,
	"insufficient_funds":    ErrInsufficientFunds,
	"voter_not_whitelisted": ErrVoterNotWhitelisted,
	"invalid_vault_account": ErrInvalidVaultAccount,
	"not_found":             ErrNotFound,
	"duplicate":             ErrDuplicate,
	"unauthorized":          ErrUnauthorized,
	"invalid_authority":     ErrInvalidAuthority,
	"room_closed":           ErrRoomClosed,
	"deadline_passed":       ErrDeadlinePassed,
	"claim_room_mismatch":   ErrClaimRoomMismatch,
	"claimant_mismatch":     ErrClaimantMismatch,
}

// ErrorForCode returns the sentinel for code, or nil.
func ErrorForCode(code string) error {
	return errorsByCode[code]
}
