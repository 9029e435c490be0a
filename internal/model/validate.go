package model

import (
	"fmt"
	"strings"
	"unicode"
)

// Field limits for stored strings, in bytes.
const (
	MaxRoomIDLen    = 32
	MaxRoomNameLen  = 64
	MaxClaimIDLen   = 50
	MaxProofHashLen = 50
	MaxIdentityLen  = 64
	MaxThreshold    = 100
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) identity(field, v string) {
	switch {
	case strings.TrimSpace(v) == "":
		e.add(field, "is required")
	case len(v) > MaxIdentityLen:
		e.add(field, fmt.Sprintf("must be %d bytes or fewer", MaxIdentityLen))
	case hasControl(v):
		e.add(field, "must not contain control characters")
	case IsDerivedAddress(v):
		e.add(field, "must not be a derived slot address")
	}
}

func (e *ValidationError) bounded(field, v string, max int, required bool) {
	switch {
	case required && strings.TrimSpace(v) == "":
		e.add(field, "is required")
	case len(v) > max:
		e.add(field, fmt.Sprintf("must be %d bytes or fewer", max))
	case hasControl(v):
		e.add(field, "must not contain control characters")
	}
}

// hasControl reports whether v holds a control character. Seeds are joined
// with NUL when deriving addresses, so they must not contain one.
func hasControl(v string) bool {
	return strings.ContainsFunc(v, unicode.IsControl)
}

func (e *ValidationError) result() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// ValidateRoom checks a Room before creation.
func ValidateRoom(r *Room) error {
	var ve ValidationError
	ve.identity("organizer", r.Organizer)
	ve.bounded("room_id", r.RoomID, MaxRoomIDLen, true)
	ve.bounded("name", r.Name, MaxRoomNameLen, true)
	if r.VoteThreshold > MaxThreshold {
		ve.add("vote_threshold", fmt.Sprintf("must be between 0 and %d, got %d", MaxThreshold, r.VoteThreshold))
	}
	if !r.Status.IsValid() {
		ve.add("status", fmt.Sprintf("invalid value %q", r.Status))
	}
	if !r.DeadlineAt.IsZero() && r.DeadlineAt.Before(r.CreatedAt) {
		ve.add("deadline", "must not be before creation time")
	}
	return ve.result()
}

// ValidateClaim checks a Claim before submission.
func ValidateClaim(c *Claim) error {
	var ve ValidationError
	ve.identity("claimant", c.Claimant)
	ve.bounded("room", c.Room, 2*MaxIdentityLen, true)
	ve.bounded("claim_id", c.ClaimID, MaxClaimIDLen, true)
	ve.bounded("proof_hash", c.ProofHash, MaxProofHashLen, false)
	return ve.result()
}

// ValidateIdentity checks a single caller or member identity.
func ValidateIdentity(field, v string) error {
	var ve ValidationError
	ve.identity(field, v)
	return ve.result()
}

// ValidateAmount rejects zero-value transfers.
func ValidateAmount(amount uint64) error {
	if amount == 0 {
		return &ValidationError{Errors: []FieldError{{Field: "amount", Message: "must be greater than zero"}}}
	}
	return nil
}
