package server

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// httpStatusFor maps an engine error to an HTTP status code.
func httpStatusFor(err error) int {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, model.ErrClaimRoomMismatch),
		errors.Is(err, model.ErrClaimantMismatch):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicate),
		errors.Is(err, model.ErrAlreadyResolved),
		errors.Is(err, model.ErrRoomClosed),
		errors.Is(err, model.ErrDeadlinePassed):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnauthorized),
		errors.Is(err, model.ErrInvalidAuthority),
		errors.Is(err, model.ErrVoterNotWhitelisted):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNoVotes),
		errors.Is(err, model.ErrNoParticipants),
		errors.Is(err, model.ErrInsufficientFunds),
		errors.Is(err, model.ErrNumericalOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// grpcCodeFor maps an engine error to a gRPC status code.
func grpcCodeFor(err error) codes.Code {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, model.ErrClaimRoomMismatch),
		errors.Is(err, model.ErrClaimantMismatch):
		return codes.InvalidArgument
	case errors.Is(err, model.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, model.ErrDuplicate):
		return codes.AlreadyExists
	case errors.Is(err, model.ErrUnauthorized),
		errors.Is(err, model.ErrInvalidAuthority),
		errors.Is(err, model.ErrVoterNotWhitelisted):
		return codes.PermissionDenied
	case errors.Is(err, model.ErrAlreadyResolved),
		errors.Is(err, model.ErrNoVotes),
		errors.Is(err, model.ErrNoParticipants),
		errors.Is(err, model.ErrInsufficientFunds),
		errors.Is(err, model.ErrRoomClosed),
		errors.Is(err, model.ErrDeadlinePassed):
		return codes.FailedPrecondition
	case errors.Is(err, model.ErrNumericalOverflow):
		return codes.OutOfRange
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// grpcStatusFor converts err to a status error. The error kind rides in
// the message prefix so clients can rebuild the sentinel.
func grpcStatusFor(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := grpcCodeFor(err)
	if kind := model.ErrorCode(err); kind != "" {
		return status.Errorf(code, "%s: %v", kind, err)
	}
	return status.Error(code, err.Error())
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError writes a JSON error response with an explicit status.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeEngineError maps err and writes it with its kind.
func writeEngineError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatusFor(err), errorBody{Error: err.Error(), Code: model.ErrorCode(err)})
}
