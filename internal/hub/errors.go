package hub

import (
	"errors"

	"collab-hub/internal/collab"
	"collab-hub/internal/delegation"
	"collab-hub/internal/identity"
	"collab-hub/internal/jsonrpc"
)

// rpcError maps the engine's error taxonomy onto JSON-RPC codes. Validation
// problems use the standard invalid-params code; domain errors use the hub's
// reserved range. Unrecognized errors become internal errors so internals
// never leak verbatim.
func rpcError(err error) *jsonrpc.RPCError {
	if err == nil {
		return nil
	}

	var validationErr *collab.ValidationError
	var delegationValidationErr *delegation.ValidationError
	var authErr *identity.AuthorizationError
	var insufficientErr *collab.InsufficientDeliberationError
	var stateErr *delegation.StateError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &delegationValidationErr):
		return &jsonrpc.RPCError{Code: jsonrpc.ErrInvalidParams, Message: err.Error()}
	case errors.As(err, &authErr):
		return &jsonrpc.RPCError{Code: jsonrpc.ErrUnauthorized, Message: err.Error()}
	case errors.As(err, &insufficientErr):
		return &jsonrpc.RPCError{
			Code:    jsonrpc.ErrInsufficientDeliberation,
			Message: err.Error(),
			Data: map[string]int{
				"rounds":    insufficientErr.Rounds,
				"minRounds": insufficientErr.MinRounds,
			},
		}
	case errors.Is(err, collab.ErrSessionNotFound),
		errors.Is(err, collab.ErrDecisionNotFound),
		errors.Is(err, collab.ErrPollNotFound),
		errors.Is(err, collab.ErrReviewNotFound),
		errors.Is(err, delegation.ErrNotFound):
		return &jsonrpc.RPCError{Code: jsonrpc.ErrNotFound, Message: err.Error()}
	case errors.Is(err, collab.ErrDecisionFinalized):
		return &jsonrpc.RPCError{Code: jsonrpc.ErrConflict, Message: err.Error()}
	case errors.As(err, &stateErr):
		return &jsonrpc.RPCError{Code: jsonrpc.ErrConflict, Message: err.Error()}
	case errors.Is(err, collab.ErrNotMember),
		errors.Is(err, collab.ErrNotModerator),
		errors.Is(err, delegation.ErrNotAssignee):
		return &jsonrpc.RPCError{Code: jsonrpc.ErrUnauthorized, Message: err.Error()}
	default:
		return &jsonrpc.RPCError{Code: jsonrpc.ErrInternalError, Message: "internal error"}
	}
}
