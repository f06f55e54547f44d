package battle

import "errors"

// Service-level error taxonomy. Handlers map these onto HTTP status codes;
// anything else that bubbles up is a store/transport failure and surfaces as
// a generic server error.
var (
	ErrInvalidScore       = errors.New("score must be a number between 0 and 100")
	ErrMissingCreatorID   = errors.New("creatorId is required")
	ErrMissingResponderID = errors.New("responderId is required")
	ErrNotFound           = errors.New("battle not found")
	ErrExpired            = errors.New("battle has expired")
	ErrAlreadyCompleted   = errors.New("battle has already been completed")
	ErrOpponentBound      = errors.New("battle already has an opponent")
	ErrSelfBattle         = errors.New("cannot respond to your own battle")
	ErrUnauthorized       = errors.New("not a participant in this battle")
)
