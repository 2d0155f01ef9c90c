package exchange

import (
	"errors"

	"github.com/meridian-fi/exchange/backend/internal/approval"
	"github.com/meridian-fi/exchange/backend/internal/assetledger"
	"github.com/meridian-fi/exchange/backend/internal/fixedmath"
)

// Error taxonomy of the engine. Callers branch with errors.Is; failures never
// leave partial state behind.
var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidState   = errors.New("invalid state")
	ErrExpired        = errors.New("expired")
	ErrReplayRejected = errors.New("nonce mismatch")
	ErrPaused         = errors.New("kill switch activated")
	ErrMalformedInput = errors.New("malformed input")

	// Shared with the collaborator packages.
	ErrInsufficientFunds = assetledger.ErrInsufficientFunds
	ErrOverflow          = fixedmath.ErrOverflow
)

// translateApprovalErr folds approval verifier failures into the engine
// taxonomy while keeping the original message in the chain.
func translateApprovalErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, approval.ErrExpired):
		return errors.Join(ErrExpired, err)
	case errors.Is(err, approval.ErrMalformedMessage),
		errors.Is(err, approval.ErrWrongProgram),
		errors.Is(err, approval.ErrWrongUser):
		return errors.Join(ErrMalformedInput, err)
	default:
		return errors.Join(ErrUnauthorized, err)
	}
}
