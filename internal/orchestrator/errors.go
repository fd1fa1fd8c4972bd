package orchestrator

import "github.com/cockroachdb/errors"

// Error classes. Use errors.Is against these; concrete causes are wrapped and
// marked so the class survives wrapping.
var (
	// ErrValidation is a bad amount. Nothing was broadcast.
	ErrValidation = errors.New("validation error")
	// ErrSubmission means the write was never accepted for broadcast.
	ErrSubmission = errors.New("submission error")
	// ErrOnChainRevert means a receipt exists but reports failure.
	ErrOnChainRevert = errors.New("transaction reverted on chain")
	// ErrWriteInFlight rejects a write while one of the same kind is outstanding.
	ErrWriteInFlight = errors.New("a write of this kind is already in flight")
	// ErrNotIdle rejects a submit on an operation that already left idle.
	ErrNotIdle = errors.New("operation already submitted")
	// ErrNoAccount rejects writes in read-only mode.
	ErrNoAccount = errors.Mark(errors.New("no account connected"), ErrSubmission)
	// ErrReceiptTimeout ends a bounded receipt wait with an unknown outcome.
	ErrReceiptTimeout = errors.New("timed out waiting for receipt")
)
