package orchestrator

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind is a write kind. Approve is internal; the others are user operations.
type Kind string

const (
	KindApprove  Kind = "approve"
	KindSupply   Kind = "supply"
	KindBorrow   Kind = "borrow"
	KindWithdraw Kind = "withdraw"
	KindRepay    Kind = "repay"
)

// Kinds lists every write kind in display order.
var Kinds = []Kind{KindApprove, KindSupply, KindBorrow, KindWithdraw, KindRepay}

// ParseOperation parses a user operation kind.
func ParseOperation(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSupply, KindBorrow, KindWithdraw, KindRepay:
		return k, nil
	default:
		return "", errors.Mark(errors.Newf("unknown operation %q", s), ErrValidation)
	}
}

// NeedsApproval reports whether the pool pulls tokens from the user.
func (k Kind) NeedsApproval() bool {
	return k == KindSupply || k == KindRepay
}

// Title is the capitalised kind, used as button text.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Phase is the lifecycle phase of one write record.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseSubmitting           Phase = "submitting"
	PhaseAwaitingConfirmation Phase = "awaiting-confirmation"
	PhaseConfirmed            Phase = "confirmed"
	PhaseFailed               Phase = "failed"
	PhaseUnknown              Phase = "unknown"
)

// Active reports whether the phase blocks another write of the same kind.
func (p Phase) Active() bool {
	return p == PhaseSubmitting || p == PhaseAwaitingConfirmation
}

// Terminal reports whether the write has resolved.
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseFailed || p == PhaseUnknown
}
