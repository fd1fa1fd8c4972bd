package orchestrator

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/nexuslend-client/internal/metrics"
)

// Record is the Write Lifecycle Record of one kind.
type Record struct {
	Kind      Kind
	RequestID string
	Asset     string
	Amount    *big.Int
	Handle    common.Hash
	Phase     Phase
	Err       error
	UpdatedAt time.Time
}

// Tracker holds one Record per kind, shared by every Orchestrator.
type Tracker struct {
	mu      sync.Mutex
	records map[Kind]Record
	claims  map[Kind]string // kind -> request holding it before broadcast
	metrics *metrics.EngineMetrics
	now     func() time.Time
}

func NewTracker(m *metrics.EngineMetrics) *Tracker {
	return &Tracker{
		records: make(map[Kind]Record, len(Kinds)),
		claims:  make(map[Kind]string, len(Kinds)),
		metrics: m,
		now:     time.Now,
	}
}

// Busy reports whether kind has an outstanding write or claim.
func (t *Tracker) Busy(kind Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busyLocked(kind, "")
}

func (t *Tracker) busyLocked(kind Kind, requestID string) bool {
	if t.records[kind].Phase.Active() {
		return true
	}
	owner, claimed := t.claims[kind]
	return claimed && owner != requestID
}

// Claim reserves kind for requestID until Begin or Release. The record itself
// is not touched, so the visible phase stays as it was.
func (t *Tracker) Claim(kind Kind, requestID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.busyLocked(kind, requestID) {
		return ErrWriteInFlight
	}
	t.claims[kind] = requestID
	return nil
}

// Release drops requestID's claim on kind, if it still holds one.
func (t *Tracker) Release(kind Kind, requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.claims[kind] == requestID {
		delete(t.claims, kind)
	}
}

// Begin moves kind into submitting, consuming requestID's claim. It fails with
// ErrWriteInFlight, leaving the existing record untouched, when kind is
// outstanding or claimed by another request.
func (t *Tracker) Begin(kind Kind, requestID, asset string, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.busyLocked(kind, requestID) {
		return ErrWriteInFlight
	}
	delete(t.claims, kind)

	r := Record{
		Kind:      kind,
		RequestID: requestID,
		Asset:     asset,
		Phase:     PhaseSubmitting,
		UpdatedAt: t.now(),
	}
	if amount != nil {
		r.Amount = new(big.Int).Set(amount)
	}
	t.records[kind] = r
	t.metrics.ObserveWritePhase(string(kind), string(PhaseSubmitting))
	return nil
}

// Submitted records the broadcast handle.
func (t *Tracker) Submitted(kind Kind, handle common.Hash) {
	t.transition(kind, PhaseAwaitingConfirmation, func(r *Record) { r.Handle = handle })
}

func (t *Tracker) Confirmed(kind Kind) {
	t.transition(kind, PhaseConfirmed, nil)
}

func (t *Tracker) Failed(kind Kind, err error) {
	t.transition(kind, PhaseFailed, func(r *Record) { r.Err = err })
}

func (t *Tracker) Unknown(kind Kind, err error) {
	t.transition(kind, PhaseUnknown, func(r *Record) { r.Err = err })
}

func (t *Tracker) transition(kind Kind, phase Phase, mutate func(*Record)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.records[kind]
	r.Kind = kind
	r.Phase = phase
	r.UpdatedAt = t.now()
	if mutate != nil {
		mutate(&r)
	}
	t.records[kind] = r
	t.metrics.ObserveWritePhase(string(kind), string(phase))
}

// Get returns the record of kind; an unused kind is idle.
func (t *Tracker) Get(kind Kind) Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[kind]
	if !ok {
		return Record{Kind: kind, Phase: PhaseIdle}
	}
	return r
}

// All returns every record in Kinds order.
func (t *Tracker) All() []Record {
	out := make([]Record, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, t.Get(k))
	}
	return out
}
