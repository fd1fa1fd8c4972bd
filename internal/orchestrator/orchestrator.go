// Package orchestrator sequences the remote writes of one Operation Request:
// an optional approval, then the action, then the refresh cascade.
//
// Each Orchestrator is a small state machine:
//
//	idle -> checking-allowance -> approving -> acting -> settled-success
//	                                                  \-> settled-failure
//
// Write Lifecycle Records are shared across requests through a Tracker so that
// a second write of a kind is rejected while one is outstanding.
package orchestrator

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/nexuslend-client/internal/assets"
	"github.com/quantumauth-io/nexuslend-client/internal/constants"
	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
	"github.com/quantumauth-io/nexuslend-client/internal/fixedpoint"
	"github.com/quantumauth-io/nexuslend-client/internal/ledger"
	"github.com/quantumauth-io/nexuslend-client/internal/mirror"
)

type State string

const (
	StateIdle              State = "idle"
	StateCheckingAllowance State = "checking-allowance"
	StateApproving         State = "approving"
	StateActing            State = "acting"
	StateSettledSuccess    State = "settled-success"
	StateSettledFailure    State = "settled-failure"
)

func (s State) Settled() bool {
	return s == StateSettledSuccess || s == StateSettledFailure
}

const (
	StatusApproving  = "Approving token spend..."
	StatusConfirming = "Confirming transaction..."
	StatusSuccess    = "Transaction successful"
	StatusFailed     = "Transaction failed"

	ButtonEnterAmount = "Enter amount"
	ButtonApproving   = "Approving..."
	ButtonConfirming  = "Confirming..."
	ButtonSuccess     = "Success"
	ButtonRetry       = "Failed - Try Again"
)

var approvalMultiplier = big.NewInt(constants.ApprovalMultiplier)

// View is a point-in-time copy of an Orchestrator.
type View struct {
	ID     string
	Asset  assets.Asset
	Kind   Kind
	State  State
	Amount *big.Int
	Err    error
	Status string
}

// Orchestrator drives one Operation Request. It is single-use: once settled it
// never leaves its terminal state.
type Orchestrator struct {
	id     string
	engine *Engine
	asset  assets.Asset
	kind   Kind

	mu        sync.Mutex
	state     State
	amount    *big.Int
	err       error
	onSettled func(State)
	done      chan struct{}
}

func newOrchestrator(e *Engine, asset assets.Asset, kind Kind) *Orchestrator {
	return &Orchestrator{
		id:     uuid.NewString(),
		engine: e,
		asset:  asset,
		kind:   kind,
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

func (o *Orchestrator) ID() string { return o.id }

// OnSettled registers fn to run once the request is terminal. For success it
// runs after the settle delay.
func (o *Orchestrator) OnSettled(fn func(State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSettled = fn
}

// Done is closed when the request is terminal and, on success, the settle
// delay has elapsed.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := View{
		ID:     o.id,
		Asset:  o.asset,
		Kind:   o.kind,
		State:  o.state,
		Err:    o.err,
		Status: statusText(o.state),
	}
	if o.amount != nil {
		v.Amount = new(big.Int).Set(o.amount)
	}
	return v
}

// Button returns the submit button label. amountEntered is whether the user
// has typed anything.
func (o *Orchestrator) Button(amountEntered bool) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateSettledFailure:
		return ButtonRetry
	case StateApproving:
		return ButtonApproving
	case StateCheckingAllowance, StateActing:
		return ButtonConfirming
	case StateSettledSuccess:
		return ButtonSuccess
	}
	if !amountEntered {
		return ButtonEnterAmount
	}
	return o.kind.Title()
}

func statusText(s State) string {
	switch s {
	case StateApproving:
		return StatusApproving
	case StateCheckingAllowance, StateActing:
		return StatusConfirming
	case StateSettledSuccess:
		return StatusSuccess
	case StateSettledFailure:
		return StatusFailed
	default:
		return ""
	}
}

// Submit validates amount and starts the flow in the background. Validation
// and guard errors are returned synchronously and leave the request idle.
func (o *Orchestrator) Submit(amount string) error {
	raw, err := fixedpoint.ParseUnits(amount, o.asset.Decimals)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "invalid amount"), ErrValidation)
	}

	user, ok := o.engine.Account()
	if !ok {
		return ErrNoAccount
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return ErrNotIdle
	}
	tracker := o.engine.tracker
	if err := tracker.Claim(o.kind, o.id); err != nil {
		return errors.Wrapf(err, "%s", o.kind)
	}

	needsApproval := false
	allowanceKnown := true
	if o.kind.NeedsApproval() {
		if e := o.engine.mirror.Get(mirror.AllowanceKey(user, o.asset.Address)); e.Loaded {
			needsApproval = e.Int() == nil || e.Int().Cmp(raw) < 0
		} else {
			allowanceKnown = false
		}
		if needsApproval || !allowanceKnown {
			if err := tracker.Claim(KindApprove, o.id); err != nil {
				tracker.Release(o.kind, o.id)
				return errors.Wrapf(err, "%s", KindApprove)
			}
		}
	}

	o.amount = raw
	switch {
	case !allowanceKnown:
		o.state = StateCheckingAllowance
	case needsApproval:
		o.state = StateApproving
	default:
		o.state = StateActing
	}

	log.Info("operation submitted",
		"request", o.id,
		"kind", string(o.kind),
		"asset", o.asset.Symbol,
		"amount", fixedpoint.FormatUnits(raw, o.asset.Decimals),
	)

	o.engine.wg.Add(1)
	go func() {
		defer o.engine.wg.Done()
		o.run(o.engine.ctx, user, raw, needsApproval, allowanceKnown)
	}()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, user common.Address, amount *big.Int, needsApproval, allowanceKnown bool) {
	allowanceKey := mirror.AllowanceKey(user, o.asset.Address)

	if !allowanceKnown {
		e, err := o.engine.mirror.RefreshWait(ctx, allowanceKey)
		if err != nil {
			o.settleFailure(errors.Wrap(err, "read allowance"))
			return
		}
		needsApproval = !e.Loaded || e.Int() == nil || e.Int().Cmp(amount) < 0
	}
	if !needsApproval {
		o.engine.tracker.Release(KindApprove, o.id)
	}

	if needsApproval {
		if err := o.approve(ctx, allowanceKey, amount); err != nil {
			o.settleFailure(err)
			return
		}
	}

	o.setState(StateActing)
	action := ledger.Call{
		Contract: o.engine.addrs.Pool,
		ABI:      contracts.Pool,
		Method:   string(o.kind),
		Args:     []any{o.asset.Address, amount},
	}
	if err := o.write(ctx, o.kind, action, amount); err != nil {
		o.settleFailure(err)
		return
	}

	o.engine.cascade(user, o.asset.Address)
	o.settleSuccess(ctx)
}

func (o *Orchestrator) approve(ctx context.Context, allowanceKey mirror.Key, amount *big.Int) error {
	o.setState(StateApproving)

	approveAmount := new(big.Int).Mul(amount, approvalMultiplier)
	call := ledger.Call{
		Contract: o.asset.Address,
		ABI:      contracts.ERC20,
		Method:   contracts.MethodApprove,
		Args:     []any{o.engine.addrs.Pool, approveAmount},
	}
	if err := o.write(ctx, KindApprove, call, approveAmount); err != nil {
		return err
	}

	e, err := o.engine.mirror.RefreshWait(ctx, allowanceKey)
	if err != nil {
		return errors.Wrap(err, "re-read allowance")
	}
	if !e.Loaded || e.Int() == nil || e.Int().Cmp(amount) < 0 {
		log.Warn("allowance still below amount after approval, proceeding",
			"request", o.id,
			"asset", o.asset.Symbol,
			"loaded", e.Loaded,
		)
	}

	return sleepCtx(ctx, o.engine.cfg.ApprovalSettleDelay)
}

// write runs one write through its lifecycle record and returns nil only when
// the receipt reports success.
func (o *Orchestrator) write(ctx context.Context, kind Kind, call ledger.Call, amount *big.Int) error {
	tracker := o.engine.tracker
	if err := tracker.Begin(kind, o.id, o.asset.Symbol, amount); err != nil {
		return errors.Wrapf(err, "%s", kind)
	}

	started := time.Now()
	out := Outcome{RequestID: o.id, Kind: kind, Asset: o.asset, Amount: amount, StartedAt: started}
	finish := func(phase Phase, err error) error {
		out.Phase, out.Err, out.FinishedAt = phase, err, time.Now()
		o.engine.record(out)
		return err
	}

	handle, err := o.engine.writer.Submit(ctx, call)
	if err != nil {
		err = errors.Mark(errors.Wrapf(err, "broadcast %s", kind), ErrSubmission)
		tracker.Failed(kind, err)
		log.Error("write broadcast failed", "request", o.id, "kind", string(kind), "error", err)
		return finish(PhaseFailed, err)
	}
	tracker.Submitted(kind, handle)
	out.Handle = handle

	waitCtx := ctx
	if d := o.engine.cfg.ReceiptTimeout; d > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	receipt, err := o.engine.writer.WaitReceipt(waitCtx, handle)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = errors.Wrapf(ErrReceiptTimeout, "%s %s", kind, handle.Hex())
		} else {
			err = errors.Wrapf(err, "wait receipt %s", handle.Hex())
		}
		tracker.Unknown(kind, err)
		log.Warn("write outcome unknown", "request", o.id, "kind", string(kind), "tx", handle.Hex(), "error", err)
		return finish(PhaseUnknown, err)
	}

	if !receipt.Succeeded() {
		err = errors.Wrapf(ErrOnChainRevert, "%s %s", kind, handle.Hex())
		tracker.Failed(kind, err)
		log.Error("write reverted", "request", o.id, "kind", string(kind), "tx", handle.Hex(), "block", receipt.BlockNumber)
		return finish(PhaseFailed, err)
	}

	tracker.Confirmed(kind)
	log.Info("write confirmed", "request", o.id, "kind", string(kind), "tx", handle.Hex(), "block", receipt.BlockNumber)
	return finish(PhaseConfirmed, nil)
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// releaseClaims drops claims this request never turned into writes.
func (o *Orchestrator) releaseClaims() {
	o.engine.tracker.Release(o.kind, o.id)
	o.engine.tracker.Release(KindApprove, o.id)
}

func (o *Orchestrator) settleFailure(err error) {
	o.releaseClaims()

	o.mu.Lock()
	o.state = StateSettledFailure
	o.err = err
	fn := o.onSettled
	o.mu.Unlock()

	o.engine.metrics.ObserveSettled("failure")
	log.Warn("operation failed", "request", o.id, "kind", string(o.kind), "error", err)

	close(o.done)
	if fn != nil {
		fn(StateSettledFailure)
	}
}

// settleSuccess is called after the refresh cascade has been started.
func (o *Orchestrator) settleSuccess(ctx context.Context) {
	o.releaseClaims()
	o.setState(StateSettledSuccess)
	o.engine.metrics.ObserveSettled("success")
	log.Info("operation settled", "request", o.id, "kind", string(o.kind), "asset", o.asset.Symbol)

	_ = sleepCtx(ctx, o.engine.cfg.SettleDelay)

	o.mu.Lock()
	fn := o.onSettled
	o.mu.Unlock()

	close(o.done)
	if fn != nil {
		fn(StateSettledSuccess)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
