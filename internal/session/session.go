// Package session binds at most one open Operation Request to an orchestrator.
// Opening a new one detaches the previous binding; writes already broadcast
// keep running in the background.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/nexuslend-client/internal/assets"
	"github.com/quantumauth-io/nexuslend-client/internal/constants"
	"github.com/quantumauth-io/nexuslend-client/internal/fixedpoint"
	"github.com/quantumauth-io/nexuslend-client/internal/metrics"
	"github.com/quantumauth-io/nexuslend-client/internal/orchestrator"
	"github.com/quantumauth-io/nexuslend-client/internal/valuation"
)

var (
	ErrNoSession       = errors.New("no operation is open")
	ErrUnknownAsset    = errors.Mark(errors.New("unknown asset"), orchestrator.ErrValidation)
	ErrMaxUnavailable  = errors.Mark(errors.New("max amount is not available"), orchestrator.ErrValidation)
	ErrAmountLocked    = errors.Mark(errors.New("amount cannot change while the operation is running"), orchestrator.ErrNotIdle)
)

var collateralFactor = decimal.RequireFromString(constants.LoanToValue).Shift(2).String() + "%"

// Reports supplies the latest valuation, used to fill MAX amounts.
type Reports interface {
	Report() valuation.Report
}

// View is what the presentation layer shows for the open operation.
type View struct {
	ID               string                `json:"id"`
	Symbol           string                `json:"symbol"`
	Kind             orchestrator.Kind     `json:"kind"`
	Amount           string                `json:"amount"`
	State            orchestrator.State    `json:"state"`
	Status           string                `json:"status"`
	Button           string                `json:"button"`
	Error            string                `json:"error,omitempty"`
	ReceiptSymbol    string                `json:"receiptSymbol,omitempty"`
	CollateralFactor string                `json:"collateralFactor,omitempty"`
	OpenedAt         time.Time             `json:"openedAt"`
	Records          []orchestrator.Record `json:"-"`
}

type operation struct {
	id       string
	asset    assets.Asset
	kind     orchestrator.Kind
	amount   string
	orch     *orchestrator.Orchestrator
	openedAt time.Time
}

// Context is the single session slot.
type Context struct {
	engine   *orchestrator.Engine
	registry *assets.Registry
	reports  Reports
	metrics  *metrics.EngineMetrics

	mu      sync.Mutex
	current *operation
}

func New(engine *orchestrator.Engine, registry *assets.Registry, reports Reports, m *metrics.EngineMetrics) *Context {
	return &Context{engine: engine, registry: registry, reports: reports, metrics: m}
}

// Open starts a new Operation Request for symbol and kind, replacing any
// open one.
func (c *Context) Open(symbol, kind string) (View, error) {
	k, err := orchestrator.ParseOperation(kind)
	if err != nil {
		return View{}, err
	}
	a, ok := c.registry.BySymbol(strings.TrimSpace(symbol))
	if !ok {
		return View{}, errors.Wrapf(ErrUnknownAsset, "%q", symbol)
	}

	op := &operation{
		id:       uuid.NewString(),
		asset:    a,
		kind:     k,
		orch:     c.engine.New(a, k),
		openedAt: time.Now(),
	}

	c.mu.Lock()
	prev := c.current
	c.current = op
	c.mu.Unlock()

	if prev != nil {
		if st := prev.orch.View().State; st != orchestrator.StateIdle && !st.Settled() {
			log.Info("previous operation detached", "session", prev.id, "state", string(st))
		}
	}
	c.metrics.SetSessionOpen(true)
	log.Info("operation opened", "session", op.id, "asset", a.Symbol, "kind", string(k))

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view(op), nil
}

// SetAmount stores the user-entered amount. Validation happens on submit.
func (c *Context) SetAmount(amount string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := c.current
	if op == nil {
		return View{}, ErrNoSession
	}
	if st := op.orch.View().State; st != orchestrator.StateIdle && st != orchestrator.StateSettledFailure {
		return View{}, ErrAmountLocked
	}
	op.amount = strings.TrimSpace(amount)
	return c.view(op), nil
}

// SetMax fills the amount with the wallet balance (supply, repay) or the
// supplied position (withdraw).
func (c *Context) SetMax() (View, error) {
	c.mu.Lock()
	op := c.current
	c.mu.Unlock()
	if op == nil {
		return View{}, ErrNoSession
	}

	av, ok := c.reports.Report().Asset(op.asset.Symbol)
	if !ok {
		return View{}, ErrMaxUnavailable
	}

	var amount string
	switch op.kind {
	case orchestrator.KindSupply, orchestrator.KindRepay:
		if !av.WalletLoaded {
			return View{}, errors.Wrap(ErrMaxUnavailable, "wallet balance not loaded")
		}
		amount = fixedpoint.FormatUnits(av.WalletBalanceRaw, op.asset.Decimals)
	case orchestrator.KindWithdraw:
		if !av.PositionLoaded {
			return View{}, errors.Wrap(ErrMaxUnavailable, "position not loaded")
		}
		amount = fixedpoint.FormatUnits(av.SuppliedRaw, op.asset.Decimals)
	default:
		return View{}, errors.Wrapf(ErrMaxUnavailable, "%s", op.kind)
	}
	return c.SetAmount(amount)
}

// Submit submits the open operation. After a failure a fresh orchestrator is
// used, so the user can retry with the same or a new amount.
func (c *Context) Submit() (View, error) {
	c.mu.Lock()
	op := c.current
	if op == nil {
		c.mu.Unlock()
		return View{}, ErrNoSession
	}
	if op.orch.View().State == orchestrator.StateSettledFailure {
		op.orch = c.engine.New(op.asset, op.kind)
	}
	orch, amount := op.orch, op.amount
	c.mu.Unlock()

	orch.OnSettled(func(st orchestrator.State) {
		if st == orchestrator.StateSettledSuccess {
			c.closeIf(op)
		}
	})
	err := orch.Submit(amount)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view(op), err
}

// Close discards the open operation. Broadcast writes are not retracted.
func (c *Context) Close() {
	c.mu.Lock()
	op := c.current
	c.current = nil
	c.mu.Unlock()

	if op != nil {
		c.metrics.SetSessionOpen(false)
		log.Info("operation closed", "session", op.id)
	}
}

func (c *Context) closeIf(op *operation) {
	c.mu.Lock()
	if c.current != op {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()

	c.metrics.SetSessionOpen(false)
	log.Info("operation auto-closed after success", "session", op.id)
}

// Current returns the open operation, if any.
func (c *Context) Current() (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return View{}, false
	}
	return c.view(c.current), true
}

// view must be called with c.mu held.
func (c *Context) view(op *operation) View {
	ov := op.orch.View()
	v := View{
		ID:       op.id,
		Symbol:   op.asset.Symbol,
		Kind:     op.kind,
		Amount:   op.amount,
		State:    ov.State,
		Status:   ov.Status,
		Button:   op.orch.Button(op.amount != ""),
		OpenedAt: op.openedAt,
		Records:  c.engine.Tracker().All(),
	}
	if ov.Err != nil {
		v.Error = ov.Err.Error()
	}
	if op.kind == orchestrator.KindSupply {
		v.ReceiptSymbol = op.asset.ReceiptSymbol()
		v.CollateralFactor = collateralFactor
	}
	return v
}
