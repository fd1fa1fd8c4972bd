package orchestrator

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/nexuslend-client/internal/assets"
	"github.com/quantumauth-io/nexuslend-client/internal/constants"
	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
	"github.com/quantumauth-io/nexuslend-client/internal/ledger"
	"github.com/quantumauth-io/nexuslend-client/internal/metrics"
	"github.com/quantumauth-io/nexuslend-client/internal/mirror"
)

// Mirror is the part of the read-state mirror the orchestrator drives.
type Mirror interface {
	Get(key mirror.Key) mirror.Entry
	Refresh(key mirror.Key) <-chan struct{}
	RefreshWait(ctx context.Context, key mirror.Key) (mirror.Entry, error)
	RefreshAccount(user common.Address, assets []common.Address) <-chan struct{}
	RefreshMarkets(assets []common.Address) <-chan struct{}
}

// Outcome is the terminal result of one write, as handed to a Journal.
type Outcome struct {
	RequestID  string
	Kind       Kind
	Asset      assets.Asset
	Amount     *big.Int
	Handle     common.Hash
	Phase      Phase
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Journal persists write outcomes. Failures are logged, never propagated.
type Journal interface {
	Append(ctx context.Context, o Outcome) error
}

type Config struct {
	SettleDelay         time.Duration
	ApprovalSettleDelay time.Duration
	// ReceiptTimeout bounds each receipt wait. Zero waits forever.
	ReceiptTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		SettleDelay:         constants.DefaultSettleDelay,
		ApprovalSettleDelay: constants.DefaultApprovalSettleDelay,
	}
}

// Engine owns what outlives a single Operation Request: the tracker, the
// collaborators, and the lifetime context background flows run on.
type Engine struct {
	ctx     context.Context
	writer  ledger.Writer
	mirror  Mirror
	addrs   contracts.Addresses
	assets  []common.Address
	tracker *Tracker
	journal Journal
	metrics *metrics.EngineMetrics
	cfg     Config

	wg sync.WaitGroup
}

type Option func(*Engine)

func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// NewEngine builds an Engine. Flows started through it run until they settle
// or ctx is cancelled.
func NewEngine(ctx context.Context, writer ledger.Writer, m Mirror, addrs contracts.Addresses, list []assets.Asset, opts ...Option) *Engine {
	e := &Engine{
		ctx:    ctx,
		writer: writer,
		mirror: m,
		addrs:  addrs,
		cfg:    DefaultConfig(),
	}
	for _, a := range list {
		e.assets = append(e.assets, a.Address)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracker == nil {
		e.tracker = NewTracker(e.metrics)
	}
	return e
}

func (e *Engine) Tracker() *Tracker { return e.tracker }

// Account returns the connected account, if any.
func (e *Engine) Account() (common.Address, bool) {
	if e.writer == nil {
		return common.Address{}, false
	}
	return e.writer.Account()
}

// New creates an Orchestrator for one Operation Request.
func (e *Engine) New(asset assets.Asset, kind Kind) *Orchestrator {
	return newOrchestrator(e, asset, kind)
}

// Wait blocks until every started flow has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// cascade refreshes every account read plus the market reads a write moves.
func (e *Engine) cascade(user common.Address, asset common.Address) {
	e.mirror.RefreshAccount(user, e.assets)
	e.mirror.Refresh(mirror.AllowanceKey(user, asset))
	e.mirror.RefreshMarkets(e.assets)
}

func (e *Engine) record(o Outcome) {
	if e.journal == nil {
		return
	}
	// Outcomes settling during shutdown are still journaled.
	if err := e.journal.Append(context.WithoutCancel(e.ctx), o); err != nil {
		log.Warn("failed to journal write outcome", "kind", string(o.Kind), "error", err)
	}
}
