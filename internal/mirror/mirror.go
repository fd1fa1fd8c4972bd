// Package mirror holds the latest observed value of every remote read.
//
// Each value lives under an explicit Key with a Loaded bit, so "zero because
// the ledger says zero" and "zero because nothing was read yet" never mix.
// Refreshes are asynchronous and collapse per key while in flight.
package mirror

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"golang.org/x/sync/singleflight"

	"github.com/quantumauth-io/nexuslend-client/internal/constants"
	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
	"github.com/quantumauth-io/nexuslend-client/internal/fixedpoint"
	"github.com/quantumauth-io/nexuslend-client/internal/ledger"
	"github.com/quantumauth-io/nexuslend-client/internal/metrics"
)

var (
	ErrNoUser             = errors.New("mirror: account-scoped read without an account")
	ErrDependencyNotReady = errors.New("mirror: market totals not loaded")
	ErrUnexpectedShape    = errors.New("mirror: unexpected read result")
)

var reserveFactor = fixedpoint.MustRay(constants.ReserveFactorRay)

// Mirror is the only shared mutable state of the engine. It is written
// exclusively by its own refresh completions.
type Mirror struct {
	ctx     context.Context
	reader  ledger.Reader
	addrs   contracts.Addresses
	metrics *metrics.EngineMetrics
	now     func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[Key]Entry
	version uint64
	subs    map[uint64]chan struct{}
	nextSub uint64
}

type Option func(*Mirror)

func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(mi *Mirror) { mi.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(mi *Mirror) { mi.now = now }
}

// New builds a Mirror. ctx bounds every read it will ever issue.
func New(ctx context.Context, reader ledger.Reader, addrs contracts.Addresses, opts ...Option) *Mirror {
	m := &Mirror{
		ctx:     ctx,
		reader:  reader,
		addrs:   addrs,
		now:     time.Now,
		entries: make(map[Key]Entry),
		subs:    make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the current entry for key.
func (m *Mirror) Get(key Key) Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[key]
}

// Snapshot returns a consistent copy of every entry.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make(map[Key]Entry, len(m.entries))
	for k, e := range m.entries {
		entries[k] = e
	}
	return Snapshot{entries: entries, Version: m.version}
}

// Subscribe returns a channel signalled (coalesced) after every change, and a
// cancel func.
func (m *Mirror) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Refresh starts a read for key unless one is already in flight, and returns
// a channel closed once that read completes. It never reports errors; a failed
// read shows up as Loaded=false on the entry.
func (m *Mirror) Refresh(key Key) <-chan struct{} {
	done := make(chan struct{})
	if key.Kind.AccountScoped() && key.User == (common.Address{}) {
		close(done)
		return done
	}

	res := m.group.DoChan(key.String(), func() (interface{}, error) {
		return nil, m.load(key)
	})
	go func() {
		r := <-res
		if r.Shared {
			m.metrics.ObserveRefreshDeduplicated(string(key.Kind))
		}
		close(done)
	}()
	return done
}

// RefreshWait refreshes key and waits for the result or ctx.
func (m *Mirror) RefreshWait(ctx context.Context, key Key) (Entry, error) {
	select {
	case <-m.Refresh(key):
		return m.Get(key), nil
	case <-ctx.Done():
		return m.Get(key), ctx.Err()
	}
}

// RefreshAccount refreshes wallet balances, positions and the ledger health
// factor of user across assets.
func (m *Mirror) RefreshAccount(user common.Address, assets []common.Address) <-chan struct{} {
	keys := make([]Key, 0, 2*len(assets)+1)
	for _, a := range assets {
		keys = append(keys, WalletBalanceKey(user, a), PositionKey(user, a))
	}
	keys = append(keys, HealthFactorKey(user))
	return m.refreshAll(keys)
}

// RefreshMarkets refreshes totals and prices, then the rate model outputs that
// depend on the fresh totals.
func (m *Mirror) RefreshMarkets(assets []common.Address) <-chan struct{} {
	first := make([]Key, 0, 3*len(assets))
	rates := make([]Key, 0, 2*len(assets))
	for _, a := range assets {
		first = append(first, TotalLiquidityKey(a), TotalBorrowsKey(a), PriceKey(a))
		rates = append(rates, BorrowRateKey(a), SupplyRateKey(a))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-m.refreshAll(first)
		<-m.refreshAll(rates)
	}()
	return done
}

func (m *Mirror) refreshAll(keys []Key) <-chan struct{} {
	chans := make([]<-chan struct{}, 0, len(keys))
	for _, k := range keys {
		chans = append(chans, m.Refresh(k))
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, c := range chans {
			<-c
		}
	}()
	return done
}

func (m *Mirror) load(key Key) error {
	call, err := m.callFor(key)
	if err != nil {
		m.fail(key, err)
		return err
	}

	values, err := m.reader.Read(m.ctx, call)
	if err != nil {
		m.fail(key, err)
		return err
	}

	value, err := decode(key.Kind, values)
	if err != nil {
		m.fail(key, err)
		return err
	}

	m.store(key, value)
	m.metrics.ObserveRead(string(key.Kind), "ok")
	return nil
}

func (m *Mirror) callFor(key Key) (ledger.Call, error) {
	switch key.Kind {
	case KindWalletBalance:
		return ledger.Call{Contract: key.Asset, ABI: contracts.ERC20, Method: contracts.MethodBalanceOf, Args: []any{key.User}}, nil
	case KindAllowance:
		return ledger.Call{Contract: key.Asset, ABI: contracts.ERC20, Method: contracts.MethodAllowance, Args: []any{key.User, m.addrs.Pool}}, nil
	case KindPosition:
		return ledger.Call{Contract: m.addrs.Pool, ABI: contracts.Pool, Method: contracts.MethodUserPositions, Args: []any{key.User, key.Asset}}, nil
	case KindHealthFactor:
		return ledger.Call{Contract: m.addrs.Pool, ABI: contracts.Pool, Method: contracts.MethodGetHealthFactor, Args: []any{key.User}}, nil
	case KindTotalLiquidity:
		return ledger.Call{Contract: m.addrs.Pool, ABI: contracts.Pool, Method: contracts.MethodTotalLiquidity, Args: []any{key.Asset}}, nil
	case KindTotalBorrows:
		return ledger.Call{Contract: m.addrs.Pool, ABI: contracts.Pool, Method: contracts.MethodTotalBorrows, Args: []any{key.Asset}}, nil
	case KindPrice:
		return ledger.Call{Contract: m.addrs.Oracle, ABI: contracts.Oracle, Method: contracts.MethodGetPrice, Args: []any{key.Asset}}, nil
	case KindBorrowRate, KindSupplyRate:
		borrows, liquidity, err := m.marketTotals(key.Asset)
		if err != nil {
			return ledger.Call{}, err
		}
		if key.Kind == KindBorrowRate {
			return ledger.Call{Contract: m.addrs.RateModel, ABI: contracts.RateModel, Method: contracts.MethodGetBorrowRate, Args: []any{borrows, liquidity}}, nil
		}
		return ledger.Call{Contract: m.addrs.RateModel, ABI: contracts.RateModel, Method: contracts.MethodGetSupplyRate, Args: []any{borrows, liquidity, reserveFactor}}, nil
	default:
		return ledger.Call{}, fmt.Errorf("mirror: unknown kind %q", key.Kind)
	}
}

// marketTotals returns the mirrored totals for asset, loading them first when
// they have never been read.
func (m *Mirror) marketTotals(asset common.Address) (*big.Int, *big.Int, error) {
	bKey, lKey := TotalBorrowsKey(asset), TotalLiquidityKey(asset)

	b, l := m.Get(bKey), m.Get(lKey)
	if !b.Loaded || !l.Loaded {
		<-m.refreshAll([]Key{bKey, lKey})
		b, l = m.Get(bKey), m.Get(lKey)
	}
	if !b.Loaded || !l.Loaded {
		return nil, nil, ErrDependencyNotReady
	}
	return b.Int(), l.Int(), nil
}

func decode(kind Kind, values []any) (any, error) {
	if kind == KindPosition {
		if len(values) != 4 {
			return nil, errors.Wrapf(ErrUnexpectedShape, "%s: %d values", kind, len(values))
		}
		ints := make([]*big.Int, 4)
		for i, v := range values {
			n, ok := v.(*big.Int)
			if !ok {
				return nil, errors.Wrapf(ErrUnexpectedShape, "%s[%d]: %T", kind, i, v)
			}
			ints[i] = n
		}
		return Position{
			Supplied:    ints[0],
			Borrowed:    ints[1],
			BorrowIndex: ints[2],
			LastUpdate:  time.Unix(ints[3].Int64(), 0).UTC(),
		}, nil
	}

	if len(values) != 1 {
		return nil, errors.Wrapf(ErrUnexpectedShape, "%s: %d values", kind, len(values))
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedShape, "%s: %T", kind, values[0])
	}
	if n.Sign() < 0 {
		return nil, errors.Wrapf(ErrUnexpectedShape, "%s: negative value", kind)
	}
	return n, nil
}

func (m *Mirror) store(key Key, value any) {
	m.mu.Lock()
	m.entries[key] = Entry{Loaded: true, Value: value, UpdatedAt: m.now()}
	m.version++
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Mirror) fail(key Key, err error) {
	m.metrics.ObserveRead(string(key.Kind), "failed")
	log.Warn("ledger read failed, keeping previous value",
		"kind", string(key.Kind),
		"asset", key.Asset.Hex(),
		"error", err,
	)

	m.mu.Lock()
	prev := m.entries[key]
	m.entries[key] = Entry{Loaded: false, Value: prev.Value, UpdatedAt: prev.UpdatedAt, Err: err}
	m.version++
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Mirror) notifyLocked() {
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
