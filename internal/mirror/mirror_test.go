package mirror

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
	"github.com/quantumauth-io/nexuslend-client/internal/ledger"
)

var (
	testUser  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testAsset = common.HexToAddress("0x27d5315e5f6febe82ee7a4a6fa00e11095c5a70f")
	testAddrs = contracts.Addresses{
		Pool:      common.HexToAddress("0x087bd3cef36b00d2db4cd381fc76adee4a1b2357"),
		Oracle:    common.HexToAddress("0xa6d224d5744d9bae8c5a71020a5ba82a29b215e4"),
		RateModel: common.HexToAddress("0xe19e505290e1c4b35a2057798363b0ab8fe70224"),
	}
)

type fakeReader struct {
	mu      sync.Mutex
	calls   map[string]int
	args    map[string][]any
	results map[string][]any
	errs    map[string]error
	gate    chan struct{}
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		calls:   map[string]int{},
		args:    map[string][]any{},
		results: map[string][]any{},
		errs:    map[string]error{},
	}
}

func (f *fakeReader) set(method string, values ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = values
	delete(f.errs, method)
}

func (f *fakeReader) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakeReader) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeReader) lastArgs(method string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.args[method]
}

func (f *fakeReader) Read(ctx context.Context, call ledger.Call) ([]any, error) {
	f.mu.Lock()
	f.calls[call.Method]++
	f.args[call.Method] = call.Args
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[call.Method]; err != nil {
		return nil, err
	}
	if v, ok := f.results[call.Method]; ok {
		return v, nil
	}
	return nil, ledger.ErrNotAvailable
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not complete")
	}
}

func TestRefresh_DeduplicatesInFlightReads(t *testing.T) {
	reader := newFakeReader()
	reader.gate = make(chan struct{})
	reader.set(contracts.MethodBalanceOf, big.NewInt(42))

	m := New(context.Background(), reader, testAddrs)
	key := WalletBalanceKey(testUser, testAsset)

	first := m.Refresh(key)
	second := m.Refresh(key)
	close(reader.gate)

	waitDone(t, first)
	waitDone(t, second)

	assert.Equal(t, 1, reader.count(contracts.MethodBalanceOf))
	e := m.Get(key)
	require.True(t, e.Loaded)
	assert.Equal(t, int64(42), e.Int().Int64())
}

func TestRefresh_SequentialRefreshesReadAgain(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodBalanceOf, big.NewInt(1))
	m := New(context.Background(), reader, testAddrs)
	key := WalletBalanceKey(testUser, testAsset)

	waitDone(t, m.Refresh(key))
	reader.set(contracts.MethodBalanceOf, big.NewInt(2))
	waitDone(t, m.Refresh(key))

	assert.Equal(t, 2, reader.count(contracts.MethodBalanceOf))
	assert.Equal(t, int64(2), m.Get(key).Int().Int64())
}

func TestRefresh_UnloadedBeforeFirstRead(t *testing.T) {
	m := New(context.Background(), newFakeReader(), testAddrs)
	e := m.Get(PriceKey(testAsset))
	assert.False(t, e.Loaded)
	assert.Nil(t, e.Value)

	_, ok := m.Snapshot().Int(PriceKey(testAsset))
	assert.False(t, ok)
}

func TestRefresh_LoadedZeroIsDistinctFromUnloaded(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodGetPrice, big.NewInt(0))
	m := New(context.Background(), reader, testAddrs)

	waitDone(t, m.Refresh(PriceKey(testAsset)))

	v, ok := m.Snapshot().Int(PriceKey(testAsset))
	require.True(t, ok)
	assert.Equal(t, 0, v.Sign())
}

func TestRefresh_FailureKeepsPreviousValueAndClearsLoaded(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodGetPrice, big.NewInt(3000))
	m := New(context.Background(), reader, testAddrs)
	key := PriceKey(testAsset)

	waitDone(t, m.Refresh(key))
	require.True(t, m.Get(key).Loaded)

	boom := errors.New("rpc down")
	reader.fail(contracts.MethodGetPrice, boom)
	waitDone(t, m.Refresh(key))

	e := m.Get(key)
	assert.False(t, e.Loaded)
	assert.ErrorIs(t, e.Err, boom)
	assert.Equal(t, int64(3000), e.Int().Int64())
}

func TestRefresh_UpdatedAtTracksLastSuccessfulRead(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodGetPrice, big.NewInt(3000))

	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	m := New(context.Background(), reader, testAddrs, WithClock(clock))
	key := PriceKey(testAsset)

	first := now
	waitDone(t, m.Refresh(key))
	assert.Equal(t, first, m.Get(key).UpdatedAt)

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()
	reader.fail(contracts.MethodGetPrice, errors.New("rpc down"))
	waitDone(t, m.Refresh(key))
	assert.Equal(t, first, m.Get(key).UpdatedAt)

	reader.set(contracts.MethodGetPrice, big.NewInt(3100))
	waitDone(t, m.Refresh(key))
	assert.Equal(t, first.Add(time.Minute), m.Get(key).UpdatedAt)
}

func TestRefresh_AccountKeysWithoutUserSkipRead(t *testing.T) {
	reader := newFakeReader()
	m := New(context.Background(), reader, testAddrs)

	waitDone(t, m.Refresh(WalletBalanceKey(common.Address{}, testAsset)))
	assert.Equal(t, 0, reader.count(contracts.MethodBalanceOf))
}

func TestRefresh_AllowanceUsesPoolAsSpender(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodAllowance, big.NewInt(5))
	m := New(context.Background(), reader, testAddrs)

	waitDone(t, m.Refresh(AllowanceKey(testUser, testAsset)))

	args := reader.lastArgs(contracts.MethodAllowance)
	require.Len(t, args, 2)
	assert.Equal(t, testUser, args[0])
	assert.Equal(t, testAddrs.Pool, args[1])
}

func TestRefresh_PositionDecodesTuple(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodUserPositions, big.NewInt(10), big.NewInt(4), big.NewInt(1), big.NewInt(1700000000))
	m := New(context.Background(), reader, testAddrs)

	waitDone(t, m.Refresh(PositionKey(testUser, testAsset)))

	p, ok := m.Snapshot().Position(testUser, testAsset)
	require.True(t, ok)
	assert.Equal(t, int64(10), p.Supplied.Int64())
	assert.Equal(t, int64(4), p.Borrowed.Int64())
	assert.Equal(t, int64(1700000000), p.LastUpdate.Unix())
}

func TestRefresh_RatesUseMirroredTotals(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodTotalBorrows, big.NewInt(30))
	reader.set(contracts.MethodTotalLiquidity, big.NewInt(100))
	reader.set(contracts.MethodGetBorrowRate, big.NewInt(7))
	reader.set(contracts.MethodGetSupplyRate, big.NewInt(3))
	m := New(context.Background(), reader, testAddrs)

	waitDone(t, m.RefreshMarkets([]common.Address{testAsset}))

	borrowArgs := reader.lastArgs(contracts.MethodGetBorrowRate)
	require.Len(t, borrowArgs, 2)
	assert.Equal(t, int64(30), borrowArgs[0].(*big.Int).Int64())
	assert.Equal(t, int64(100), borrowArgs[1].(*big.Int).Int64())

	supplyArgs := reader.lastArgs(contracts.MethodGetSupplyRate)
	require.Len(t, supplyArgs, 3)
	assert.Equal(t, reserveFactor, supplyArgs[2])

	v, ok := m.Snapshot().Int(SupplyRateKey(testAsset))
	require.True(t, ok)
	assert.Equal(t, int64(3), v.Int64())
}

func TestRefresh_RateWithoutTotalsStaysUnloaded(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodGetBorrowRate, big.NewInt(7))
	m := New(context.Background(), reader, testAddrs)

	waitDone(t, m.Refresh(BorrowRateKey(testAsset)))

	e := m.Get(BorrowRateKey(testAsset))
	assert.False(t, e.Loaded)
	assert.ErrorIs(t, e.Err, ErrDependencyNotReady)
	assert.Equal(t, 0, reader.count(contracts.MethodGetBorrowRate))
}

func TestSubscribe_SignalsOnChange(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodGetPrice, big.NewInt(1))
	m := New(context.Background(), reader, testAddrs)

	ch, cancel := m.Subscribe()
	defer cancel()

	waitDone(t, m.Refresh(PriceKey(testAsset)))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}

func TestRefreshAccount_CoversBalancesPositionsAndHealthFactor(t *testing.T) {
	reader := newFakeReader()
	reader.set(contracts.MethodBalanceOf, big.NewInt(1))
	reader.set(contracts.MethodUserPositions, big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0))
	reader.set(contracts.MethodGetHealthFactor, big.NewInt(2))
	m := New(context.Background(), reader, testAddrs)

	other := common.HexToAddress("0x5f2821f166947717187759e205144def4442814a")
	waitDone(t, m.RefreshAccount(testUser, []common.Address{testAsset, other}))

	assert.Equal(t, 2, reader.count(contracts.MethodBalanceOf))
	assert.Equal(t, 2, reader.count(contracts.MethodUserPositions))
	assert.Equal(t, 1, reader.count(contracts.MethodGetHealthFactor))
	assert.True(t, m.Get(HealthFactorKey(testUser)).Loaded)
}
