package evm

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
	"github.com/quantumauth-io/nexuslend-client/internal/ledger"
	"github.com/quantumauth-io/nexuslend-client/internal/wallet"
)

var (
	tokenAddr = common.HexToAddress("0x27d5315e5f6febe82ee7a4a6fa00e11095c5a70f")
	poolAddr  = common.HexToAddress("0x087bd3cef36b00d2db4cd381fc76adee4a1b2357")
)

type fakeCaller struct {
	out  []byte
	err  error
	msgs []ethereum.CallMsg
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.msgs = append(f.msgs, msg)
	return f.out, f.err
}

func TestReader_Read(t *testing.T) {
	erc20, err := contracts.ABI(contracts.ERC20)
	require.NoError(t, err)
	out, err := erc20.Methods[contracts.MethodBalanceOf].Outputs.Pack(big.NewInt(42))
	require.NoError(t, err)

	caller := &fakeCaller{out: out}
	r := NewReader(caller, 0, time.Second)

	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	values, err := r.Read(context.Background(), ledger.Call{
		Contract: tokenAddr,
		ABI:      contracts.ERC20,
		Method:   contracts.MethodBalanceOf,
		Args:     []any{owner},
	})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, big.NewInt(42), values[0].(*big.Int))

	require.Len(t, caller.msgs, 1)
	assert.Equal(t, tokenAddr, *caller.msgs[0].To)
	assert.Equal(t, erc20.Methods[contracts.MethodBalanceOf].ID, caller.msgs[0].Data[:4])
}

func TestReader_EmptyResultIsNotAvailable(t *testing.T) {
	r := NewReader(&fakeCaller{}, 10, 0)
	_, err := r.Read(context.Background(), ledger.Call{
		Contract: tokenAddr,
		ABI:      contracts.ERC20,
		Method:   contracts.MethodBalanceOf,
		Args:     []any{tokenAddr},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrNotAvailable)
}

type fakeBackend struct {
	mu       sync.Mutex
	baseFee  *big.Int
	sent     []*gethtypes.Transaction
	receipts []*gethtypes.Receipt
	polls    int
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{Number: big.NewInt(1), BaseFee: f.baseFee}, nil
}
func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 7, nil }
func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error)             { return big.NewInt(2), nil }
func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error)              { return big.NewInt(5), nil }
func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error)  { return 100_000, nil }

func (f *fakeBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.receipts) == 0 {
		return nil, ethereum.NotFound
	}
	r := f.receipts[0]
	f.receipts = f.receipts[1:]
	if r == nil {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func testWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.FromHex("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	return w
}

func TestWriter_SubmitSignsDynamicFeeTx(t *testing.T) {
	backend := &fakeBackend{baseFee: big.NewInt(10)}
	w := testWallet(t)
	chainID := big.NewInt(11155111)
	writer := NewWriter(backend, w, chainID, time.Millisecond)

	hash, err := writer.Submit(context.Background(), ledger.Call{
		Contract: tokenAddr,
		ABI:      contracts.ERC20,
		Method:   contracts.MethodApprove,
		Args:     []any{poolAddr, big.NewInt(200)},
	})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint8(gethtypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(110_000), tx.Gas())
	assert.Equal(t, big.NewInt(22), tx.GasFeeCap())
	assert.Equal(t, tokenAddr, *tx.To())

	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), from)
}

func TestWriter_LegacyWithoutBaseFee(t *testing.T) {
	backend := &fakeBackend{}
	writer := NewWriter(backend, testWallet(t), big.NewInt(1), time.Millisecond)

	_, err := writer.Submit(context.Background(), ledger.Call{
		Contract: poolAddr,
		ABI:      contracts.Pool,
		Method:   contracts.MethodBorrow,
		Args:     []any{tokenAddr, big.NewInt(1)},
	})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, uint8(gethtypes.LegacyTxType), backend.sent[0].Type())
	assert.Equal(t, big.NewInt(5), backend.sent[0].GasPrice())
}

func TestWriter_NoAccount(t *testing.T) {
	writer := NewWriter(&fakeBackend{}, nil, big.NewInt(1), 0)
	_, ok := writer.Account()
	assert.False(t, ok)

	_, err := writer.Submit(context.Background(), ledger.Call{})
	assert.ErrorIs(t, err, ledger.ErrNoAccount)
}

func TestWriter_WaitReceipt(t *testing.T) {
	backend := &fakeBackend{receipts: []*gethtypes.Receipt{
		nil,
		{Status: gethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(9), GasUsed: 21_000},
	}}
	writer := NewWriter(backend, testWallet(t), big.NewInt(1), time.Millisecond)

	hash := common.HexToHash("0x01")
	r, err := writer.WaitReceipt(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReceiptReverted, r.Status)
	assert.False(t, r.Succeeded())
	assert.Equal(t, uint64(9), r.BlockNumber)
	assert.Equal(t, 2, backend.polls)
}

func TestWriter_WaitReceiptHonoursContext(t *testing.T) {
	writer := NewWriter(&fakeBackend{}, testWallet(t), big.NewInt(1), time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := writer.WaitReceipt(ctx, common.HexToHash("0x02"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
