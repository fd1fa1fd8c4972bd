package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
	"github.com/quantumauth-io/nexuslend-client/internal/ledger"
)

type sentWrite struct {
	method string
	amount *big.Int
}

// fakeLedger is both the read service and the wallet. It records every
// broadcast, confirmation and allowance read in order.
type fakeLedger struct {
	mu sync.Mutex

	account   common.Address
	connected bool
	allowance *big.Int
	events    []string
	reads     map[string]int
	sent      map[common.Hash]sentWrite
	nonce     int

	submitErr map[string]error
	revert    map[string]bool
	hold      map[string]chan struct{}
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		account:   common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		connected: true,
		allowance: big.NewInt(0),
		reads:     map[string]int{},
		sent:      map[common.Hash]sentWrite{},
		submitErr: map[string]error{},
		revert:    map[string]bool{},
		hold:      map[string]chan struct{}{},
	}
}

func (f *fakeLedger) log(format string, args ...any) {
	f.events = append(f.events, fmt.Sprintf(format, args...))
}

func (f *fakeLedger) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeLedger) Reads(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[method]
}

func (f *fakeLedger) Broadcasts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeLedger) Read(_ context.Context, call ledger.Call) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[call.Method]++

	switch call.Method {
	case contracts.MethodAllowance:
		f.log("read allowance %s", f.allowance)
		return []any{new(big.Int).Set(f.allowance)}, nil
	case contracts.MethodUserPositions:
		return []any{big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0)}, nil
	default:
		return []any{big.NewInt(1000)}, nil
	}
}

func (f *fakeLedger) Account() (common.Address, bool) {
	return f.account, f.connected
}

func (f *fakeLedger) Submit(_ context.Context, call ledger.Call) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.submitErr[call.Method]; err != nil {
		f.log("reject %s", call.Method)
		return common.Hash{}, err
	}
	amount := call.Args[1].(*big.Int)
	f.nonce++
	h := common.BigToHash(big.NewInt(int64(f.nonce)))
	f.sent[h] = sentWrite{method: call.Method, amount: amount}
	f.log("submit %s %s", call.Method, amount)
	return h, nil
}

func (f *fakeLedger) WaitReceipt(ctx context.Context, handle common.Hash) (ledger.Receipt, error) {
	f.mu.Lock()
	w := f.sent[handle]
	gate := f.hold[w.method]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ledger.Receipt{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revert[w.method] {
		f.log("revert %s", w.method)
		return ledger.Receipt{TxHash: handle, Status: ledger.ReceiptReverted, BlockNumber: 1}, nil
	}
	if w.method == contracts.MethodApprove {
		f.allowance = new(big.Int).Set(w.amount)
	}
	f.log("confirm %s", w.method)
	return ledger.Receipt{TxHash: handle, Status: ledger.ReceiptSuccess, BlockNumber: 1}, nil
}
