// Package ledger defines the boundary to the remote lending protocol: reads,
// signed writes, and receipts. Concrete adapters live in subpackages.
package ledger

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
)

var (
	// ErrNotAvailable is returned by a Reader when the value cannot be read yet.
	ErrNotAvailable = errors.New("ledger: value not yet available")
	// ErrNoAccount is returned by a Writer with no connected account.
	ErrNoAccount = errors.New("ledger: no account connected")
)

// Call addresses one contract function.
type Call struct {
	Contract common.Address
	ABI      contracts.Name
	Method   string
	Args     []any
}

// Reader performs view calls.
type Reader interface {
	Read(ctx context.Context, call Call) ([]any, error)
}

// ReceiptStatus is the terminal outcome of a mined write.
type ReceiptStatus uint8

const (
	ReceiptSuccess ReceiptStatus = iota + 1
	ReceiptReverted
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptSuccess:
		return "success"
	case ReceiptReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Receipt is what the ledger reports once a write is mined.
type Receipt struct {
	TxHash      common.Hash
	Status      ReceiptStatus
	BlockNumber uint64
	GasUsed     uint64
}

func (r Receipt) Succeeded() bool { return r.Status == ReceiptSuccess }

// Writer signs and broadcasts writes on behalf of the connected account.
type Writer interface {
	// Account returns the connected account, or false when there is none.
	Account() (common.Address, bool)
	// Submit signs and broadcasts call, returning its handle.
	Submit(ctx context.Context, call Call) (common.Hash, error)
	// WaitReceipt blocks until the write identified by handle is mined.
	WaitReceipt(ctx context.Context, handle common.Hash) (Receipt, error)
}
