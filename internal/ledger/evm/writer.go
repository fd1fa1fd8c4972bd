package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/nexuslend-client/internal/constants"
	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
	"github.com/quantumauth-io/nexuslend-client/internal/ledger"
)

const (
	fallbackGasLimit = 250_000
	minGasLimit      = 21_000
)

// Backend is the subset of ethclient.Client the writer needs.
type Backend interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Signer produces 65 byte R||S||V signatures (V=0/1) over 32 byte digests.
type Signer interface {
	Address() common.Address
	SignHash(ctx context.Context, digest32 []byte) ([]byte, error)
}

// Writer builds, signs and broadcasts protocol writes.
type Writer struct {
	backend      Backend
	signer       Signer
	chainID      *big.Int
	pollInterval time.Duration
}

// NewWriter returns a Writer. A nil signer yields a read-only writer.
func NewWriter(backend Backend, signer Signer, chainID *big.Int, pollInterval time.Duration) *Writer {
	if pollInterval <= 0 {
		pollInterval = constants.DefaultReceiptPollInterval
	}
	return &Writer{
		backend:      backend,
		signer:       signer,
		chainID:      chainID,
		pollInterval: pollInterval,
	}
}

func (w *Writer) Account() (common.Address, bool) {
	if w == nil || w.signer == nil {
		return common.Address{}, false
	}
	return w.signer.Address(), true
}

// Submit builds, signs, and broadcasts a tx.
// Prefers EIP-1559 when the latest header carries a base fee.
func (w *Writer) Submit(ctx context.Context, call ledger.Call) (common.Hash, error) {
	if w == nil || w.backend == nil {
		return common.Hash{}, fmt.Errorf("evm: writer not initialized")
	}
	if w.signer == nil {
		return common.Hash{}, ledger.ErrNoAccount
	}
	if w.chainID == nil {
		return common.Hash{}, fmt.Errorf("evm: chain id not set")
	}

	a, err := contracts.ABI(call.ABI)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := a.Pack(call.Method, call.Args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("evm: pack %s: %w", call.Method, err)
	}

	from := w.signer.Address()
	to := call.Contract

	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}

	gasLimit := w.estimateGasLimit(ctx, from, &to, data)

	var tx *gethtypes.Transaction
	if maxFee, maxPrio, ok := w.suggest1559Fees(ctx); ok {
		tx = gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:   w.chainID,
			Nonce:     nonce,
			GasTipCap: maxPrio,
			GasFeeCap: maxFee,
			Gas:       gasLimit,
			To:        &to,
			Value:     big.NewInt(0),
			Data:      data,
		})
	} else {
		gasPrice, err := w.backend.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("gas price: %w", err)
		}
		tx = gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Value:    big.NewInt(0),
			Gas:      gasLimit,
			GasPrice: gasPrice,
			Data:     data,
		})
	}

	signer := gethtypes.LatestSignerForChainID(w.chainID)
	digest := signer.Hash(tx).Bytes()

	sig, err := w.signer.SignHash(ctx, digest)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if len(sig) != 65 {
		return common.Hash{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	signedTx, err := tx.WithSignature(signer, sig)
	if err != nil {
		return common.Hash{}, fmt.Errorf("with signature: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	log.Info("write broadcast",
		"method", call.Method,
		"contract", to.Hex(),
		"tx", signedTx.Hash().Hex(),
		"nonce", nonce,
		"gas", gasLimit,
	)
	return signedTx.Hash(), nil
}

// WaitReceipt polls for a receipt until mined or ctx is done. Transient RPC
// errors are logged and polling continues.
func (w *Writer) WaitReceipt(ctx context.Context, handle common.Hash) (ledger.Receipt, error) {
	if w == nil || w.backend == nil {
		return ledger.Receipt{}, fmt.Errorf("evm: writer not initialized")
	}

	delay := w.pollInterval
	for {
		receipt, err := w.backend.TransactionReceipt(ctx, handle)
		switch {
		case err == nil && receipt != nil:
			status := ledger.ReceiptReverted
			if receipt.Status == gethtypes.ReceiptStatusSuccessful {
				status = ledger.ReceiptSuccess
			}
			out := ledger.Receipt{
				TxHash:  handle,
				Status:  status,
				GasUsed: receipt.GasUsed,
			}
			if receipt.BlockNumber != nil {
				out.BlockNumber = receipt.BlockNumber.Uint64()
			}
			return out, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			if ctx.Err() != nil {
				return ledger.Receipt{}, ctx.Err()
			}
			log.Warn("receipt poll failed", "tx", handle.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return ledger.Receipt{}, ctx.Err()
		case <-time.After(delay):
			if delay < constants.MaxReceiptPollInterval {
				delay += 250 * time.Millisecond
			}
		}
	}
}

func (w *Writer) estimateGasLimit(ctx context.Context, from common.Address, to *common.Address, data []byte) uint64 {
	est, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: to, Data: data})
	if err != nil {
		log.Warn("gas estimation failed, using fallback", "error", err, "fallback", fallbackGasLimit)
		return fallbackGasLimit
	}
	est += est / 10 // +10%
	if est < minGasLimit {
		est = minGasLimit
	}
	return est
}

// suggest1559Fees derives maxFee = 2*baseFee + tip from the latest header.
func (w *Writer) suggest1559Fees(ctx context.Context) (maxFee, maxPrio *big.Int, ok bool) {
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil || head == nil || head.BaseFee == nil {
		return nil, nil, false
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, false
	}
	mf := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	mf.Add(mf, tip)
	return mf, tip, true
}
