// Package evm implements the ledger collaborators on top of go-ethereum.
package evm

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"golang.org/x/time/rate"

	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
	"github.com/quantumauth-io/nexuslend-client/internal/ledger"
)

// Reader performs eth_call against the latest block and ABI-decodes the result.
type Reader struct {
	caller  ethereum.ContractCaller
	limiter *rate.Limiter
	timeout time.Duration
}

// NewReader builds a Reader. perSecond <= 0 disables rate limiting.
func NewReader(caller ethereum.ContractCaller, perSecond float64, timeout time.Duration) *Reader {
	r := &Reader{caller: caller, timeout: timeout}
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return r
}

func (r *Reader) Read(ctx context.Context, call ledger.Call) ([]any, error) {
	if r == nil || r.caller == nil {
		return nil, fmt.Errorf("evm: reader not initialized")
	}

	a, err := contracts.ABI(call.ABI)
	if err != nil {
		return nil, err
	}
	data, err := a.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("evm: pack %s: %w", call.Method, err)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("evm: rate limit: %w", err)
		}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	to := call.Contract
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: call %s: %w", call.Method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("evm: %s at %s returned no data: %w", call.Method, to.Hex(), ledger.ErrNotAvailable)
	}

	values, err := a.Unpack(call.Method, out)
	if err != nil {
		return nil, fmt.Errorf("evm: unpack %s: %w", call.Method, err)
	}
	return values, nil
}
