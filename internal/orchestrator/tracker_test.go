package orchestrator

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker(nil)
	assert.Equal(t, PhaseIdle, tr.Get(KindSupply).Phase)

	require.NoError(t, tr.Begin(KindSupply, "req-1", "mDAI", big.NewInt(5)))
	assert.Equal(t, PhaseSubmitting, tr.Get(KindSupply).Phase)

	h := common.HexToHash("0x01")
	tr.Submitted(KindSupply, h)
	r := tr.Get(KindSupply)
	assert.Equal(t, PhaseAwaitingConfirmation, r.Phase)
	assert.Equal(t, h, r.Handle)

	tr.Confirmed(KindSupply)
	assert.Equal(t, PhaseConfirmed, tr.Get(KindSupply).Phase)
}

func TestTracker_RejectsWhileActiveAndKeepsRecord(t *testing.T) {
	tr := NewTracker(nil)
	require.NoError(t, tr.Begin(KindBorrow, "req-1", "mWETH", big.NewInt(1)))
	tr.Submitted(KindBorrow, common.HexToHash("0xaa"))

	err := tr.Begin(KindBorrow, "req-2", "mWETH", big.NewInt(2))
	assert.ErrorIs(t, err, ErrWriteInFlight)

	r := tr.Get(KindBorrow)
	assert.Equal(t, "req-1", r.RequestID)
	assert.Equal(t, int64(1), r.Amount.Int64())

	require.NoError(t, tr.Begin(KindRepay, "req-3", "mWETH", big.NewInt(1)))
}

func TestTracker_TerminalPhasesDoNotBlock(t *testing.T) {
	tr := NewTracker(nil)
	for _, end := range []func(){
		func() { tr.Failed(KindWithdraw, errors.New("boom")) },
		func() { tr.Unknown(KindWithdraw, ErrReceiptTimeout) },
		func() { tr.Confirmed(KindWithdraw) },
	} {
		require.NoError(t, tr.Begin(KindWithdraw, "r", "mDAI", big.NewInt(1)))
		end()
		assert.False(t, tr.Busy(KindWithdraw))
	}
	assert.Len(t, tr.All(), len(Kinds))
}

func TestTracker_ClaimBlocksOtherRequestsUntilBeginOrRelease(t *testing.T) {
	tr := NewTracker(nil)
	require.NoError(t, tr.Claim(KindBorrow, "req-1"))
	assert.True(t, tr.Busy(KindBorrow))
	assert.Equal(t, PhaseIdle, tr.Get(KindBorrow).Phase)

	assert.ErrorIs(t, tr.Claim(KindBorrow, "req-2"), ErrWriteInFlight)
	assert.ErrorIs(t, tr.Begin(KindBorrow, "req-2", "mWETH", big.NewInt(1)), ErrWriteInFlight)

	require.NoError(t, tr.Begin(KindBorrow, "req-1", "mWETH", big.NewInt(1)))
	assert.Equal(t, PhaseSubmitting, tr.Get(KindBorrow).Phase)
	tr.Confirmed(KindBorrow)
	assert.False(t, tr.Busy(KindBorrow))

	require.NoError(t, tr.Claim(KindRepay, "req-3"))
	tr.Release(KindRepay, "req-4")
	assert.True(t, tr.Busy(KindRepay))
	tr.Release(KindRepay, "req-3")
	assert.False(t, tr.Busy(KindRepay))
}
