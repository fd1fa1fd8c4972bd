package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABI_PackAndUnpack(t *testing.T) {
	pool, err := ABI(Pool)
	require.NoError(t, err)

	asset := common.HexToAddress("0x27d5315e5f6febe82ee7a4a6fa00e11095c5a70f")
	data, err := pool.Pack(MethodSupply, asset, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, pool.Methods[MethodSupply].ID, data[:4])

	positions := pool.Methods[MethodUserPositions]
	assert.Len(t, positions.Outputs, 4)

	for _, name := range []Name{ERC20, Oracle, RateModel} {
		_, err := ABI(name)
		assert.NoError(t, err, name)
	}
	_, err = ABI("nope")
	assert.Error(t, err)
}

func TestAddressConfig_Resolve(t *testing.T) {
	cfg := AddressConfig{
		Pool:      "0x087bd3cef36b00d2db4cd381fc76adee4a1b2357",
		Oracle:    "0xa6d224d5744d9bae8c5a71020a5ba82a29b215e4",
		RateModel: "0xe19e505290e1c4b35a2057798363b0ab8fe70224",
	}
	got, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(cfg.Pool), got.Pool)

	cfg.Oracle = "nope"
	_, err = cfg.Resolve()
	assert.Error(t, err)
}
