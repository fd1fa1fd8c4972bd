package assets

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinitions() []Definition {
	return []Definition{
		{Address: "0x27d5315e5f6febe82ee7a4a6fa00e11095c5a70f", Symbol: "mWETH", Name: "Mock Wrapped ETH", Decimals: 18, FallbackPrice: "3000", FallbackSupplyAPY: "2.1", FallbackBorrowAPY: "3.8"},
		{Address: "5f2821f166947717187759e205144def4442814a", Symbol: "mUSDC", Name: "Mock USD Coin", Decimals: 6, FallbackPrice: "1"},
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(testDefinitions())
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "mWETH", list[0].Symbol)
	assert.Equal(t, "mUSDC", list[1].Symbol)

	usdc, ok := r.BySymbol(" musdc ")
	require.True(t, ok)
	assert.Equal(t, uint8(6), usdc.Decimals)
	assert.True(t, usdc.FallbackSupplyAPY.IsZero())

	weth, ok := r.ByAddress(common.HexToAddress("0x27d5315e5f6febe82ee7a4a6fa00e11095c5a70f"))
	require.True(t, ok)
	assert.True(t, weth.FallbackPrice.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, "nWETH", weth.ReceiptSymbol())
}

func TestNewRegistry_Rejects(t *testing.T) {
	cases := map[string][]Definition{
		"empty":          nil,
		"bad address":    {{Address: "0x1234", Symbol: "X"}},
		"empty symbol":   {{Address: "0x27d5315e5f6febe82ee7a4a6fa00e11095c5a70f"}},
		"negative price": {{Address: "0x27d5315e5f6febe82ee7a4a6fa00e11095c5a70f", Symbol: "X", FallbackPrice: "-1"}},
		"duplicate": {
			{Address: "0x27d5315e5f6febe82ee7a4a6fa00e11095c5a70f", Symbol: "X"},
			{Address: "0x27D5315E5F6FEBE82EE7A4A6FA00E11095C5A70F", Symbol: "Y"},
		},
	}
	for name, defs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(defs)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("27D5315E5F6FEBE82EE7A4A6FA00E11095C5A70F")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x27d5315e5f6febe82ee7a4a6fa00e11095c5a70f").Hex(), got)

	_, err = NormalizeAddress("")
	assert.Error(t, err)
}
