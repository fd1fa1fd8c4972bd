package assets

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Asset is a token the pool supports. Values are fixed at startup.
type Asset struct {
	Address  common.Address
	Symbol   string
	Name     string
	Decimals uint8

	// Fallbacks shown until the first successful oracle / rate model read.
	FallbackPrice     decimal.Decimal
	FallbackSupplyAPY decimal.Decimal
	FallbackBorrowAPY decimal.Decimal
}

// ReceiptSymbol is the symbol of the token minted by the pool on supply.
func (a Asset) ReceiptSymbol() string {
	sym := a.Symbol
	if len(sym) > 1 && sym[0] == 'm' {
		sym = sym[1:]
	}
	return "n" + sym
}

// Definition is the configuration form of an Asset.
type Definition struct {
	Address           string `yaml:"address" json:"address" mapstructure:"address"`
	Symbol            string `yaml:"symbol" json:"symbol" mapstructure:"symbol"`
	Name              string `yaml:"name" json:"name" mapstructure:"name"`
	Decimals          uint8  `yaml:"decimals" json:"decimals" mapstructure:"decimals"`
	FallbackPrice     string `yaml:"fallbackPrice" json:"fallbackPrice" mapstructure:"fallbackPrice"`
	FallbackSupplyAPY string `yaml:"fallbackSupplyAPY" json:"fallbackSupplyAPY" mapstructure:"fallbackSupplyAPY"`
	FallbackBorrowAPY string `yaml:"fallbackBorrowAPY" json:"fallbackBorrowAPY" mapstructure:"fallbackBorrowAPY"`
}
