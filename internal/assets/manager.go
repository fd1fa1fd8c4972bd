package assets

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Registry is the read-only set of supported assets, in configuration order.
type Registry struct {
	ordered  []Asset
	byAddr   map[common.Address]int
	bySymbol map[string]int
}

// NewRegistry validates definitions and builds the registry.
func NewRegistry(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("assets: no assets configured")
	}

	r := &Registry{
		ordered:  make([]Asset, 0, len(defs)),
		byAddr:   make(map[common.Address]int, len(defs)),
		bySymbol: make(map[string]int, len(defs)),
	}

	for i, def := range defs {
		addr, err := NormalizeAddress(def.Address)
		if err != nil {
			return nil, fmt.Errorf("assets[%d]: %w", i, err)
		}
		sym := strings.TrimSpace(def.Symbol)
		if sym == "" {
			return nil, fmt.Errorf("assets[%d]: empty symbol", i)
		}
		if def.Decimals > 77 {
			return nil, fmt.Errorf("assets[%d]: decimals out of range: %d", i, def.Decimals)
		}

		price, err := parseFallback(def.FallbackPrice)
		if err != nil {
			return nil, fmt.Errorf("assets[%s]: fallback price: %w", sym, err)
		}
		supplyAPY, err := parseFallback(def.FallbackSupplyAPY)
		if err != nil {
			return nil, fmt.Errorf("assets[%s]: fallback supply apy: %w", sym, err)
		}
		borrowAPY, err := parseFallback(def.FallbackBorrowAPY)
		if err != nil {
			return nil, fmt.Errorf("assets[%s]: fallback borrow apy: %w", sym, err)
		}

		a := Asset{
			Address:           common.HexToAddress(addr),
			Symbol:            sym,
			Name:              strings.TrimSpace(def.Name),
			Decimals:          def.Decimals,
			FallbackPrice:     price,
			FallbackSupplyAPY: supplyAPY,
			FallbackBorrowAPY: borrowAPY,
		}

		if _, dup := r.byAddr[a.Address]; dup {
			return nil, fmt.Errorf("assets: duplicate address %s", a.Address.Hex())
		}
		key := strings.ToLower(sym)
		if _, dup := r.bySymbol[key]; dup {
			return nil, fmt.Errorf("assets: duplicate symbol %q", sym)
		}

		r.byAddr[a.Address] = len(r.ordered)
		r.bySymbol[key] = len(r.ordered)
		r.ordered = append(r.ordered, a)
	}

	return r, nil
}

// List returns the assets in configuration order.
func (r *Registry) List() []Asset {
	out := make([]Asset, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry) BySymbol(symbol string) (Asset, bool) {
	i, ok := r.bySymbol[strings.ToLower(strings.TrimSpace(symbol))]
	if !ok {
		return Asset{}, false
	}
	return r.ordered[i], true
}

func (r *Registry) ByAddress(addr common.Address) (Asset, bool) {
	i, ok := r.byAddr[addr]
	if !ok {
		return Asset{}, false
	}
	return r.ordered[i], true
}

func parseFallback(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative value %s", s)
	}
	return d, nil
}

// NormalizeAddress => checksummed canonical form
func NormalizeAddress(addr string) (string, error) {
	a := strings.TrimSpace(addr)
	if a == "" {
		return "", fmt.Errorf("empty address")
	}
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		a = "0x" + a
	}
	a = strings.ToLower(a)
	if !common.IsHexAddress(a) {
		return "", fmt.Errorf("invalid address: %q", addr)
	}
	return common.HexToAddress(a).Hex(), nil
}
