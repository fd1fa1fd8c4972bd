// Package valuation derives USD values, aggregates, utilization and the
// account health factor from a mirror snapshot. Compute is pure; Engine reruns
// it whenever the mirror changes.
package valuation

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/nexuslend-client/internal/assets"
	"github.com/quantumauth-io/nexuslend-client/internal/fixedpoint"
	"github.com/quantumauth-io/nexuslend-client/internal/mirror"
)

var (
	hundred = decimal.NewFromInt(100)
)

// AssetView is everything derived for one asset.
type AssetView struct {
	Asset assets.Asset

	Price       decimal.Decimal
	PriceLoaded bool

	WalletBalanceRaw *big.Int
	WalletBalance    decimal.Decimal
	WalletUSD        decimal.Decimal
	WalletLoaded     bool

	SuppliedRaw    *big.Int
	Supplied       decimal.Decimal
	SuppliedUSD    decimal.Decimal
	BorrowedRaw    *big.Int
	Borrowed       decimal.Decimal
	BorrowedUSD    decimal.Decimal
	PositionLoaded bool

	SupplyAPY   decimal.Decimal
	BorrowAPY   decimal.Decimal
	RatesLoaded bool

	// TotalBorrowUSD is the market's total borrows. Utilization is the
	// account's borrowed value over TotalSupplyUSD.
	TotalSupplyUSD decimal.Decimal
	TotalBorrowUSD decimal.Decimal
	Utilization    decimal.Decimal
}

// Markets aggregates the markets view. TotalBorrowUSD sums the account's
// borrowed positions.
type Markets struct {
	TotalSupplyUSD     decimal.Decimal
	TotalBorrowUSD     decimal.Decimal
	AverageUtilization decimal.Decimal
}

// Report is the full derivation of one snapshot.
type Report struct {
	Version uint64
	Account common.Address

	Assets []AssetView

	NetWorth      decimal.Decimal
	TotalSupplied decimal.Decimal
	TotalBorrowed decimal.Decimal

	HealthFactor       HealthFactor
	LedgerHealthFactor HealthFactor

	Markets Markets

	ComputedAt time.Time
}

// Asset returns the view of the asset with the given symbol.
func (r Report) Asset(symbol string) (AssetView, bool) {
	for _, a := range r.Assets {
		if a.Asset.Symbol == symbol {
			return a, true
		}
	}
	return AssetView{}, false
}

// Compute derives a Report. user may be the zero address, in which case every
// account-scoped value is zero and unloaded.
func Compute(snap mirror.Snapshot, list []assets.Asset, user common.Address) Report {
	r := Report{
		Version:    snap.Version,
		Account:    user,
		Assets:     make([]AssetView, 0, len(list)),
		ComputedAt: time.Now(),
	}

	for _, a := range list {
		v := assetView(snap, a, user)
		r.Assets = append(r.Assets, v)

		r.NetWorth = r.NetWorth.Add(v.WalletUSD)
		r.TotalSupplied = r.TotalSupplied.Add(v.SuppliedUSD)
		r.TotalBorrowed = r.TotalBorrowed.Add(v.BorrowedUSD)
		r.Markets.TotalSupplyUSD = r.Markets.TotalSupplyUSD.Add(v.TotalSupplyUSD)
		r.Markets.TotalBorrowUSD = r.Markets.TotalBorrowUSD.Add(v.BorrowedUSD)
	}

	r.HealthFactor = ComputeHealthFactor(r.TotalSupplied, r.TotalBorrowed)
	raw, loaded := snap.Int(mirror.HealthFactorKey(user))
	r.LedgerHealthFactor = LedgerHealthFactor(raw, loaded)

	if r.Markets.TotalSupplyUSD.IsPositive() {
		r.Markets.AverageUtilization = r.Markets.TotalBorrowUSD.Div(r.Markets.TotalSupplyUSD).Mul(hundred)
	}
	return r
}

func assetView(snap mirror.Snapshot, a assets.Asset, user common.Address) AssetView {
	v := AssetView{Asset: a, Price: a.FallbackPrice}
	scale := int32(a.Decimals)

	if raw, ok := snap.Int(mirror.PriceKey(a.Address)); ok {
		v.Price = fixedpoint.PriceToDecimal(raw)
		v.PriceLoaded = true
	}

	if user != (common.Address{}) {
		if raw, ok := snap.Int(mirror.WalletBalanceKey(user, a.Address)); ok {
			v.WalletBalanceRaw = raw
			v.WalletBalance = fixedpoint.ToDecimal(raw, scale)
			v.WalletLoaded = true
		}
		if p, ok := snap.Position(user, a.Address); ok {
			v.SuppliedRaw, v.BorrowedRaw = p.Supplied, p.Borrowed
			v.Supplied = fixedpoint.ToDecimal(p.Supplied, scale)
			v.Borrowed = fixedpoint.ToDecimal(p.Borrowed, scale)
			v.PositionLoaded = true
		}
	}
	v.WalletUSD = fixedpoint.ToUSD(v.WalletBalance, v.Price)
	v.SuppliedUSD = fixedpoint.ToUSD(v.Supplied, v.Price)
	v.BorrowedUSD = fixedpoint.ToUSD(v.Borrowed, v.Price)

	v.SupplyAPY, v.BorrowAPY = a.FallbackSupplyAPY, a.FallbackBorrowAPY
	supplyRaw, supplyOK := snap.Int(mirror.SupplyRateKey(a.Address))
	borrowRaw, borrowOK := snap.Int(mirror.BorrowRateKey(a.Address))
	if supplyOK {
		v.SupplyAPY = fixedpoint.RateToPercent(supplyRaw)
	}
	if borrowOK {
		v.BorrowAPY = fixedpoint.RateToPercent(borrowRaw)
	}
	v.RatesLoaded = supplyOK && borrowOK

	liquidity, _ := snap.Int(mirror.TotalLiquidityKey(a.Address))
	borrows, _ := snap.Int(mirror.TotalBorrowsKey(a.Address))
	v.TotalSupplyUSD = fixedpoint.ToUSD(fixedpoint.ToDecimal(liquidity, scale), v.Price)
	v.TotalBorrowUSD = fixedpoint.ToUSD(fixedpoint.ToDecimal(borrows, scale), v.Price)
	v.Utilization = Utilization(v.BorrowedUSD, v.TotalSupplyUSD)
	return v
}

// Utilization returns min(round(borrowed / supplied * 100), 100), or 0 when
// nothing is supplied.
func Utilization(borrowedUSD, suppliedUSD decimal.Decimal) decimal.Decimal {
	if !suppliedUSD.IsPositive() {
		return decimal.Zero
	}
	u := borrowedUSD.Div(suppliedUSD).Mul(hundred).Round(0)
	return decimal.Min(u, hundred)
}
