package http

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/nexuslend-client/internal/fixedpoint"
	"github.com/quantumauth-io/nexuslend-client/internal/orchestrator"
	"github.com/quantumauth-io/nexuslend-client/internal/session"
	"github.com/quantumauth-io/nexuslend-client/internal/valuation"
)

// -------- requests --------

type openSessionReq struct {
	Symbol string `json:"symbol" binding:"required"`
	Kind   string `json:"kind"   binding:"required"`
}

type setAmountReq struct {
	Amount string `json:"amount"`
	Max    bool   `json:"max"`
}

// -------- responses --------

type accountRes struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
}

type healthFactorDTO struct {
	Value         string `json:"value"`
	Display       string `json:"display"`
	Infinite      bool   `json:"infinite"`
	CriticallyLow bool   `json:"criticallyLow"`
	Band          string `json:"band"`
}

type dashboardAssetDTO struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	Decimals      uint8  `json:"decimals"`
	Price         string `json:"price"`
	PriceLoaded   bool   `json:"priceLoaded"`
	WalletBalance string `json:"walletBalance"`
	WalletAmount  string `json:"walletAmount"`
	WalletUSD     string `json:"walletUsd"`
	WalletLoaded  bool   `json:"walletLoaded"`
	Supplied      string `json:"supplied"`
	SuppliedUSD   string `json:"suppliedUsd"`
	Borrowed      string `json:"borrowed"`
	BorrowedUSD   string `json:"borrowedUsd"`
	PositionReady bool   `json:"positionLoaded"`
	SupplyAPY     string `json:"supplyApy"`
	BorrowAPY     string `json:"borrowApy"`
	RatesLoaded   bool   `json:"ratesLoaded"`
	ReceiptSymbol string `json:"receiptSymbol"`
}

type dashboardRes struct {
	Account            string              `json:"account,omitempty"`
	NetWorth           string              `json:"netWorth"`
	NetWorthRaw        string              `json:"netWorthRaw"`
	TotalSupplied      string              `json:"totalSupplied"`
	TotalSuppliedRaw   string              `json:"totalSuppliedRaw"`
	TotalBorrowed      string              `json:"totalBorrowed"`
	TotalBorrowedRaw   string              `json:"totalBorrowedRaw"`
	HealthFactor       healthFactorDTO     `json:"healthFactor"`
	LedgerHealthFactor healthFactorDTO     `json:"ledgerHealthFactor"`
	Assets             []dashboardAssetDTO `json:"assets"`
	Version            uint64              `json:"version"`
}

type marketDTO struct {
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	Price          string `json:"price"`
	TotalSupply    string `json:"totalSupply"`
	TotalSupplyRaw string `json:"totalSupplyRaw"`
	TotalBorrow    string `json:"totalBorrow"`
	TotalBorrowRaw string `json:"totalBorrowRaw"`
	Utilization    string `json:"utilization"`
	SupplyAPY      string `json:"supplyApy"`
	BorrowAPY      string `json:"borrowApy"`
}

type marketsRes struct {
	TotalSupply        string      `json:"totalSupply"`
	TotalBorrow        string      `json:"totalBorrow"`
	AverageUtilization string      `json:"averageUtilization"`
	Markets            []marketDTO `json:"markets"`
}

type recordDTO struct {
	Kind   string `json:"kind"`
	Phase  string `json:"phase"`
	Asset  string `json:"asset,omitempty"`
	TxHash string `json:"txHash,omitempty"`
	Error  string `json:"error,omitempty"`
}

type sessionRes struct {
	Open    bool          `json:"open"`
	Session *session.View `json:"session,omitempty"`
	Records []recordDTO   `json:"records"`
}

func toHealthFactorDTO(h valuation.HealthFactor) healthFactorDTO {
	return healthFactorDTO{
		Value:         h.Value.String(),
		Display:       h.Display(),
		Infinite:      h.Infinite,
		CriticallyLow: h.CriticallyLow,
		Band:          string(h.Band()),
	}
}

func toDashboard(r valuation.Report) dashboardRes {
	res := dashboardRes{
		NetWorth:           fixedpoint.FormatUSD(r.NetWorth),
		NetWorthRaw:        r.NetWorth.String(),
		TotalSupplied:      fixedpoint.FormatUSD(r.TotalSupplied),
		TotalSuppliedRaw:   r.TotalSupplied.String(),
		TotalBorrowed:      fixedpoint.FormatUSD(r.TotalBorrowed),
		TotalBorrowedRaw:   r.TotalBorrowed.String(),
		HealthFactor:       toHealthFactorDTO(r.HealthFactor),
		LedgerHealthFactor: toHealthFactorDTO(r.LedgerHealthFactor),
		Assets:             make([]dashboardAssetDTO, 0, len(r.Assets)),
		Version:            r.Version,
	}
	if r.Account != (common.Address{}) {
		res.Account = r.Account.Hex()
	}

	for _, v := range r.Assets {
		res.Assets = append(res.Assets, dashboardAssetDTO{
			Symbol:        v.Asset.Symbol,
			Name:          v.Asset.Name,
			Address:       v.Asset.Address.Hex(),
			Decimals:      v.Asset.Decimals,
			Price:         fixedpoint.FormatPrice(v.Price),
			PriceLoaded:   v.PriceLoaded,
			WalletBalance: fixedpoint.FormatBalance(v.WalletBalanceRaw, v.Asset.Decimals),
			WalletAmount:  v.WalletBalance.String(),
			WalletUSD:     fixedpoint.FormatUSD(v.WalletUSD),
			WalletLoaded:  v.WalletLoaded,
			Supplied:      fixedpoint.FormatNumber(v.Supplied, 4),
			SuppliedUSD:   fixedpoint.FormatUSD(v.SuppliedUSD),
			Borrowed:      fixedpoint.FormatNumber(v.Borrowed, 4),
			BorrowedUSD:   fixedpoint.FormatUSD(v.BorrowedUSD),
			PositionReady: v.PositionLoaded,
			SupplyAPY:     fixedpoint.FormatPercent(v.SupplyAPY),
			BorrowAPY:     fixedpoint.FormatPercent(v.BorrowAPY),
			RatesLoaded:   v.RatesLoaded,
			ReceiptSymbol: v.Asset.ReceiptSymbol(),
		})
	}
	return res
}

func toMarkets(r valuation.Report) marketsRes {
	res := marketsRes{
		TotalSupply:        fixedpoint.FormatCompactUSD(r.Markets.TotalSupplyUSD),
		TotalBorrow:        fixedpoint.FormatCompactUSD(r.Markets.TotalBorrowUSD),
		AverageUtilization: r.Markets.AverageUtilization.StringFixed(1) + "%",
		Markets:            make([]marketDTO, 0, len(r.Assets)),
	}
	for _, v := range r.Assets {
		res.Markets = append(res.Markets, marketDTO{
			Symbol:         v.Asset.Symbol,
			Name:           v.Asset.Name,
			Price:          fixedpoint.FormatPrice(v.Price),
			TotalSupply:    fixedpoint.FormatCompactUSD(v.TotalSupplyUSD),
			TotalSupplyRaw: v.TotalSupplyUSD.String(),
			TotalBorrow:    fixedpoint.FormatCompactUSD(v.TotalBorrowUSD),
			TotalBorrowRaw: v.TotalBorrowUSD.String(),
			Utilization:    v.Utilization.StringFixed(0) + "%",
			SupplyAPY:      fixedpoint.FormatPercent(v.SupplyAPY),
			BorrowAPY:      fixedpoint.FormatPercent(v.BorrowAPY),
		})
	}
	return res
}

func toRecords(records []orchestrator.Record) []recordDTO {
	out := make([]recordDTO, 0, len(records))
	for _, r := range records {
		d := recordDTO{Kind: string(r.Kind), Phase: string(r.Phase), Asset: r.Asset}
		if r.Handle != (common.Hash{}) {
			d.TxHash = r.Handle.Hex()
		}
		if r.Err != nil {
			d.Error = r.Err.Error()
		}
		out = append(out, d)
	}
	return out
}
