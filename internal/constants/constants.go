package constants

import "time"

const (
	AppName      = "nexuslend-client"
	HistoryFile  = "history.db"
	KeystoreFile = "keystore.json"

	FilePerm      = 0o600
	DirectoryPerm = 0o700

	// Fixed-point scales used by the ledger.
	RayDecimals = 27
	WadDecimals = 18

	// ReserveFactorRay is 10% in RAY, passed to InterestRateModel.getSupplyRate.
	ReserveFactorRay = "100000000000000000000000000"

	// LoanToValue is the share of supplied value usable as borrowing power.
	LoanToValue = "0.75"

	// Health factor thresholds (USD / ratio).
	NegligibleBorrowUSD   = "0.01"
	HealthFactorCeiling   = "999"
	HealthFactorFloor     = "0.01"
	LedgerHealthFactorCap = "100"

	// ApprovalMultiplier is applied to the requested amount when an approval is needed.
	ApprovalMultiplier = 2

	DefaultSettleDelay         = 2 * time.Second
	DefaultApprovalSettleDelay = 500 * time.Millisecond
	DefaultReadTimeout         = 15 * time.Second
	DefaultReceiptPollInterval = 750 * time.Millisecond
	MaxReceiptPollInterval     = 3 * time.Second

	EnvNetwork    = "NEXUSLEND_ENV"
	EnvPrivateKey = "NEXUSLEND_PRIVATE_KEY"
	EnvRPCURL     = "NEXUSLEND_RPC_URL"
	EnvKeystore   = "NEXUSLEND_KEYSTORE"
)
