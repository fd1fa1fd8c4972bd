package mirror

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Kind names one remote read.
type Kind string

const (
	KindWalletBalance  Kind = "walletBalance"
	KindAllowance      Kind = "allowance"
	KindPosition       Kind = "position"
	KindHealthFactor   Kind = "healthFactor"
	KindTotalLiquidity Kind = "totalLiquidity"
	KindTotalBorrows   Kind = "totalBorrows"
	KindPrice          Kind = "price"
	KindBorrowRate     Kind = "borrowRate"
	KindSupplyRate     Kind = "supplyRate"
)

// AccountScoped reports whether reads of this kind need a user.
func (k Kind) AccountScoped() bool {
	switch k {
	case KindWalletBalance, KindAllowance, KindPosition, KindHealthFactor:
		return true
	}
	return false
}

// Key identifies one mirrored value. Asset is zero for KindHealthFactor, User
// is zero for market-wide kinds.
type Key struct {
	Kind  Kind
	Asset common.Address
	User  common.Address
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.Asset.Hex() + "/" + k.User.Hex()
}

func WalletBalanceKey(user, asset common.Address) Key {
	return Key{Kind: KindWalletBalance, Asset: asset, User: user}
}

func AllowanceKey(user, asset common.Address) Key {
	return Key{Kind: KindAllowance, Asset: asset, User: user}
}

func PositionKey(user, asset common.Address) Key {
	return Key{Kind: KindPosition, Asset: asset, User: user}
}

func HealthFactorKey(user common.Address) Key {
	return Key{Kind: KindHealthFactor, User: user}
}

func TotalLiquidityKey(asset common.Address) Key {
	return Key{Kind: KindTotalLiquidity, Asset: asset}
}

func TotalBorrowsKey(asset common.Address) Key {
	return Key{Kind: KindTotalBorrows, Asset: asset}
}

func PriceKey(asset common.Address) Key {
	return Key{Kind: KindPrice, Asset: asset}
}

func BorrowRateKey(asset common.Address) Key {
	return Key{Kind: KindBorrowRate, Asset: asset}
}

func SupplyRateKey(asset common.Address) Key {
	return Key{Kind: KindSupplyRate, Asset: asset}
}

// Position mirrors NexusPool.userPositions.
type Position struct {
	Supplied    *big.Int
	Borrowed    *big.Int
	BorrowIndex *big.Int
	LastUpdate  time.Time
}

// Entry is the last observation of a key. Loaded is false until a read
// succeeds and again after a failed read; Value keeps the last good value.
type Entry struct {
	Loaded    bool
	Value     any
	UpdatedAt time.Time
	Err       error
}

// Int returns the value as an integer, nil when absent or of another shape.
func (e Entry) Int() *big.Int {
	v, _ := e.Value.(*big.Int)
	return v
}

// Position returns the value as a Position, zero when absent.
func (e Entry) Position() Position {
	p, _ := e.Value.(Position)
	return p
}
