// Package contracts holds the minimal ABIs of the lending protocol contracts
// this client calls, and the deployed addresses they live at.
package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Name identifies one of the ABIs below.
type Name string

const (
	ERC20     Name = "erc20"
	Pool      Name = "pool"
	Oracle    Name = "oracle"
	RateModel Name = "rateModel"
)

// Method names used by the client.
const (
	MethodBalanceOf       = "balanceOf"
	MethodAllowance       = "allowance"
	MethodApprove         = "approve"
	MethodSupply          = "supply"
	MethodWithdraw        = "withdraw"
	MethodBorrow          = "borrow"
	MethodRepay           = "repay"
	MethodUserPositions   = "userPositions"
	MethodTotalLiquidity  = "totalLiquidity"
	MethodTotalBorrows    = "totalBorrows"
	MethodGetHealthFactor = "getHealthFactor"
	MethodGetPrice        = "getPrice"
	MethodGetBorrowRate   = "getBorrowRate"
	MethodGetSupplyRate   = "getSupplyRate"
)

const erc20ABI = `[
 {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const poolABI = `[
 {"name":"supply","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
 {"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
 {"name":"borrow","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
 {"name":"repay","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
 {"name":"getHealthFactor","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"name":"userPositions","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"},{"name":"asset","type":"address"}],"outputs":[{"name":"deposited","type":"uint256"},{"name":"borrowed","type":"uint256"},{"name":"borrowIndex","type":"uint256"},{"name":"lastUpdateTime","type":"uint256"}]},
 {"name":"totalLiquidity","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"name":"totalBorrows","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const oracleABI = `[
 {"name":"getPrice","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const rateModelABI = `[
 {"name":"getBorrowRate","type":"function","stateMutability":"view","inputs":[{"name":"totalBorrows","type":"uint256"},{"name":"totalLiquidity","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
 {"name":"getSupplyRate","type":"function","stateMutability":"view","inputs":[{"name":"totalBorrows","type":"uint256"},{"name":"totalLiquidity","type":"uint256"},{"name":"reserveFactor","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	parseOnce sync.Once
	parsed    map[Name]abi.ABI
	parseErr  error
)

// ABI returns the parsed ABI for name.
func ABI(name Name) (abi.ABI, error) {
	parseOnce.Do(func() {
		raw := map[Name]string{
			ERC20:     erc20ABI,
			Pool:      poolABI,
			Oracle:    oracleABI,
			RateModel: rateModelABI,
		}
		parsed = make(map[Name]abi.ABI, len(raw))
		for n, js := range raw {
			a, err := abi.JSON(strings.NewReader(js))
			if err != nil {
				parseErr = fmt.Errorf("contracts: parse %s abi: %w", n, err)
				return
			}
			parsed[n] = a
		}
	})
	if parseErr != nil {
		return abi.ABI{}, parseErr
	}
	a, ok := parsed[name]
	if !ok {
		return abi.ABI{}, fmt.Errorf("contracts: unknown abi %q", name)
	}
	return a, nil
}

// Addresses are the deployed protocol contracts.
type Addresses struct {
	Pool      common.Address
	Oracle    common.Address
	RateModel common.Address
}

// AddressConfig is the configuration form of Addresses.
type AddressConfig struct {
	Pool      string `yaml:"pool" json:"pool" mapstructure:"pool"`
	Oracle    string `yaml:"oracle" json:"oracle" mapstructure:"oracle"`
	RateModel string `yaml:"rateModel" json:"rateModel" mapstructure:"rateModel"`
}

// Resolve validates and converts the configured addresses.
func (c AddressConfig) Resolve() (Addresses, error) {
	var out Addresses
	for _, f := range []struct {
		name string
		raw  string
		dst  *common.Address
	}{
		{"pool", c.Pool, &out.Pool},
		{"oracle", c.Oracle, &out.Oracle},
		{"rateModel", c.RateModel, &out.RateModel},
	} {
		raw := strings.TrimSpace(f.raw)
		if !common.IsHexAddress(raw) {
			return Addresses{}, fmt.Errorf("contracts: invalid %s address %q", f.name, f.raw)
		}
		*f.dst = common.HexToAddress(raw)
	}
	return out, nil
}
