package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	utilsconfig "github.com/quantumauth-io/quantum-go-utils/config"

	"github.com/quantumauth-io/nexuslend-client/internal/assets"
	"github.com/quantumauth-io/nexuslend-client/internal/chains"
	"github.com/quantumauth-io/nexuslend-client/internal/constants"
	"github.com/quantumauth-io/nexuslend-client/internal/contracts"
)

type ClientSettings struct {
	LocalHost      string
	Port           string
	AllowedOrigins []string
	HistoryPath    string
	KeystorePath   string
}

// EngineSettings tunes the orchestrator and the ledger adapters.
type EngineSettings struct {
	SettleDelayMs         int
	ApprovalSettleDelayMs int
	ReadTimeoutMs         int
	ReadsPerSecond        float64
	// ReceiptTimeoutMs bounds each receipt wait; 0 waits forever.
	ReceiptTimeoutMs int
	ReceiptPollMs    int
}

func (e EngineSettings) SettleDelay() time.Duration {
	return ms(e.SettleDelayMs, constants.DefaultSettleDelay)
}

func (e EngineSettings) ApprovalSettleDelay() time.Duration {
	return ms(e.ApprovalSettleDelayMs, constants.DefaultApprovalSettleDelay)
}

func (e EngineSettings) ReadTimeout() time.Duration {
	return ms(e.ReadTimeoutMs, constants.DefaultReadTimeout)
}

func (e EngineSettings) ReceiptTimeout() time.Duration {
	return ms(e.ReceiptTimeoutMs, 0)
}

func (e EngineSettings) ReceiptPollInterval() time.Duration {
	return ms(e.ReceiptPollMs, constants.DefaultReceiptPollInterval)
}

func ms(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

type Config struct {
	ClientSettings *ClientSettings
	Chains         chains.Config           `mapstructure:"Chains"`
	Contracts      contracts.AddressConfig `mapstructure:"Contracts"`
	Assets         []assets.Definition     `mapstructure:"Assets"`
	Engine         EngineSettings          `mapstructure:"Engine"`
}

func Load() (*Config, error) {
	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".config", constants.AppName),
		filepath.Join(home, "config"),
		".",
	}

	cfg, err := utilsconfig.ParseConfigWithEmbedded[Config](paths, EmbeddedConfigYAML)
	if err != nil {
		return nil, err
	}
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Prepare applies environment overrides, fills defaults and validates.
func (c *Config) Prepare() error {
	if c.ClientSettings == nil {
		c.ClientSettings = &ClientSettings{}
	}
	if c.ClientSettings.LocalHost == "" {
		c.ClientSettings.LocalHost = "127.0.0.1"
	}
	if c.ClientSettings.Port == "" {
		c.ClientSettings.Port = "6137"
	}
	if c.ClientSettings.HistoryPath == "" {
		home, _ := os.UserHomeDir()
		c.ClientSettings.HistoryPath = filepath.Join(home, ".config", constants.AppName, constants.HistoryFile)
	}
	if p := os.Getenv(constants.EnvKeystore); p != "" {
		c.ClientSettings.KeystorePath = p
	}
	if c.ClientSettings.KeystorePath == "" {
		home, _ := os.UserHomeDir()
		c.ClientSettings.KeystorePath = filepath.Join(home, ".config", constants.AppName, constants.KeystoreFile)
	}

	c.Chains.Normalize()
	if err := c.ApplyNetworkFromEnv(); err != nil {
		return err
	}
	if err := c.InjectRPCURL(os.Getenv(constants.EnvRPCURL)); err != nil {
		return err
	}
	if err := c.NormalizeAddresses(); err != nil {
		return err
	}
	return nil
}

// ApplyNetworkFromEnv selects the active network from NEXUSLEND_ENV.
func (c *Config) ApplyNetworkFromEnv() error {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(constants.EnvNetwork)))

	switch raw {
	case "":
		// keep the configured network
	case "local", "anvil":
		c.Chains.ActiveNetwork = "local"
	case "sepolia", "testnet":
		c.Chains.ActiveNetwork = "sepolia"
	default:
		if _, ok := c.Chains.Networks[raw]; !ok {
			return fmt.Errorf("invalid %s %q (allowed: local, sepolia, or a configured network)", constants.EnvNetwork, raw)
		}
		c.Chains.ActiveNetwork = raw
	}

	if _, ok := c.Chains.Networks[c.Chains.ActiveNetwork]; !ok {
		return fmt.Errorf("active network %q is not configured", c.Chains.ActiveNetwork)
	}
	return nil
}

// InjectRPCURL puts url in front of the active network's RPC list.
func (c *Config) InjectRPCURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") &&
		!strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return fmt.Errorf("invalid %s %q", constants.EnvRPCURL, url)
	}

	net := c.Chains.Networks[c.Chains.ActiveNetwork]
	net.RPCs = append([]chains.RPC{{Name: "env", URL: url}}, net.RPCs...)

	// write back (map value copy)
	c.Chains.Networks[c.Chains.ActiveNetwork] = net
	c.Chains.PreferredRPCName = "env"
	return nil
}

// NormalizeAddresses rewrites every configured address to checksum form.
func (c *Config) NormalizeAddresses() error {
	for _, p := range []*string{&c.Contracts.Pool, &c.Contracts.Oracle, &c.Contracts.RateModel} {
		canon, err := assets.NormalizeAddress(*p)
		if err != nil {
			return fmt.Errorf("Contracts: %w", err)
		}
		*p = canon
	}
	for i := range c.Assets {
		canon, err := assets.NormalizeAddress(c.Assets[i].Address)
		if err != nil {
			return fmt.Errorf("Assets[%d]: %w", i, err)
		}
		c.Assets[i].Address = canon
	}
	return nil
}
