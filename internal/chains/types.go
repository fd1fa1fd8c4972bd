package chains

// Config selects the network and RPC the client talks to.
type Config struct {
	Networks         map[string]NetworkConfig `json:"networks" yaml:"networks" mapstructure:"networks"`
	ActiveNetwork    string                   `json:"activeNetwork" yaml:"activeNetwork" mapstructure:"activeNetwork"`
	PreferredRPCName string                   `json:"preferredRPC" yaml:"preferredRPC" mapstructure:"preferredRPC"`
	HeaderPollMs     int                      `json:"headerPollMs" yaml:"headerPollMs" mapstructure:"headerPollMs"`
}

// NetworkConfig describes a network and its RPC endpoints.
type NetworkConfig struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name"`
	ChainID  uint64 `json:"chainId" yaml:"chainId" mapstructure:"chainId"`
	RPCs     []RPC  `json:"rpcs" yaml:"rpcs" mapstructure:"rpcs"`
	Explorer string `json:"explorer" yaml:"explorer" mapstructure:"explorer"`
}

type RPC struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	URL  string `json:"url" yaml:"url" mapstructure:"url"`
}

// ResolvedChain is the network + RPC picked from Config.
type ResolvedChain struct {
	NetworkName string
	ChainID     uint64
	Explorer    string

	RPCName string
	URL     string
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for name, n := range c.Networks {
		n.Name = name
		c.Networks[name] = n
	}
}
