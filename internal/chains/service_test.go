package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := Config{
		Networks: map[string]NetworkConfig{
			"sepolia": {
				ChainID: 11155111,
				RPCs: []RPC{
					{Name: "Public", URL: "https://rpc.sepolia.org"},
					{Name: "Infura", URL: "https://sepolia.infura.io/v3/key"},
				},
			},
			"empty": {ChainID: 1},
		},
		ActiveNetwork: "sepolia",
	}
	cfg.Normalize()
	return cfg
}

func TestResolveNetworkByName(t *testing.T) {
	s := &Service{cfg: testConfig()}

	got, err := s.ResolveNetworkByName(" Sepolia ")
	require.NoError(t, err)
	assert.Equal(t, "sepolia", got.NetworkName)
	assert.Equal(t, "Public", got.RPCName)
	assert.Equal(t, uint64(11155111), got.ChainID)

	s.cfg.PreferredRPCName = "infura"
	got, err = s.ResolveNetworkByName("sepolia")
	require.NoError(t, err)
	assert.Equal(t, "https://sepolia.infura.io/v3/key", got.URL)
}

func TestResolveNetworkByName_Errors(t *testing.T) {
	s := &Service{cfg: testConfig()}

	_, err := s.ResolveNetworkByName("")
	assert.Error(t, err)
	_, err = s.ResolveNetworkByName("mainnet")
	assert.Error(t, err)
	_, err = s.ResolveNetworkByName("empty")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "sepolia", cfg.Networks["sepolia"].Name)
}
