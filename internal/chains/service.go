package chains

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Service owns the RPC client for the active network.
type Service struct {
	cfg      Config
	resolved ResolvedChain
	client   *Client
}

// Dial resolves the active network and connects to its RPC.
func Dial(ctx context.Context, cfg Config) (*Service, error) {
	s := &Service{cfg: cfg}

	resolved, err := s.ResolveNetworkByName(cfg.ActiveNetwork)
	if err != nil {
		return nil, err
	}

	client, err := DialClient(ctx, resolved.URL, time.Duration(cfg.HeaderPollMs)*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", resolved.NetworkName, err)
	}

	if resolved.ChainID == 0 {
		id, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("chain id %q: %w", resolved.NetworkName, err)
		}
		resolved.ChainID = id.Uint64()
	}

	s.resolved = resolved
	s.client = client

	log.Info("connected to chain",
		"network", resolved.NetworkName,
		"chain_id", resolved.ChainID,
		"rpc", resolved.RPCName,
	)
	return s, nil
}

func (s *Service) Client() *Client { return s.client }

func (s *Service) Resolved() ResolvedChain { return s.resolved }

func (s *Service) ChainID() *big.Int { return new(big.Int).SetUint64(s.resolved.ChainID) }

// Close closes the RPC client (call on shutdown).
func (s *Service) Close() {
	if s != nil && s.client != nil {
		s.client.Close()
	}
}

func (s *Service) ResolveNetworkByName(networkName string) (ResolvedChain, error) {
	networkName = strings.TrimSpace(networkName)
	if networkName == "" {
		return ResolvedChain{}, errors.New("network name is empty")
	}

	for name, network := range s.cfg.Networks {
		if strings.EqualFold(name, networkName) {
			return s.resolveFromNetworkConfig(name, network)
		}
	}
	return ResolvedChain{}, fmt.Errorf("unknown network %q", networkName)
}

func (s *Service) resolveFromNetworkConfig(networkName string, network NetworkConfig) (ResolvedChain, error) {
	// pick RPC by preferred name; otherwise first
	var selectedRPC *RPC

	if preferred := strings.TrimSpace(s.cfg.PreferredRPCName); preferred != "" {
		for i := range network.RPCs {
			if strings.EqualFold(strings.TrimSpace(network.RPCs[i].Name), preferred) {
				selectedRPC = &network.RPCs[i]
				break
			}
		}
	}
	if selectedRPC == nil {
		if len(network.RPCs) == 0 {
			return ResolvedChain{}, fmt.Errorf("network %q has no RPCs configured", networkName)
		}
		selectedRPC = &network.RPCs[0]
	}

	if strings.TrimSpace(selectedRPC.URL) == "" {
		return ResolvedChain{}, fmt.Errorf("network %q rpc %q url is empty", networkName, selectedRPC.Name)
	}

	return ResolvedChain{
		NetworkName: networkName,
		ChainID:     network.ChainID,
		Explorer:    network.Explorer,
		RPCName:     selectedRPC.Name,
		URL:         selectedRPC.URL,
	}, nil
}
