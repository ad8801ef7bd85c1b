package cmd

import (
	"fmt"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/amount"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/platforms/evm"
)

// nttDeployment is one chain's deployment of an NTT token.
type nttDeployment struct {
	Token       string `mapstructure:"token"`
	Manager     string `mapstructure:"manager"`
	Transceiver string `mapstructure:"transceiver"`
}

// porticoDeployment is one chain's Portico contract and the asset it bridges.
type porticoDeployment struct {
	Portico    string `mapstructure:"portico"`
	CanonAsset string `mapstructure:"canon_asset"`
	// RelayerFee is what the Portico relayer charges to deliver to this
	// chain, in whole tokens.
	RelayerFee string `mapstructure:"relayer_fee"`
}

// deployments are the NTT tokens and Portico contracts read from the config
// file. Chains are keyed by name or chain id.
type deployments struct {
	Ntt     []map[string]nttDeployment   `mapstructure:"ntt"`
	Portico map[string]porticoDeployment `mapstructure:"portico"`
}

func loadDeployments(v *viper.Viper) (deployments, error) {
	var d deployments
	if err := v.UnmarshalKey("ntt", &d.Ntt); err != nil {
		return deployments{}, fmt.Errorf("invalid ntt config: %w", err)
	}
	if err := v.UnmarshalKey("portico", &d.Portico); err != nil {
		return deployments{}, fmt.Errorf("invalid portico config: %w", err)
	}
	return d, nil
}

// deployedConfig is a network config with the deployments applied.
type deployedConfig struct {
	NetworkConfig
	nttTokens     [][]chains.TokenID
	porticoTokens map[vaaLib.ChainID]vaaLib.Address
}

// apply adds d to the contracts of cfg's EVM chains. cfg is not modified.
func (d deployments) apply(cfg NetworkConfig) (deployedConfig, error) {
	out := deployedConfig{NetworkConfig: cfg, porticoTokens: make(map[vaaLib.ChainID]vaaLib.Address)}
	out.EVM = maps.Clone(cfg.EVM)

	chainConfig := func(name string) (vaaLib.ChainID, EVMChainConfig, error) {
		chain, err := parseChain(name)
		if err != nil {
			return 0, EVMChainConfig{}, err
		}
		c, ok := out.EVM[chain]
		if !ok {
			return 0, EVMChainConfig{}, fmt.Errorf("%s is not an EVM chain of this network", chain)
		}
		return chain, c, nil
	}

	for i, token := range d.Ntt {
		var group []chains.TokenID
		for name, dep := range token {
			chain, c, err := chainConfig(name)
			if err != nil {
				return deployedConfig{}, fmt.Errorf("ntt token %d: %w", i, err)
			}
			addrs, err := hexAddresses(dep.Token, dep.Manager, dep.Transceiver)
			if err != nil {
				return deployedConfig{}, fmt.Errorf("ntt token %d on %s: %w", i, chain, err)
			}
			c.Contracts.Ntt = maps.Clone(c.Contracts.Ntt)
			if c.Contracts.Ntt == nil {
				c.Contracts.Ntt = make(map[common.Address]evm.NttDeployment)
			}
			c.Contracts.Ntt[addrs[0]] = evm.NttDeployment{Manager: addrs[1], Transceiver: addrs[2]}
			out.EVM[chain] = c
			group = append(group, chains.TokenID{Chain: chain, Address: chains.FromEVM(addrs[0])})
		}
		if len(group) > 1 {
			out.nttTokens = append(out.nttTokens, group)
		}
	}

	for name, dep := range d.Portico {
		chain, c, err := chainConfig(name)
		if err != nil {
			return deployedConfig{}, fmt.Errorf("portico: %w", err)
		}
		addrs, err := hexAddresses(dep.Portico, dep.CanonAsset)
		if err != nil {
			return deployedConfig{}, fmt.Errorf("portico on %s: %w", chain, err)
		}
		if dep.RelayerFee != "" {
			if _, err := amount.Parse(dep.RelayerFee, 18); err != nil {
				return deployedConfig{}, fmt.Errorf("portico relayer fee on %s: %w", chain, err)
			}
		}
		c.Contracts.Portico = addrs[0]
		c.Contracts.PorticoCanonAsset = addrs[1]
		c.Contracts.PorticoRelayerFee = dep.RelayerFee
		out.EVM[chain] = c
		out.porticoTokens[chain] = chains.FromEVM(addrs[1])
	}
	return out, nil
}

func hexAddresses(values ...string) ([]common.Address, error) {
	out := make([]common.Address, len(values))
	for i, v := range values {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("%w: %q", chains.ErrInvalidAddress, v)
		}
		out[i] = common.HexToAddress(v)
	}
	return out, nil
}
