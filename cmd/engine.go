package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/attestation"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/platforms/evm"
	solanaPlatform "github.com/wormhole-demo/connect/internal/platforms/solana"
	"github.com/wormhole-demo/connect/internal/protocols"
	"github.com/wormhole-demo/connect/internal/routes"
	"github.com/wormhole-demo/connect/internal/transfer"
)

const spyCacheSize = 1000

// engine holds the clients one command runs against.
type engine struct {
	network   chains.Network
	config    NetworkConfig
	evm       *evm.Pool
	solanaRPC *rpc.Client
	solana    *solanaPlatform.Client
	spy       *attestation.SpyWatcher
	fetcher   *attestation.Fetcher
	protocols *protocols.Registry
	deps      transfer.Deps
	resolver  *routes.Resolver
	logger    *zap.Logger
}

type engineOptions struct {
	// SolanaKey is the base58 key that pays for Solana redemptions.
	SolanaKey string
}

func newEngine(cmd *cobra.Command, logger *zap.Logger, opts engineOptions) (*engine, error) {
	network, defaults, err := networkConfig(viper.GetString("network"))
	if err != nil {
		return nil, err
	}
	extra, err := loadDeployments(viper.GetViper())
	if err != nil {
		return nil, err
	}
	deployed, err := extra.apply(defaults)
	if err != nil {
		return nil, err
	}
	cfg := deployed.NetworkConfig
	overrides, _ := cmd.Flags().GetStringToString("rpc")

	e := &engine{network: network, config: cfg, logger: logger}

	rpcs := make(map[vaaLib.ChainID]string)
	contracts := make(map[vaaLib.ChainID]evm.Contracts)
	for chain, chainCfg := range cfg.EVM {
		rpcs[chain] = chainCfg.DefaultRPCURL
		contracts[chain] = chainCfg.Contracts
	}
	solanaURL := firstNonEmpty(viper.GetString("solana_rpc_url"), cfg.SolanaRPCURL)
	for name, url := range overrides {
		chain, err := parseChain(name)
		if err != nil {
			return nil, fmt.Errorf("invalid --rpc override: %w", err)
		}
		if chain == vaaLib.ChainIDSolana {
			solanaURL = url
			continue
		}
		rpcs[chain] = url
	}
	e.evm = evm.NewPool(logger, rpcs, contracts)

	e.solanaRPC = rpc.New(solanaURL)
	var payer solana.PublicKey
	if opts.SolanaKey != "" {
		key, err := solana.PrivateKeyFromBase58(opts.SolanaKey)
		if err != nil {
			return nil, fmt.Errorf("invalid Solana private key: %w", err)
		}
		payer = key.PublicKey()
	}
	e.solana = solanaPlatform.NewClient(logger, e.solanaRPC, cfg.SolanaPrograms, payer, viper.GetString("vaa_service_url"))

	b := protocols.NewBuilder()
	if err := evm.Register(b, e.evm.Client); err != nil {
		return nil, err
	}
	if err := solanaPlatform.Register(b, e.solana); err != nil {
		return nil, err
	}
	e.protocols = b.Build()

	var spy attestation.VAASource
	if host := viper.GetString("spy_rpc_host"); host != "" {
		e.spy, err = attestation.NewSpyWatcher(logger, host, spyCacheSize, e.tokenBridgeEmitters()...)
		if err != nil {
			return nil, err
		}
		spy = e.spy
	}
	e.fetcher = attestation.NewFetcher(logger,
		attestation.NewAPIClient(logger, firstNonEmpty(viper.GetString("api_url"), cfg.APIURL)),
		attestation.NewCircleClient(logger, firstNonEmpty(viper.GetString("circle_api_url"), cfg.CircleAPIURL)),
		spy)

	e.deps = transfer.Deps{
		Protocols: e.protocols,
		Fetcher:   e.fetcher,
		Network:   network,
		Logger:    logger,
	}
	e.resolver = routes.NewResolver(routes.Config{
		Protocols:     e.protocols,
		Transfer:      e.deps,
		CircleTokens:  cfg.circleTokens(),
		NttTokens:     deployed.nttTokens,
		PorticoTokens: deployed.porticoTokens,
		Logger:        logger,
	})

	logger.Info("Configuration",
		zap.String("network", string(network)),
		zap.String("solanaRPC", solanaURL),
		zap.Bool("spy", e.spy != nil),
		zap.Int("evmChains", len(rpcs)),
		zap.Int("nttTokens", len(deployed.nttTokens)),
		zap.Int("porticoChains", len(deployed.porticoTokens)))
	return e, nil
}

// tokenBridgeEmitters are the token bridge emitters of every configured
// chain.
func (e *engine) tokenBridgeEmitters() []chains.ChainAddress {
	var out []chains.ChainAddress
	for chain, cfg := range e.config.EVM {
		if cfg.Contracts.TokenBridge != (common.Address{}) {
			out = append(out, chains.ChainAddress{Chain: chain, Address: chains.FromEVM(cfg.Contracts.TokenBridge)})
		}
	}
	emitter, _, err := solana.FindProgramAddress([][]byte{[]byte("emitter")}, e.config.SolanaPrograms.TokenBridge)
	if err == nil {
		out = append(out, chains.ChainAddress{Chain: vaaLib.ChainIDSolana, Address: vaaLib.Address(emitter)})
	}
	return out
}

// signer creates a signer for chain from a hex (EVM) or base58 (Solana) key.
func (e *engine) signer(ctx context.Context, chain vaaLib.ChainID, privateKey string) (transfer.Signer, error) {
	if privateKey == "" {
		return nil, fmt.Errorf("private key is required to sign on %s", chain)
	}
	platform, err := chains.PlatformOf(chain)
	if err != nil {
		return nil, err
	}
	switch platform {
	case chains.Evm:
		client, err := e.evm.Client(ctx, chain)
		if err != nil {
			return nil, err
		}
		return evm.NewSigner(e.logger, chain, client.Backend(), privateKey)
	case chains.Solana:
		return solanaPlatform.NewSigner(e.logger, e.solanaRPC, privateKey)
	default:
		return nil, fmt.Errorf("%w: no signer for %s", protocols.ErrUnsupported, platform)
	}
}

// parseToken reads "native" or a token address on chain.
func parseToken(chain vaaLib.ChainID, s string) (chains.TokenID, error) {
	if s == "" || strings.EqualFold(s, "native") {
		return chains.Native(chain), nil
	}
	addr, err := parseAddress(chain, s)
	if err != nil {
		return chains.TokenID{}, err
	}
	return chains.TokenID{Chain: chain, Address: addr}, nil
}

// parseAddress reads a base58 Solana address or a hex address.
func parseAddress(chain vaaLib.ChainID, s string) (vaaLib.Address, error) {
	if chain == vaaLib.ChainIDSolana && !strings.HasPrefix(s, "0x") {
		key, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return vaaLib.Address{}, fmt.Errorf("%w: %s", chains.ErrInvalidAddress, s)
		}
		return vaaLib.Address(key), nil
	}
	return chains.ParseUniversal(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func durationFlag(cmd *cobra.Command, name string) time.Duration {
	d, _ := cmd.Flags().GetDuration(name)
	return d
}
