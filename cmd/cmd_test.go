package cmd

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/layout"
	"github.com/wormhole-demo/connect/internal/vaa"
)

func TestNetworkConfig(t *testing.T) {
	network, cfg, err := networkConfig("testnet")
	require.NoError(t, err)
	require.Equal(t, chains.Testnet, network)
	require.Contains(t, cfg.EVM, vaaLib.ChainIDSepolia)

	_, _, err = networkConfig("devnet")
	require.Error(t, err)
}

func TestEveryNetworkHasCircleTokensOnCCTPChains(t *testing.T) {
	for network, cfg := range NetworkConfigs {
		for chain := range cfg.circleTokens() {
			_, ok := chains.CircleDomain(chain)
			require.True(t, ok, "%s: %s has USDC but no CCTP domain", network, chain)
		}
	}
}

func TestParseChain(t *testing.T) {
	chain, err := parseChain("Ethereum")
	require.NoError(t, err)
	require.Equal(t, vaaLib.ChainIDEthereum, chain)

	chain, err = parseChain("30")
	require.NoError(t, err)
	require.Equal(t, vaaLib.ChainIDBase, chain)

	_, err = parseChain("atlantis")
	require.ErrorIs(t, err, chains.ErrUnknownChain)
}

func TestParseToken(t *testing.T) {
	native, err := parseToken(vaaLib.ChainIDEthereum, "native")
	require.NoError(t, err)
	require.True(t, native.IsNative())

	usdc, err := parseToken(vaaLib.ChainIDEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	require.Equal(t, byte(0xa0), usdc.Address[12])

	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	token, err := parseToken(vaaLib.ChainIDSolana, mint.String())
	require.NoError(t, err)
	require.Equal(t, vaaLib.Address(mint), token.Address)

	_, err = parseToken(vaaLib.ChainIDSolana, "not-base58!")
	require.ErrorIs(t, err, chains.ErrInvalidAddress)
}

func TestDecodeVAAPicksMatchingPayload(t *testing.T) {
	r := vaa.Default()
	v, err := r.Create(vaa.TokenBridgeTransfer, vaa.Create{
		EmitterChain: vaaLib.ChainIDEthereum,
		Sequence:     7,
		Payload: layout.Fields{
			"token": layout.Fields{"amount": uint64(100), "address": vaaLib.Address{31: 1}, "chain": vaaLib.ChainIDEthereum},
			"to":    layout.Fields{"address": vaaLib.Address{31: 2}, "chain": vaaLib.ChainIDSolana},
			"fee":   uint64(0),
		},
	})
	require.NoError(t, err)
	raw, err := r.Serialize(v)
	require.NoError(t, err)

	for _, encoded := range []string{
		hex.EncodeToString(raw),
		"0x" + hex.EncodeToString(raw),
		base64.StdEncoding.EncodeToString(raw),
	} {
		b, err := decodeBytes(encoded)
		require.NoError(t, err)
		decoded, err := decodeVAA(r, b)
		require.NoError(t, err)
		require.Equal(t, vaa.TokenBridgeTransfer, decoded.Literal())
		require.Equal(t, v.Hash(), decoded.Hash())
	}

	_, err = decodeBytes("%%%")
	require.Error(t, err)
}

const deploymentsYAML = `
ntt:
  - ethereum:
      token: "0x0000000000000000000000000000000000000a01"
      manager: "0x0000000000000000000000000000000000000a02"
      transceiver: "0x0000000000000000000000000000000000000a03"
    "30":
      token: "0x0000000000000000000000000000000000000b01"
      manager: "0x0000000000000000000000000000000000000b02"
      transceiver: "0x0000000000000000000000000000000000000b03"
portico:
  arbitrum:
    portico: "0x48b6101128C0ed1E208b7C910e60542A2ee6f476"
    canon_asset: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"
    relayer_fee: "0.0005"
`

func readDeployments(t *testing.T, doc string) (deployments, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return loadDeployments(v)
}

func TestDeploymentsExtendNetworkConfig(t *testing.T) {
	d, err := readDeployments(t, deploymentsYAML)
	require.NoError(t, err)
	cfg, err := d.apply(NetworkConfigs[chains.Mainnet])
	require.NoError(t, err)

	ethToken := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	require.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000a02"), cfg.EVM[vaaLib.ChainIDEthereum].Contracts.Ntt[ethToken].Manager)
	require.Len(t, cfg.nttTokens, 1)
	require.ElementsMatch(t, []chains.TokenID{
		{Chain: vaaLib.ChainIDEthereum, Address: chains.FromEVM(ethToken)},
		{Chain: vaaLib.ChainIDBase, Address: chains.FromEVM(common.HexToAddress("0x0000000000000000000000000000000000000b01"))},
	}, cfg.nttTokens[0])

	arb := cfg.EVM[vaaLib.ChainIDArbitrum].Contracts
	require.Equal(t, "0.0005", arb.PorticoRelayerFee)
	require.Equal(t, chains.FromEVM(arb.PorticoCanonAsset), cfg.porticoTokens[vaaLib.ChainIDArbitrum])

	// The shared defaults stay untouched.
	require.Empty(t, NetworkConfigs[chains.Mainnet].EVM[vaaLib.ChainIDEthereum].Contracts.Ntt)
	require.Equal(t, common.Address{}, NetworkConfigs[chains.Mainnet].EVM[vaaLib.ChainIDArbitrum].Contracts.Portico)
}

func TestDeploymentsRejectInvalidEntries(t *testing.T) {
	for name, doc := range map[string]string{
		"non-EVM chain": "portico:\n  solana:\n    portico: \"0x48b6101128C0ed1E208b7C910e60542A2ee6f476\"\n    canon_asset: \"0x82aF49447D8a07e3bd95BD0d56f35241523fBab1\"\n",
		"bad address":   "ntt:\n  - ethereum:\n      token: \"nope\"\n      manager: \"0x0000000000000000000000000000000000000a02\"\n      transceiver: \"0x0000000000000000000000000000000000000a03\"\n",
		"bad fee":       "portico:\n  base:\n    portico: \"0x48b6101128C0ed1E208b7C910e60542A2ee6f476\"\n    canon_asset: \"0x4200000000000000000000000000000000000006\"\n    relayer_fee: \"1e-3\"\n",
	} {
		d, err := readDeployments(t, doc)
		require.NoError(t, err, name)
		_, err = d.apply(NetworkConfigs[chains.Mainnet])
		require.Error(t, err, name)
	}

	d, err := readDeployments(t, "")
	require.NoError(t, err)
	cfg, err := d.apply(NetworkConfigs[chains.Testnet])
	require.NoError(t, err)
	require.Empty(t, cfg.nttTokens)
	require.Empty(t, cfg.porticoTokens)
}

func TestDecodeVAAPrefersPorticoOverOpaquePayload(t *testing.T) {
	r := vaa.Default()
	v, err := r.Create(vaa.PorticoTransfer, vaa.Create{
		EmitterChain: vaaLib.ChainIDEthereum,
		Sequence:     12,
		Payload: layout.Fields{
			"token": layout.Fields{"amount": uint64(100), "address": vaaLib.Address{31: 1}, "chain": vaaLib.ChainIDEthereum},
			"to":    layout.Fields{"address": vaaLib.Address{31: 2}, "chain": vaaLib.ChainIDArbitrum},
			"from":  vaaLib.Address{31: 3},
			"payload": layout.Fields{
				"flagSet": layout.Fields{
					"recipientChain": uint64(vaaLib.ChainIDArbitrum),
					"bridgeNonce":    uint64(5),
					"feeTierStart":   uint64(0),
					"feeTierFinish":  uint64(0),
					"flags":          uint64(0),
				},
				"finalTokenAddress": vaaLib.Address{31: 4},
				"recipientAddress":  vaaLib.Address{31: 5},
				"canonAssetAmount":  uint64(100),
				"minAmountFinish":   uint64(0),
				"relayerFee":        uint64(1),
			},
		},
	})
	require.NoError(t, err)
	raw, err := r.Serialize(v)
	require.NoError(t, err)

	decoded, err := decodeVAA(r, raw)
	require.NoError(t, err)
	require.Equal(t, vaa.PorticoTransfer, decoded.Literal())
}
