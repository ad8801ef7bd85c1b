package chains

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

func TestPlatformOf(t *testing.T) {
	p, err := PlatformOf(vaaLib.ChainIDBase)
	require.NoError(t, err)
	require.Equal(t, Evm, p)

	p, err = PlatformOf(vaaLib.ChainIDSolana)
	require.NoError(t, err)
	require.Equal(t, Solana, p)

	_, err = PlatformOf(vaaLib.ChainID(9999))
	require.ErrorIs(t, err, ErrUnknownChain)
}

func TestEVMAddresses(t *testing.T) {
	a := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	u := FromEVM(a)
	require.Equal(t, make([]byte, 12), u[:12])

	back, err := ToEVM(u)
	require.NoError(t, err)
	require.Equal(t, a, back)

	u[0] = 1
	_, err = ToEVM(u)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestParseUniversal(t *testing.T) {
	a, err := ParseUniversal("0xabc")
	require.NoError(t, err)
	require.Equal(t, vaaLib.Address{30: 0x0a, 31: 0xbc}, a)

	_, err = ParseUniversal("zz")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseUniversal("0x01" + "0000000000000000000000000000000000000000000000000000000000000000")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestTokenID(t *testing.T) {
	require.True(t, Native(vaaLib.ChainIDEthereum).IsNative())
	require.Equal(t, "ethereum:native", Native(vaaLib.ChainIDEthereum).String())

	tok := TokenID{Chain: vaaLib.ChainIDEthereum, Address: vaaLib.Address{31: 1}}
	require.False(t, tok.IsNative())
	require.Equal(t, "ethereum:0x"+"0000000000000000000000000000000000000000000000000000000000000001", tok.String())
}

func TestCircleDomains(t *testing.T) {
	d, ok := CircleDomain(vaaLib.ChainIDBase)
	require.True(t, ok)
	require.Equal(t, uint32(6), d)

	_, ok = CircleDomain(vaaLib.ChainIDSui)
	require.False(t, ok)

	c, ok := CircleChain(Mainnet, 6)
	require.True(t, ok)
	require.Equal(t, vaaLib.ChainIDBase, c)

	c, ok = CircleChain(Testnet, 6)
	require.True(t, ok)
	require.Equal(t, vaaLib.ChainIDBaseSepolia, c)

	c, ok = CircleChain(Testnet, 5)
	require.True(t, ok)
	require.Equal(t, vaaLib.ChainIDSolana, c)

	for _, network := range []Network{Mainnet, Testnet} {
		c, ok = CircleChain(network, 1)
		require.True(t, ok, network)
		require.Equal(t, vaaLib.ChainIDAvalanche, c)
	}

	c, ok = CircleChain(Testnet, 7)
	require.True(t, ok)
	require.Equal(t, vaaLib.ChainIDPolygonSepolia, c)

	for _, network := range []Network{Mainnet, Testnet} {
		for domain, chain := range circleChains[network] {
			d, ok := CircleDomain(chain)
			require.True(t, ok, chain)
			require.Equal(t, domain, d, chain)
		}
	}

	_, ok = CircleChain(Mainnet, 42)
	require.False(t, ok)
}
