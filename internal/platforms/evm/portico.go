package evm

import (
	"context"
	"fmt"
	"iter"
	"math/big"
	"math/rand/v2"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/amount"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/transfer"
	"github.com/wormhole-demo/connect/internal/vaa"
)

// porticoTrade mirrors the TradeParameters tuple of Portico.start.
type porticoTrade struct {
	FlagSet                   [32]byte
	StartTokenAddress         common.Address
	CanonAssetAddress         common.Address
	FinalTokenAddress         common.Address
	RecipientAddress          common.Address
	DestinationPorticoAddress common.Address
	AmountSpecified           *big.Int
	MinAmountStart            *big.Int
	MinAmountFinish           *big.Int
	RelayerFee                *big.Int
}

// Portico bridges a chain's canonical asset through the token bridge with a
// Portico payload; the Portico relayer completes the trade on the
// destination. Trades never swap: the canonical asset is both the start and
// the final token, wrapped from native when the sender sends native.
type Portico struct {
	*Client
	peers ClientFunc
}

func (p *Portico) destination(ctx context.Context, chain vaaLib.ChainID) (*Client, error) {
	dst, err := p.peers(ctx, chain)
	if err != nil {
		return nil, err
	}
	if dst.contracts.Portico == (common.Address{}) || dst.contracts.PorticoCanonAsset == (common.Address{}) {
		return nil, fmt.Errorf("%w: Portico on %s", ErrNotDeployed, chain)
	}
	return dst, nil
}

func (p *Portico) Transfer(ctx context.Context, d transfer.Details) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		canon := p.contracts.PorticoCanonAsset
		if canon == (common.Address{}) {
			yield(transfer.UnsignedTx{}, fmt.Errorf("%w: Portico on %s", ErrNotDeployed, p.chain))
			return
		}
		native := d.Token.IsNative()
		if !native {
			token, err := chains.ToEVM(d.Token.Address)
			if err != nil {
				yield(transfer.UnsignedTx{}, err)
				return
			}
			if token != canon {
				yield(transfer.UnsignedTx{}, fmt.Errorf("%w: Portico on %s bridges %s, not %s", ErrNotDeployed, p.chain, canon.Hex(), token.Hex()))
				return
			}
		}
		dst, err := p.destination(ctx, d.To.Chain)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		recipient, err := chains.ToEVM(d.To.Address)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		fee, err := p.RelayerFee(ctx, d.To.Chain, d.Token)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		flags, err := vaa.PorticoFlagSet{
			RecipientChain:   d.To.Chain,
			BridgeNonce:      rand.Uint32(),
			ShouldWrapNative: native,
		}.Encode()
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		value, err := p.messageFee(ctx)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		if native {
			value = new(big.Int).Add(value, d.Amount)
		} else {
			approve, err := p.approval(ctx, d, canon, p.contracts.Portico)
			if err != nil {
				yield(transfer.UnsignedTx{}, err)
				return
			}
			if approve != nil && !yield(*approve, nil) {
				return
			}
		}
		yield(p.tx("Portico.start", portico, p.contracts.Portico, value, "start", porticoTrade{
			FlagSet:                   flags,
			StartTokenAddress:         canon,
			CanonAssetAddress:         canon,
			FinalTokenAddress:         dst.contracts.PorticoCanonAsset,
			RecipientAddress:          recipient,
			DestinationPorticoAddress: dst.contracts.Portico,
			AmountSpecified:           d.Amount,
			MinAmountStart:            d.Amount,
			MinAmountFinish:           new(big.Int),
			RelayerFee:                fee,
		}))
	}
}

// Redeem is not offered: the Portico relayer completes trades.
func (p *Portico) Redeem(ctx context.Context, recipient chains.ChainAddress, atts []*transfer.Attestation) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		yield(transfer.UnsignedTx{}, transfer.ErrAutomaticTransfer)
	}
}

func (p *Portico) IsTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	return p.isTransferCompleted(ctx, atts)
}

// RelayerFee converts the destination's configured Portico fee into base
// units of token.
func (p *Portico) RelayerFee(ctx context.Context, destination vaaLib.ChainID, token chains.TokenID) (*big.Int, error) {
	dst, err := p.destination(ctx, destination)
	if err != nil {
		return nil, err
	}
	if dst.contracts.PorticoRelayerFee == "" {
		return nil, fmt.Errorf("%w: Portico relayer fee for %s", ErrNotDeployed, destination)
	}
	decimals, err := p.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	fee, err := amount.Parse(dst.contracts.PorticoRelayerFee, decimals)
	if err != nil {
		return nil, err
	}
	return fee.Units(), nil
}
