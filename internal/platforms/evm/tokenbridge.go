package evm

import (
	"context"
	"fmt"
	"iter"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/transfer"
	"github.com/wormhole-demo/connect/internal/vaa"
)

// TokenBridge is the manual Wormhole token bridge.
type TokenBridge struct {
	*Client
}

func (b *TokenBridge) Transfer(ctx context.Context, d transfer.Details) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		fee, err := b.messageFee(ctx)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		recipient := [32]byte(d.To.Address)
		target := uint16(d.To.Chain)

		if d.Token.IsNative() {
			value := new(big.Int).Add(d.Amount, fee)
			tx, err := b.tx("TokenBridge.wrapAndTransferETH", tokenBridge, b.contracts.TokenBridge, value,
				"wrapAndTransferETH", target, recipient, new(big.Int), uint32(0))
			yield(tx, err)
			return
		}

		token, err := chains.ToEVM(d.Token.Address)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		approve, err := b.approval(ctx, d, token, b.contracts.TokenBridge)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		if approve != nil && !yield(*approve, nil) {
			return
		}

		var tx transfer.UnsignedTx
		if d.Payload != nil {
			tx, err = b.tx("TokenBridge.transferTokensWithPayload", tokenBridge, b.contracts.TokenBridge, fee,
				"transferTokensWithPayload", token, d.Amount, target, recipient, uint32(0), d.Payload)
		} else {
			tx, err = b.tx("TokenBridge.transferTokens", tokenBridge, b.contracts.TokenBridge, fee,
				"transferTokens", token, d.Amount, target, recipient, new(big.Int), uint32(0))
		}
		yield(tx, err)
	}
}

func (b *TokenBridge) Redeem(ctx context.Context, recipient chains.ChainAddress, atts []*transfer.Attestation) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		att, err := wormholeAttestation(atts)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		method := "completeTransfer"
		if att.VAA.Literal() == vaa.TokenBridgeTransferWithPayload {
			method = "completeTransferWithPayload"
		}
		b.logger.Info("Redeeming transfer", zap.Stringer("id", att.ID), zap.Stringer("recipient", recipient))
		yield(b.tx("TokenBridge."+method, tokenBridge, b.contracts.TokenBridge, nil, method, att.Raw))
	}
}

func (b *TokenBridge) IsTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	return b.isTransferCompleted(ctx, atts)
}

func (c *Client) isTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	att, err := wormholeAttestation(atts)
	if err != nil {
		return false, err
	}
	res, err := c.call(ctx, tokenBridge, c.contracts.TokenBridge, "isTransferCompleted", [32]byte(att.VAA.Digest()))
	if err != nil {
		return false, err
	}
	return res[0].(bool), nil
}

// AutomaticTokenBridge transfers through the token bridge relayer, which
// redeems on the destination and can drop off native gas.
type AutomaticTokenBridge struct {
	*Client
}

func (b *AutomaticTokenBridge) Transfer(ctx context.Context, d transfer.Details) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		fee, err := b.messageFee(ctx)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		recipient := [32]byte(d.To.Address)
		target := uint16(d.To.Chain)
		nativeGas := d.NativeGas
		if nativeGas == nil {
			nativeGas = new(big.Int)
		}

		if d.Token.IsNative() {
			value := new(big.Int).Add(d.Amount, fee)
			tx, err := b.tx("TokenBridgeRelayer.wrapAndTransferEthWithRelay", tokenBridgeRelayer, b.contracts.TokenBridgeRelayer, value,
				"wrapAndTransferEthWithRelay", nativeGas, target, recipient, uint32(0))
			yield(tx, err)
			return
		}

		token, err := chains.ToEVM(d.Token.Address)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		approve, err := b.approval(ctx, d, token, b.contracts.TokenBridgeRelayer)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		if approve != nil && !yield(*approve, nil) {
			return
		}
		yield(b.tx("TokenBridgeRelayer.transferTokensWithRelay", tokenBridgeRelayer, b.contracts.TokenBridgeRelayer, fee,
			"transferTokensWithRelay", token, d.Amount, nativeGas, target, recipient, uint32(0)))
	}
}

// Redeem completes a relayed transfer without the relayer. The recipient
// receives no native gas drop-off.
func (b *AutomaticTokenBridge) Redeem(ctx context.Context, recipient chains.ChainAddress, atts []*transfer.Attestation) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		att, err := wormholeAttestation(atts)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		yield(b.tx("TokenBridgeRelayer.completeTransferWithRelay", tokenBridgeRelayer, b.contracts.TokenBridgeRelayer, nil,
			"completeTransferWithRelay", att.Raw))
	}
}

func (b *AutomaticTokenBridge) IsTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	return b.isTransferCompleted(ctx, atts)
}

// RelayerFee quotes the relayer's fee to destination, in base units of token.
func (b *AutomaticTokenBridge) RelayerFee(ctx context.Context, destination vaaLib.ChainID, token chains.TokenID) (*big.Int, error) {
	addr := b.contracts.WrappedNative
	if !token.IsNative() {
		var err error
		if addr, err = chains.ToEVM(token.Address); err != nil {
			return nil, err
		}
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("%w: wrapped native token on %s", ErrNotDeployed, b.chain)
	}
	decimals, err := b.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	res, err := b.call(ctx, tokenBridgeRelayer, b.contracts.TokenBridgeRelayer, "calculateRelayerFee", uint16(destination), addr, uint8(decimals))
	if err != nil {
		return nil, err
	}
	return res[0].(*big.Int), nil
}

func wormholeAttestation(atts []*transfer.Attestation) (*transfer.Attestation, error) {
	for _, a := range atts {
		if a.VAA != nil {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: no VAA among %d attestations", transfer.ErrUnsupportedAttestation, len(atts))
}
