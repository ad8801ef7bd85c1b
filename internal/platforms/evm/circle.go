package evm

import (
	"context"
	"fmt"
	"iter"
	"math/big"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/transfer"
)

// CircleBridge burns USDC through Circle's TokenMessenger and mints it with
// the MessageTransmitter once Circle attests the burn.
type CircleBridge struct {
	*Client
}

func (b *CircleBridge) Transfer(ctx context.Context, d transfer.Details) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		domain, ok := chains.CircleDomain(d.To.Chain)
		if !ok {
			yield(transfer.UnsignedTx{}, fmt.Errorf("%w: no CCTP domain for %s", ErrNotDeployed, d.To.Chain))
			return
		}
		token, err := chains.ToEVM(d.Token.Address)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		approve, err := b.approval(ctx, d, token, b.contracts.TokenMessenger)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		if approve != nil && !yield(*approve, nil) {
			return
		}
		yield(b.tx("TokenMessenger.depositForBurn", tokenMessenger, b.contracts.TokenMessenger, nil,
			"depositForBurn", d.Amount, domain, [32]byte(d.To.Address), token))
	}
}

func (b *CircleBridge) Redeem(ctx context.Context, recipient chains.ChainAddress, atts []*transfer.Attestation) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		att, id, err := circleAttestation(atts)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		b.logger.Info("Receiving Circle message", zap.Stringer("id", id), zap.Stringer("recipient", recipient))
		yield(b.tx("MessageTransmitter.receiveMessage", messageTransmitter, b.contracts.MessageTransmitter, nil,
			"receiveMessage", id.Message, att.Raw))
	}
}

func (b *CircleBridge) IsTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	return b.nonceUsed(ctx, atts)
}

func (c *Client) nonceUsed(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	att, _, err := circleAttestation(atts)
	if err != nil {
		return false, err
	}
	res, err := c.call(ctx, messageTransmitter, c.contracts.MessageTransmitter, "usedNonces", [32]byte(att.Circle.UsedNonceKey()))
	if err != nil {
		return false, err
	}
	return res[0].(*big.Int).Sign() != 0, nil
}

// AutomaticCircleBridge transfers USDC through the Wormhole Circle relayer.
type AutomaticCircleBridge struct {
	*Client
}

func (b *AutomaticCircleBridge) Transfer(ctx context.Context, d transfer.Details) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		fee, err := b.messageFee(ctx)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		token, err := chains.ToEVM(d.Token.Address)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		approve, err := b.approval(ctx, d, token, b.contracts.CircleRelayer)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		if approve != nil && !yield(*approve, nil) {
			return
		}
		nativeGas := d.NativeGas
		if nativeGas == nil {
			nativeGas = new(big.Int)
		}
		yield(b.tx("CircleRelayer.transferTokensWithRelay", circleRelayer, b.contracts.CircleRelayer, fee,
			"transferTokensWithRelay", token, d.Amount, nativeGas, uint16(d.To.Chain), [32]byte(d.To.Address)))
	}
}

// Redeem is not offered: the Circle relayer mints to itself and only it can
// complete the relay.
func (b *AutomaticCircleBridge) Redeem(ctx context.Context, recipient chains.ChainAddress, atts []*transfer.Attestation) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		yield(transfer.UnsignedTx{}, transfer.ErrAutomaticTransfer)
	}
}

func (b *AutomaticCircleBridge) IsTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	return b.nonceUsed(ctx, atts)
}

func (b *AutomaticCircleBridge) RelayerFee(ctx context.Context, destination vaaLib.ChainID, token chains.TokenID) (*big.Int, error) {
	addr, err := chains.ToEVM(token.Address)
	if err != nil {
		return nil, err
	}
	res, err := b.call(ctx, circleRelayer, b.contracts.CircleRelayer, "relayerFee", uint16(destination), addr)
	if err != nil {
		return nil, err
	}
	return res[0].(*big.Int), nil
}

func circleAttestation(atts []*transfer.Attestation) (*transfer.Attestation, transfer.CircleMessageID, error) {
	for _, a := range atts {
		if id, ok := a.ID.(transfer.CircleMessageID); ok && a.Circle != nil {
			return a, id, nil
		}
	}
	return nil, transfer.CircleMessageID{}, fmt.Errorf("%w: no Circle attestation among %d attestations", transfer.ErrUnsupportedAttestation, len(atts))
}
