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
	"github.com/wormhole-demo/connect/internal/layout"
	"github.com/wormhole-demo/connect/internal/transfer"
	"github.com/wormhole-demo/connect/internal/vaa"
)

// transceiverInstructionsLayout carries one instruction per transceiver
// index. The Wormhole transceiver's instruction is a single
// skip-relayer flag.
var transceiverInstructionsLayout = layout.Layout{
	{Name: "instructions", Item: layout.Array{LengthSize: 1, Layout: layout.Layout{
		{Name: "index", Item: layout.U8()},
		{Name: "payload", Item: layout.Bytes{LengthSize: 1}},
	}}},
}

func transceiverInstructions(skipRelay bool) ([]byte, error) {
	flag := []byte{0}
	if skipRelay {
		flag[0] = 1
	}
	return layout.Encode(transceiverInstructionsLayout, layout.Fields{
		"instructions": []layout.Fields{{"index": uint64(0), "payload": flag}},
	})
}

// Ntt transfers a token through its NTT manager. The transfer is redeemed by
// handing the VAA to the destination's Wormhole transceiver.
type Ntt struct {
	*Client
}

func (n *Ntt) Transfer(ctx context.Context, d transfer.Details) iter.Seq2[transfer.UnsignedTx, error] {
	return n.nttTransfer(ctx, d, false)
}

func (n *Ntt) Redeem(ctx context.Context, recipient chains.ChainAddress, atts []*transfer.Attestation) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		att, err := wormholeAttestation(atts)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		msg, err := vaa.NttTransceiverMessage(att.VAA)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		dep, err := n.recipientDeployment(msg)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		n.logger.Info("Redeeming NTT transfer", zap.Stringer("id", att.ID), zap.Stringer("recipient", recipient))
		yield(n.tx("WormholeTransceiver.receiveMessage", nttTransceiver, dep.Transceiver, nil, "receiveMessage", att.Raw))
	}
}

func (n *Ntt) IsTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	return n.nttExecuted(ctx, atts)
}

// AutomaticNtt transfers through an NTT manager with the Wormhole standard
// relayer delivering to the destination. The relay is paid in native gas on
// top of the transfer, so nothing is deducted from the amount.
type AutomaticNtt struct {
	*Client
}

func (n *AutomaticNtt) Transfer(ctx context.Context, d transfer.Details) iter.Seq2[transfer.UnsignedTx, error] {
	return n.nttTransfer(ctx, d, true)
}

// Redeem is not offered: the standard relayer delivers to the transceiver.
func (n *AutomaticNtt) Redeem(ctx context.Context, recipient chains.ChainAddress, atts []*transfer.Attestation) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		yield(transfer.UnsignedTx{}, transfer.ErrAutomaticTransfer)
	}
}

func (n *AutomaticNtt) IsTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	return n.nttExecuted(ctx, atts)
}

// RelayerFee is zero once the relay can be quoted.
func (n *AutomaticNtt) RelayerFee(ctx context.Context, destination vaaLib.ChainID, token chains.TokenID) (*big.Int, error) {
	if _, err := n.DeliveryPrice(ctx, destination, token); err != nil {
		return nil, err
	}
	return new(big.Int), nil
}

// DeliveryPrice quotes the native gas the relayed transfer costs on top of
// the amount.
func (n *AutomaticNtt) DeliveryPrice(ctx context.Context, destination vaaLib.ChainID, token chains.TokenID) (*big.Int, error) {
	_, dep, err := n.nttDeployment(token)
	if err != nil {
		return nil, err
	}
	instructions, err := transceiverInstructions(false)
	if err != nil {
		return nil, err
	}
	return n.deliveryPrice(ctx, dep, destination, instructions)
}

func (c *Client) nttDeployment(token chains.TokenID) (common.Address, NttDeployment, error) {
	if token.Chain != c.chain {
		return common.Address{}, NttDeployment{}, fmt.Errorf("%w: %s on %s", ErrForeignToken, token, c.chain)
	}
	addr, err := chains.ToEVM(token.Address)
	if err != nil {
		return common.Address{}, NttDeployment{}, err
	}
	dep, ok := c.contracts.Ntt[addr]
	if !ok || token.IsNative() {
		return common.Address{}, NttDeployment{}, fmt.Errorf("%w: NTT manager for %s on %s", ErrNotDeployed, addr.Hex(), c.chain)
	}
	return addr, dep, nil
}

// recipientDeployment finds the deployment whose manager msg is addressed to.
func (c *Client) recipientDeployment(msg layout.Fields) (NttDeployment, error) {
	manager, err := layout.Value[vaaLib.Address](msg, "recipientNttManager")
	if err != nil {
		return NttDeployment{}, err
	}
	addr, err := chains.ToEVM(manager)
	if err != nil {
		return NttDeployment{}, err
	}
	for _, dep := range c.contracts.Ntt {
		if dep.Manager == addr {
			return dep, nil
		}
	}
	return NttDeployment{}, fmt.Errorf("%w: NTT manager %s on %s", ErrNotDeployed, addr.Hex(), c.chain)
}

func (c *Client) deliveryPrice(ctx context.Context, dep NttDeployment, destination vaaLib.ChainID, instructions []byte) (*big.Int, error) {
	res, err := c.call(ctx, nttManager, dep.Manager, "quoteDeliveryPrice", uint16(destination), instructions)
	if err != nil {
		return nil, err
	}
	return res[1].(*big.Int), nil
}

func (c *Client) nttTransfer(ctx context.Context, d transfer.Details, relayed bool) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		token, dep, err := c.nttDeployment(d.Token)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		instructions, err := transceiverInstructions(!relayed)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		price, err := c.deliveryPrice(ctx, dep, d.To.Chain, instructions)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		approve, err := c.approval(ctx, d, token, dep.Manager)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		if approve != nil && !yield(*approve, nil) {
			return
		}
		yield(c.tx("NttManager.transfer", nttManager, dep.Manager, price,
			"transfer", d.Amount, uint16(d.To.Chain), [32]byte(d.To.Address), [32]byte(d.From.Address), false, instructions))
	}
}

func (c *Client) nttExecuted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	att, err := wormholeAttestation(atts)
	if err != nil {
		return false, err
	}
	msg, err := vaa.NttTransceiverMessage(att.VAA)
	if err != nil {
		return false, err
	}
	dep, err := c.recipientDeployment(msg)
	if err != nil {
		return false, err
	}
	manager, err := msg.Struct("nttManagerPayload")
	if err != nil {
		return false, err
	}
	digest, err := vaa.NttMessageDigest(att.VAA.EmitterChain, manager)
	if err != nil {
		return false, err
	}
	res, err := c.call(ctx, nttManager, dep.Manager, "isMessageExecuted", [32]byte(digest))
	if err != nil {
		return false, err
	}
	return res[0].(bool), nil
}
