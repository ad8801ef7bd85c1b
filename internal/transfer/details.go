package transfer

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/layout"
	"github.com/wormhole-demo/connect/internal/protocols"
	"github.com/wormhole-demo/connect/internal/vaa"
)

// transferPayloads lists the payloads a transfer VAA may carry, most specific
// first: relay and Portico payloads also decode as opaque ones.
var transferPayloads = []struct {
	literal  string
	protocol protocols.Name
}{
	{vaa.NttWormholeTransfer, protocols.Ntt},
	{vaa.NttWormholeTransferStandardRelayer, protocols.AutomaticNtt},
	{vaa.PorticoTransfer, protocols.Portico},
	{vaa.TokenBridgeTransferWithRelay, protocols.AutomaticTokenBridge},
	{vaa.TokenBridgeTransfer, protocols.TokenBridge},
	{vaa.TokenBridgeTransferWithPayload, protocols.TokenBridge},
	{vaa.CircleTransferRelay, protocols.AutomaticCircleBridge},
	{vaa.CircleDepositWithPayload, protocols.AutomaticCircleBridge},
}

// decodeTransferVAA decodes a signed VAA carrying a transfer payload.
func decodeTransferVAA(r *vaa.Registry, raw []byte) (*vaa.VAA, protocols.Name, error) {
	v, err := r.Deserialize(vaa.RawLiteral, raw)
	if err != nil {
		return nil, "", err
	}
	for _, p := range transferPayloads {
		decoded, err := r.Decode(v, p.literal)
		if err == nil {
			return decoded, p.protocol, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNotTransfer, v.ID())
}

// detailsFromVAA rebuilds transfer details from a decoded transfer VAA.
func detailsFromVAA(v *vaa.VAA, network chains.Network) (Details, error) {
	p := v.Payload
	switch v.Protocol {
	case vaa.TokenBridge, vaa.AutomaticTokenBridge:
		token, err := p.Struct("token")
		if err != nil {
			return Details{}, err
		}
		to, err := p.Struct("to")
		if err != nil {
			return Details{}, err
		}
		amount, err := token.Big("amount")
		if err != nil {
			return Details{}, err
		}
		d := Details{
			Token:  chains.TokenID{Chain: token["chain"].(vaaLib.ChainID), Address: token["address"].(vaaLib.Address)},
			Amount: amount,
			From:   chains.ChainAddress{Chain: v.EmitterChain},
			To:     chains.ChainAddress{Chain: to["chain"].(vaaLib.ChainID), Address: to["address"].(vaaLib.Address)},
		}
		if from, ok := p["from"].(vaaLib.Address); ok {
			d.From.Address = from
		}
		switch payload := p["payload"].(type) {
		case []byte:
			d.Payload = payload
		case layout.Fields:
			if err := applyRelay(&d, payload); err != nil {
				return Details{}, err
			}
		}
		return d, nil

	case vaa.AutomaticCircleBridge:
		token, err := p.Struct("token")
		if err != nil {
			return Details{}, err
		}
		amount, err := token.Big("amount")
		if err != nil {
			return Details{}, err
		}
		src, err := p.Uint64("sourceDomain")
		if err != nil {
			return Details{}, err
		}
		dst, err := p.Uint64("targetDomain")
		if err != nil {
			return Details{}, err
		}
		srcChain, ok := chains.CircleChain(network, uint32(src))
		if !ok {
			return Details{}, fmt.Errorf("%w: circle domain %d", chains.ErrUnknownChain, src)
		}
		dstChain, ok := chains.CircleChain(network, uint32(dst))
		if !ok {
			return Details{}, fmt.Errorf("%w: circle domain %d", chains.ErrUnknownChain, dst)
		}
		d := Details{
			Token:  chains.TokenID{Chain: srcChain, Address: token["address"].(vaaLib.Address)},
			Amount: amount,
			From:   chains.ChainAddress{Chain: srcChain, Address: p["caller"].(vaaLib.Address)},
			To:     chains.ChainAddress{Chain: dstChain, Address: p["mintRecipient"].(vaaLib.Address)},
		}
		switch payload := p["payload"].(type) {
		case []byte:
			d.Payload = payload
		case layout.Fields:
			if err := applyRelay(&d, payload); err != nil {
				return Details{}, err
			}
		}
		return d, nil

	case vaa.Ntt:
		return nttDetails(v)

	case vaa.PorticoBridge:
		return porticoDetails(v)
	}
	return Details{}, fmt.Errorf("%w: %s", ErrNotTransfer, v.Literal())
}

// nttDetails reads an NTT transfer. Its amount is in the message's trimmed
// decimals.
func nttDetails(v *vaa.VAA) (Details, error) {
	msg, err := vaa.NttTransceiverMessage(v)
	if err != nil {
		return Details{}, err
	}
	manager, err := msg.Struct("nttManagerPayload")
	if err != nil {
		return Details{}, err
	}
	ntt, err := manager.Struct("payload")
	if err != nil {
		return Details{}, err
	}
	amount, err := ntt.Uint64("amount")
	if err != nil {
		return Details{}, err
	}
	return Details{
		Token:     chains.TokenID{Chain: v.EmitterChain, Address: ntt["sourceToken"].(vaaLib.Address)},
		Amount:    new(big.Int).SetUint64(amount),
		From:      chains.ChainAddress{Chain: v.EmitterChain, Address: manager["sender"].(vaaLib.Address)},
		To:        chains.ChainAddress{Chain: ntt["toChain"].(vaaLib.ChainID), Address: ntt["to"].(vaaLib.Address)},
		Automatic: v.Literal() == vaa.NttWormholeTransferStandardRelayer,
	}, nil
}

// porticoDetails reads a Portico trade. The token bridge recipient is the
// destination Portico contract; the trade names the actual recipient.
func porticoDetails(v *vaa.VAA) (Details, error) {
	p := v.Payload
	token, err := p.Struct("token")
	if err != nil {
		return Details{}, err
	}
	amount, err := token.Big("amount")
	if err != nil {
		return Details{}, err
	}
	trade, err := p.Struct("payload")
	if err != nil {
		return Details{}, err
	}
	flagSet, err := trade.Struct("flagSet")
	if err != nil {
		return Details{}, err
	}
	flags, err := vaa.ParsePorticoFlagSet(flagSet)
	if err != nil {
		return Details{}, err
	}
	return Details{
		Token:     chains.TokenID{Chain: token["chain"].(vaaLib.ChainID), Address: token["address"].(vaaLib.Address)},
		Amount:    amount,
		From:      chains.ChainAddress{Chain: v.EmitterChain, Address: p["from"].(vaaLib.Address)},
		To:        chains.ChainAddress{Chain: flags.RecipientChain, Address: trade["recipientAddress"].(vaaLib.Address)},
		Automatic: true,
	}, nil
}

// applyRelay marks d automatic and points it at the relay's recipient.
func applyRelay(d *Details, relay layout.Fields) error {
	gas, err := relay.Big("toNativeTokenAmount")
	if err != nil {
		return err
	}
	d.Automatic = true
	d.To.Address = relay["targetRecipient"].(vaaLib.Address)
	if gas.Sign() > 0 {
		d.NativeGas = gas
	}
	return nil
}

// detailsFromCircle rebuilds transfer details from a CCTP burn message.
func detailsFromCircle(m *vaa.CircleMessage, network chains.Network) (Details, error) {
	srcChain, ok := chains.CircleChain(network, m.SourceDomain)
	if !ok {
		return Details{}, fmt.Errorf("%w: circle domain %d", chains.ErrUnknownChain, m.SourceDomain)
	}
	dstChain, ok := chains.CircleChain(network, m.DestinationDomain)
	if !ok {
		return Details{}, fmt.Errorf("%w: circle domain %d", chains.ErrUnknownChain, m.DestinationDomain)
	}
	amount := m.Amount
	if amount == nil {
		amount = new(uint256.Int)
	}
	return Details{
		Token:  chains.TokenID{Chain: srcChain, Address: m.BurnToken},
		Amount: amount.ToBig(),
		From:   chains.ChainAddress{Chain: srcChain, Address: m.MessageSender},
		To:     chains.ChainAddress{Chain: dstChain, Address: m.MintRecipient},
	}, nil
}
