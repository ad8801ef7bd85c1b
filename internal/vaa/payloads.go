package vaa

import (
	"github.com/wormhole-demo/connect/internal/layout"
)

// Protocol names of the built-in payloads.
const (
	WormholeCore          = "WormholeCore"
	TokenBridge           = "TokenBridge"
	AutomaticTokenBridge  = "AutomaticTokenBridge"
	AutomaticCircleBridge = "AutomaticCircleBridge"
	Ntt                   = "Ntt"
	PorticoBridge         = "PorticoBridge"
)

// Payload literals of the built-in payloads.
var (
	TokenBridgeTransfer            = Literal(TokenBridge, "Transfer")
	TokenBridgeAttestMeta          = Literal(TokenBridge, "AttestMeta")
	TokenBridgeTransferWithPayload = Literal(TokenBridge, "TransferWithPayload")
	TokenBridgeTransferWithRelay   = Literal(AutomaticTokenBridge, "TransferWithRelay")
	CircleDepositWithPayload       = Literal(AutomaticCircleBridge, "DepositWithPayload")
	CircleTransferRelay            = Literal(AutomaticCircleBridge, "TransferRelay")
	GuardianSetUpgrade             = Literal(WormholeCore, "GuardianSetUpgrade")

	NttWormholeTransfer                = Literal(Ntt, "WormholeTransfer")
	NttWormholeTransferStandardRelayer = Literal(Ntt, "WormholeTransferStandardRelayer")
	PorticoTransfer                    = Literal(PorticoBridge, "Transfer")
)

var (
	nttTransceiverPrefix = []byte{0x99, 0x45, 0xff, 0x10}
	nttTransferPrefix    = []byte{0x99, 'N', 'T', 'T'}
)

func tokenLayout() layout.Layout {
	return layout.Layout{
		{Name: "amount", Item: AmountItem()},
		{Name: "address", Item: UniversalAddressItem()},
		{Name: "chain", Item: ChainItem()},
	}
}

func chainAddressLayout() layout.Layout {
	return layout.Layout{
		{Name: "address", Item: UniversalAddressItem()},
		{Name: "chain", Item: ChainItem()},
	}
}

func transferWithPayloadLayout(payload layout.Item) layout.Layout {
	return layout.Layout{
		layout.PayloadID(3),
		{Name: "token", Item: layout.Bytes{Layout: tokenLayout()}},
		{Name: "to", Item: layout.Bytes{Layout: chainAddressLayout()}},
		{Name: "from", Item: UniversalAddressItem()},
		{Name: "payload", Item: payload},
	}
}

// relayLayout is shared by the token bridge relayer and the Circle relayer.
func relayLayout() layout.Layout {
	return layout.Layout{
		layout.PayloadID(1),
		{Name: "targetRelayerFee", Item: AmountItem()},
		{Name: "toNativeTokenAmount", Item: AmountItem()},
		{Name: "targetRecipient", Item: UniversalAddressItem()},
	}
}

func circleDepositLayout(payload layout.Item) layout.Layout {
	return layout.Layout{
		layout.PayloadID(1),
		{Name: "token", Item: layout.Bytes{Layout: layout.Layout{
			{Name: "address", Item: UniversalAddressItem()},
			{Name: "amount", Item: AmountItem()},
		}}},
		{Name: "sourceDomain", Item: layout.U32()},
		{Name: "targetDomain", Item: layout.U32()},
		{Name: "nonce", Item: layout.U64()},
		{Name: "caller", Item: UniversalAddressItem()},
		{Name: "mintRecipient", Item: UniversalAddressItem()},
		{Name: "payload", Item: payload},
	}
}

func tokenBridgePayloads() []Payload {
	return []Payload{
		{Name: "Transfer", Layout: layout.Layout{
			layout.PayloadID(1),
			{Name: "token", Item: layout.Bytes{Layout: tokenLayout()}},
			{Name: "to", Item: layout.Bytes{Layout: chainAddressLayout()}},
			{Name: "fee", Item: AmountItem()},
		}},
		{Name: "AttestMeta", Layout: layout.Layout{
			layout.PayloadID(2),
			{Name: "token", Item: layout.Bytes{Layout: chainAddressLayout()}},
			{Name: "decimals", Item: layout.U8()},
			{Name: "symbol", Item: StringItem(32)},
			{Name: "name", Item: StringItem(32)},
		}},
		{Name: "TransferWithPayload", Layout: transferWithPayloadLayout(layout.Bytes{})},
	}
}

func automaticTokenBridgePayloads() []Payload {
	return []Payload{
		{Name: "TransferWithRelay", Layout: transferWithPayloadLayout(layout.Bytes{Layout: relayLayout()})},
	}
}

func automaticCircleBridgePayloads() []Payload {
	return []Payload{
		{Name: "DepositWithPayload", Layout: circleDepositLayout(layout.Bytes{LengthSize: 2})},
		{Name: "TransferRelay", Layout: circleDepositLayout(layout.Bytes{LengthSize: 2, Layout: relayLayout()})},
	}
}

func nttTransferLayout() layout.Layout {
	return layout.Layout{
		{Name: "prefix", Item: layout.Bytes{Fixed: nttTransferPrefix}, Omit: true},
		{Name: "decimals", Item: layout.U8()},
		{Name: "amount", Item: layout.U64()},
		{Name: "sourceToken", Item: UniversalAddressItem()},
		{Name: "to", Item: UniversalAddressItem()},
		{Name: "toChain", Item: ChainItem()},
	}
}

func nttManagerMessageLayout() layout.Layout {
	return layout.Layout{
		{Name: "id", Item: layout.Bytes{Size: 32}},
		{Name: "sender", Item: UniversalAddressItem()},
		{Name: "payload", Item: layout.Bytes{LengthSize: 2, Layout: nttTransferLayout()}},
	}
}

func nttTransceiverMessageLayout() layout.Layout {
	return layout.Layout{
		{Name: "prefix", Item: layout.Bytes{Fixed: nttTransceiverPrefix}, Omit: true},
		{Name: "sourceNttManager", Item: UniversalAddressItem()},
		{Name: "recipientNttManager", Item: UniversalAddressItem()},
		{Name: "nttManagerPayload", Item: layout.Bytes{LengthSize: 2, Layout: nttManagerMessageLayout()}},
		{Name: "transceiverPayload", Item: layout.Bytes{LengthSize: 2}},
	}
}

// deliveryInstructionLayout is the Wormhole standard relayer's request to
// deliver payload to a contract on another chain.
func deliveryInstructionLayout(payload layout.Layout) layout.Layout {
	return layout.Layout{
		layout.PayloadID(1),
		{Name: "targetChain", Item: ChainItem()},
		{Name: "targetAddress", Item: UniversalAddressItem()},
		{Name: "payload", Item: layout.Bytes{LengthSize: 4, Layout: payload}},
		{Name: "requestedReceiverValue", Item: AmountItem()},
		{Name: "extraReceiverValue", Item: AmountItem()},
		{Name: "executionInfo", Item: layout.Bytes{LengthSize: 4}},
		{Name: "refundChain", Item: ChainItem()},
		{Name: "refundAddress", Item: UniversalAddressItem()},
		{Name: "refundDeliveryProvider", Item: UniversalAddressItem()},
		{Name: "sourceDeliveryProvider", Item: UniversalAddressItem()},
		{Name: "senderAddress", Item: UniversalAddressItem()},
		{Name: "messageKeys", Item: layout.Array{LengthSize: 1, Layout: layout.Layout{
			{Name: "key", Item: layout.Switch{IDSize: 1, IDTag: "type", Variants: []layout.Variant{
				{ID: 1, Name: "VAA", Layout: layout.Layout{
					{Name: "chain", Item: ChainItem()},
					{Name: "emitter", Item: UniversalAddressItem()},
					{Name: "sequence", Item: layout.U64()},
				}},
				{ID: 2, Name: "CCTP", Layout: layout.Layout{
					{Name: "message", Item: layout.Bytes{LengthSize: 4}},
				}},
			}}},
		}}},
	}
}

func nttPayloads() []Payload {
	return []Payload{
		{Name: "WormholeTransfer", Layout: nttTransceiverMessageLayout()},
		{Name: "WormholeTransferStandardRelayer", Layout: deliveryInstructionLayout(nttTransceiverMessageLayout())},
	}
}

// porticoFlagSetLayout packs a Portico trade's routing into one word. Its
// integers are little-endian.
func porticoFlagSetLayout() layout.Layout {
	return layout.Layout{
		{Name: "recipientChain", Item: LittleEndianItem(2)},
		{Name: "bridgeNonce", Item: LittleEndianItem(4)},
		{Name: "feeTierStart", Item: LittleEndianItem(3)},
		{Name: "feeTierFinish", Item: LittleEndianItem(3)},
		{Name: "padding", Item: layout.Bytes{Fixed: make([]byte, 19)}, Omit: true},
		{Name: "flags", Item: layout.U8()},
	}
}

func porticoLayout() layout.Layout {
	return layout.Layout{
		{Name: "flagSet", Item: layout.Bytes{Size: 32, Layout: porticoFlagSetLayout()}},
		{Name: "finalTokenAddress", Item: UniversalAddressItem()},
		{Name: "recipientAddress", Item: UniversalAddressItem()},
		{Name: "canonAssetAmount", Item: AmountItem()},
		{Name: "minAmountFinish", Item: AmountItem()},
		{Name: "relayerFee", Item: AmountItem()},
	}
}

func porticoPayloads() []Payload {
	return []Payload{
		{Name: "Transfer", Layout: transferWithPayloadLayout(layout.Bytes{Layout: porticoLayout()})},
	}
}

func wormholeCorePayloads() []Payload {
	return []Payload{
		{Name: "GuardianSetUpgrade", Layout: layout.Layout{
			{Name: "module", Item: ModuleItem("Core"), Omit: true},
			{Name: "action", Item: layout.Uint{Size: 1, Fixed: uint64(2)}, Omit: true},
			{Name: "chain", Item: ChainItem()},
			{Name: "guardianSet", Item: layout.U32()},
			{Name: "guardians", Item: layout.Array{LengthSize: 1, Layout: layout.Layout{
				{Name: "key", Item: layout.Bytes{Size: 20}},
			}}},
		}},
	}
}

// RegisterBuiltins adds the built-in payload layouts to b.
func RegisterBuiltins(b *RegistryBuilder) error {
	for _, p := range []struct {
		protocol string
		payloads []Payload
	}{
		{WormholeCore, wormholeCorePayloads()},
		{TokenBridge, tokenBridgePayloads()},
		{AutomaticTokenBridge, automaticTokenBridgePayloads()},
		{AutomaticCircleBridge, automaticCircleBridgePayloads()},
		{Ntt, nttPayloads()},
		{PorticoBridge, porticoPayloads()},
	} {
		if err := b.Register(p.protocol, p.payloads...); err != nil {
			return err
		}
	}
	return nil
}
