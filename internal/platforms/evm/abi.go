package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABI = `[
	{"name": "approve", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [{"name": "spender", "type": "address"}, {"name": "amount", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "bool"}]},
	{"name": "allowance", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}],
	 "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "decimals", "type": "function", "stateMutability": "view",
	 "inputs": [],
	 "outputs": [{"name": "", "type": "uint8"}]}
]`

const coreABI = `[
	{"name": "messageFee", "type": "function", "stateMutability": "view",
	 "inputs": [],
	 "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "LogMessagePublished", "type": "event", "anonymous": false,
	 "inputs": [
		{"name": "sender", "type": "address", "indexed": true},
		{"name": "sequence", "type": "uint64", "indexed": false},
		{"name": "nonce", "type": "uint32", "indexed": false},
		{"name": "payload", "type": "bytes", "indexed": false},
		{"name": "consistencyLevel", "type": "uint8", "indexed": false}]}
]`

const tokenBridgeABI = `[
	{"name": "transferTokens", "type": "function", "stateMutability": "payable",
	 "inputs": [
		{"name": "token", "type": "address"},
		{"name": "amount", "type": "uint256"},
		{"name": "recipientChain", "type": "uint16"},
		{"name": "recipient", "type": "bytes32"},
		{"name": "arbiterFee", "type": "uint256"},
		{"name": "nonce", "type": "uint32"}],
	 "outputs": [{"name": "sequence", "type": "uint64"}]},
	{"name": "transferTokensWithPayload", "type": "function", "stateMutability": "payable",
	 "inputs": [
		{"name": "token", "type": "address"},
		{"name": "amount", "type": "uint256"},
		{"name": "recipientChain", "type": "uint16"},
		{"name": "recipient", "type": "bytes32"},
		{"name": "nonce", "type": "uint32"},
		{"name": "payload", "type": "bytes"}],
	 "outputs": [{"name": "sequence", "type": "uint64"}]},
	{"name": "wrapAndTransferETH", "type": "function", "stateMutability": "payable",
	 "inputs": [
		{"name": "recipientChain", "type": "uint16"},
		{"name": "recipient", "type": "bytes32"},
		{"name": "arbiterFee", "type": "uint256"},
		{"name": "nonce", "type": "uint32"}],
	 "outputs": [{"name": "sequence", "type": "uint64"}]},
	{"name": "completeTransfer", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [{"name": "encodedVm", "type": "bytes"}],
	 "outputs": []},
	{"name": "completeTransferWithPayload", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [{"name": "encodedVm", "type": "bytes"}],
	 "outputs": [{"name": "", "type": "bytes"}]},
	{"name": "isTransferCompleted", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "hash", "type": "bytes32"}],
	 "outputs": [{"name": "", "type": "bool"}]}
]`

const tokenBridgeRelayerABI = `[
	{"name": "transferTokensWithRelay", "type": "function", "stateMutability": "payable",
	 "inputs": [
		{"name": "token", "type": "address"},
		{"name": "amount", "type": "uint256"},
		{"name": "toNativeTokenAmount", "type": "uint256"},
		{"name": "targetChain", "type": "uint16"},
		{"name": "targetRecipient", "type": "bytes32"},
		{"name": "batchId", "type": "uint32"}],
	 "outputs": [{"name": "messageSequence", "type": "uint64"}]},
	{"name": "wrapAndTransferEthWithRelay", "type": "function", "stateMutability": "payable",
	 "inputs": [
		{"name": "toNativeTokenAmount", "type": "uint256"},
		{"name": "targetChain", "type": "uint16"},
		{"name": "targetRecipient", "type": "bytes32"},
		{"name": "batchId", "type": "uint32"}],
	 "outputs": [{"name": "messageSequence", "type": "uint64"}]},
	{"name": "completeTransferWithRelay", "type": "function", "stateMutability": "payable",
	 "inputs": [{"name": "encodedTransferMessage", "type": "bytes"}],
	 "outputs": []},
	{"name": "calculateRelayerFee", "type": "function", "stateMutability": "view",
	 "inputs": [
		{"name": "targetChainId", "type": "uint16"},
		{"name": "token", "type": "address"},
		{"name": "decimals", "type": "uint8"}],
	 "outputs": [{"name": "feeInTokenDenomination", "type": "uint256"}]}
]`

const tokenMessengerABI = `[
	{"name": "depositForBurn", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [
		{"name": "amount", "type": "uint256"},
		{"name": "destinationDomain", "type": "uint32"},
		{"name": "mintRecipient", "type": "bytes32"},
		{"name": "burnToken", "type": "address"}],
	 "outputs": [{"name": "_nonce", "type": "uint64"}]}
]`

const messageTransmitterABI = `[
	{"name": "receiveMessage", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [{"name": "message", "type": "bytes"}, {"name": "attestation", "type": "bytes"}],
	 "outputs": [{"name": "success", "type": "bool"}]},
	{"name": "usedNonces", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "", "type": "bytes32"}],
	 "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "MessageSent", "type": "event", "anonymous": false,
	 "inputs": [{"name": "message", "type": "bytes", "indexed": false}]}
]`

const circleRelayerABI = `[
	{"name": "transferTokensWithRelay", "type": "function", "stateMutability": "payable",
	 "inputs": [
		{"name": "token", "type": "address"},
		{"name": "amount", "type": "uint256"},
		{"name": "toNativeTokenAmount", "type": "uint256"},
		{"name": "targetChain", "type": "uint16"},
		{"name": "targetRecipientWallet", "type": "bytes32"}],
	 "outputs": [{"name": "messageSequence", "type": "uint64"}]},
	{"name": "relayerFee", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "chainId", "type": "uint16"}, {"name": "token", "type": "address"}],
	 "outputs": [{"name": "", "type": "uint256"}]}
]`

const nttManagerABI = `[
	{"name": "transfer", "type": "function", "stateMutability": "payable",
	 "inputs": [
		{"name": "amount", "type": "uint256"},
		{"name": "recipientChain", "type": "uint16"},
		{"name": "recipient", "type": "bytes32"},
		{"name": "refundAddress", "type": "bytes32"},
		{"name": "shouldQueue", "type": "bool"},
		{"name": "transceiverInstructions", "type": "bytes"}],
	 "outputs": [{"name": "", "type": "uint64"}]},
	{"name": "quoteDeliveryPrice", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "recipientChain", "type": "uint16"}, {"name": "transceiverInstructions", "type": "bytes"}],
	 "outputs": [{"name": "", "type": "uint256[]"}, {"name": "", "type": "uint256"}]},
	{"name": "isMessageExecuted", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "digest", "type": "bytes32"}],
	 "outputs": [{"name": "", "type": "bool"}]}
]`

const nttTransceiverABI = `[
	{"name": "receiveMessage", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [{"name": "encodedMessage", "type": "bytes"}],
	 "outputs": []}
]`

const porticoABI = `[
	{"name": "start", "type": "function", "stateMutability": "payable",
	 "inputs": [{"name": "params", "type": "tuple", "components": [
		{"name": "flagSet", "type": "bytes32"},
		{"name": "startTokenAddress", "type": "address"},
		{"name": "canonAssetAddress", "type": "address"},
		{"name": "finalTokenAddress", "type": "address"},
		{"name": "recipientAddress", "type": "address"},
		{"name": "destinationPorticoAddress", "type": "address"},
		{"name": "amountSpecified", "type": "uint256"},
		{"name": "minAmountStart", "type": "uint256"},
		{"name": "minAmountFinish", "type": "uint256"},
		{"name": "relayerFee", "type": "uint256"}]}],
	 "outputs": [
		{"name": "emitterAddress", "type": "address"},
		{"name": "chainId", "type": "uint16"},
		{"name": "sequence", "type": "uint64"}]},
	{"name": "receiveMessageAndSwap", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [{"name": "encodedVm", "type": "bytes"}],
	 "outputs": []}
]`

var (
	erc20              = mustParse(erc20ABI)
	core               = mustParse(coreABI)
	tokenBridge        = mustParse(tokenBridgeABI)
	tokenBridgeRelayer = mustParse(tokenBridgeRelayerABI)
	tokenMessenger     = mustParse(tokenMessengerABI)
	messageTransmitter = mustParse(messageTransmitterABI)
	circleRelayer      = mustParse(circleRelayerABI)
	nttManager         = mustParse(nttManagerABI)
	nttTransceiver     = mustParse(nttTransceiverABI)
	portico            = mustParse(porticoABI)
)

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
