// Package evm implements the transfer protocols on EVM chains: the Wormhole
// core bridge, token bridge and token bridge relayer, Circle's CCTP contracts
// with the Wormhole Circle relayer, NTT managers and Portico.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/transfer"
)

var (
	ErrNotDeployed  = errors.New("contract not deployed on chain")
	ErrForeignToken = errors.New("token is not on this chain")
)

// Backend is the part of an Ethereum JSON-RPC client the adapter uses.
// *ethclient.Client implements it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	ChainID(ctx context.Context) (*big.Int, error)
}

// Contracts are the protocol deployments on one chain. A zero address marks
// a contract that is not deployed there.
type Contracts struct {
	Core               common.Address
	TokenBridge        common.Address
	TokenBridgeRelayer common.Address
	TokenMessenger     common.Address
	MessageTransmitter common.Address
	CircleRelayer      common.Address
	WrappedNative      common.Address
	// Ntt maps a token to its NTT deployment.
	Ntt map[common.Address]NttDeployment
	// Portico bridges PorticoCanonAsset. PorticoRelayerFee is what the
	// Portico relayer charges to deliver to this chain, in whole tokens.
	Portico           common.Address
	PorticoCanonAsset common.Address
	PorticoRelayerFee string
}

// NttDeployment is the manager and Wormhole transceiver of one NTT token.
type NttDeployment struct {
	Manager     common.Address
	Transceiver common.Address
}

// Call is an unsigned contract call, the payload of a transfer.UnsignedTx
// built by this package.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Client reads state from and builds calls for one EVM chain.
type Client struct {
	chain     vaaLib.ChainID
	backend   Backend
	contracts Contracts
	logger    *zap.Logger
}

func NewClient(logger *zap.Logger, chain vaaLib.ChainID, backend Backend, contracts Contracts) *Client {
	return &Client{
		chain:     chain,
		backend:   backend,
		contracts: contracts,
		logger:    logger.With(zap.String("component", "EVMClient"), zap.Stringer("chain", chain)),
	}
}

// Dial connects to an EVM node.
func Dial(logger *zap.Logger, chain vaaLib.ChainID, rpcURL string, contracts Contracts) (*Client, error) {
	logger.Info("Connecting to EVM chain", zap.Stringer("chain", chain), zap.String("rpcURL", rpcURL))
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %w", err)
	}
	return NewClient(logger, chain, ethClient, contracts), nil
}

func (c *Client) Chain() vaaLib.ChainID { return c.chain }

func (c *Client) Backend() Backend { return c.backend }

func (c *Client) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	if to == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotDeployed, method, c.chain)
	}
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %w", err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	res, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("ABI unpack error for %s: %w", method, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return res, nil
}

func (c *Client) tx(description string, contract abi.ABI, to common.Address, value *big.Int, method string, args ...any) (transfer.UnsignedTx, error) {
	if to == (common.Address{}) {
		return transfer.UnsignedTx{}, fmt.Errorf("%w: %s on %s", ErrNotDeployed, method, c.chain)
	}
	data, err := contract.Pack(method, args...)
	if err != nil {
		return transfer.UnsignedTx{}, fmt.Errorf("ABI pack error: %w", err)
	}
	if value == nil {
		value = new(big.Int)
	}
	return transfer.UnsignedTx{
		Chain:       c.chain,
		Description: description,
		Tx:          &Call{To: to, Data: data, Value: value},
	}, nil
}

// Decimals returns the decimals of an ERC-20 token on this chain. The
// native token has 18.
func (c *Client) Decimals(ctx context.Context, token chains.TokenID) (int, error) {
	if token.Chain != c.chain {
		return 0, fmt.Errorf("%w: %s on %s", ErrForeignToken, token, c.chain)
	}
	if token.IsNative() {
		return 18, nil
	}
	addr, err := chains.ToEVM(token.Address)
	if err != nil {
		return 0, err
	}
	res, err := c.call(ctx, erc20, addr, "decimals")
	if err != nil {
		return 0, err
	}
	return int(res[0].(uint8)), nil
}

func (c *Client) messageFee(ctx context.Context) (*big.Int, error) {
	res, err := c.call(ctx, core, c.contracts.Core, "messageFee")
	if err != nil {
		return nil, err
	}
	return res[0].(*big.Int), nil
}

// approval returns an approve call when the sender's allowance to spender
// does not cover the transfer, and nil otherwise.
func (c *Client) approval(ctx context.Context, d transfer.Details, token, spender common.Address) (*transfer.UnsignedTx, error) {
	owner, err := chains.ToEVM(d.From.Address)
	if err != nil {
		return nil, err
	}
	res, err := c.call(ctx, erc20, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	if res[0].(*big.Int).Cmp(d.Amount) >= 0 {
		return nil, nil
	}
	c.logger.Debug("Approval needed", zap.String("token", token.Hex()), zap.String("spender", spender.Hex()))
	tx, err := c.tx("ERC20.approve", erc20, token, nil, "approve", spender, d.Amount)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ParseTransaction returns the Wormhole messages and CCTP burn messages
// emitted by txid, in log order.
func (c *Client) ParseTransaction(ctx context.Context, txid string) ([]transfer.AttestationID, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txid))
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	published := core.Events["LogMessagePublished"].ID
	sent := messageTransmitter.Events["MessageSent"].ID

	var ids []transfer.AttestationID
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 {
			continue
		}
		switch {
		case l.Address == c.contracts.Core && l.Topics[0] == published && len(l.Topics) > 1:
			res, err := core.Unpack("LogMessagePublished", l.Data)
			if err != nil {
				return nil, fmt.Errorf("decode LogMessagePublished: %w", err)
			}
			ids = append(ids, transfer.WormholeMessageID{
				Chain:    c.chain,
				Emitter:  chains.FromEVM(common.BytesToAddress(l.Topics[1].Bytes())),
				Sequence: res[0].(uint64),
			})
		case l.Address == c.contracts.MessageTransmitter && l.Topics[0] == sent:
			res, err := messageTransmitter.Unpack("MessageSent", l.Data)
			if err != nil {
				return nil, fmt.Errorf("decode MessageSent: %w", err)
			}
			ids = append(ids, transfer.NewCircleMessageID(res[0].([]byte)))
		}
	}
	c.logger.Debug("Parsed transaction", zap.String("txid", txid), zap.Int("messages", len(ids)))
	return ids, nil
}

// Pool dials one Client per chain on first use.
type Pool struct {
	rpcs      map[vaaLib.ChainID]string
	contracts map[vaaLib.ChainID]Contracts
	clients   map[vaaLib.ChainID]*Client
	mu        sync.Mutex
	logger    *zap.Logger
}

func NewPool(logger *zap.Logger, rpcs map[vaaLib.ChainID]string, contracts map[vaaLib.ChainID]Contracts) *Pool {
	return &Pool{
		rpcs:      rpcs,
		contracts: contracts,
		clients:   make(map[vaaLib.ChainID]*Client),
		logger:    logger,
	}
}

// Client returns the Client of chain, dialing it if needed.
func (p *Pool) Client(ctx context.Context, chain vaaLib.ChainID) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[chain]; ok {
		return c, nil
	}
	url, ok := p.rpcs[chain]
	if !ok || url == "" {
		return nil, fmt.Errorf("no RPC configured for %s", chain)
	}
	c, err := Dial(p.logger, chain, url, p.contracts[chain])
	if err != nil {
		return nil, err
	}
	p.clients[chain] = c
	return c, nil
}
