package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/transfer"
)

// priorityFee is the tip offered on every transaction (0.1 gwei).
var priorityFee = big.NewInt(100000000)

// Signer signs EIP-1559 transactions with a local key.
type Signer struct {
	chain      vaaLib.ChainID
	backend    Backend
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger
}

// NewSigner creates a signer for chain from a hex private key.
func NewSigner(logger *zap.Logger, chain vaaLib.ChainID, backend Backend, privateKeyHex string) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	address := crypto.PubkeyToAddress(*publicKeyECDSA)

	return &Signer{
		chain:      chain,
		backend:    backend,
		privateKey: privateKey,
		address:    address,
		logger:     logger.With(zap.String("component", "EVMSigner"), zap.Stringer("chain", chain), zap.String("address", address.Hex())),
	}, nil
}

func (s *Signer) Chain() vaaLib.ChainID      { return s.chain }
func (s *Signer) Address() vaaLib.Address    { return chains.FromEVM(s.address) }
func (s *Signer) EVMAddress() common.Address { return s.address }

// SignAndSend signs txs with consecutive nonces, sends them and waits for
// every one to be mined successfully.
func (s *Signer) SignAndSend(ctx context.Context, txs []transfer.UnsignedTx) ([]string, error) {
	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	header, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block header: %w", err)
	}

	// 2x base fee absorbs fluctuation until inclusion.
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	maxFeePerGas := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFeePerGas.Add(maxFeePerGas, priorityFee)

	var (
		ids  []string
		sent []*types.Transaction
	)
	for i, utx := range txs {
		call, ok := utx.Tx.(*Call)
		if !ok {
			return ids, fmt.Errorf("unsupported transaction %T for %s", utx.Tx, s.chain)
		}
		gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: s.address, To: &call.To, Value: call.Value, Data: call.Data})
		if err != nil {
			return ids, fmt.Errorf("failed to estimate gas for %s: %w", utx.Description, err)
		}
		tx := types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce + uint64(i),
			GasTipCap: priorityFee,
			GasFeeCap: maxFeePerGas,
			Gas:       gas * 6 / 5,
			To:        &call.To,
			Value:     call.Value,
			Data:      call.Data,
		})
		signedTx, err := types.SignTx(tx, types.NewLondonSigner(chainID), s.privateKey)
		if err != nil {
			return ids, fmt.Errorf("failed to sign transaction: %w", err)
		}
		if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
			return ids, fmt.Errorf("failed to send transaction: %w", err)
		}
		s.logger.Info("Transaction sent", zap.String("description", utx.Description), zap.String("txHash", signedTx.Hash().Hex()))
		ids = append(ids, signedTx.Hash().Hex())
		sent = append(sent, signedTx)
	}

	for _, tx := range sent {
		receipt, err := bind.WaitMined(ctx, s.backend, tx)
		if err != nil {
			return ids, fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err)
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			return ids, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
		}
	}
	return ids, nil
}
