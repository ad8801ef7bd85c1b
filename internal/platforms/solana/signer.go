package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/attestation"
	"github.com/wormhole-demo/connect/internal/transfer"
)

const confirmTimeout = 90 * time.Second

// Signer signs Solana transactions with a local keypair.
type Signer struct {
	rpc          RPC
	key          solana.PrivateKey
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewSigner creates a signer from a base58 private key.
func NewSigner(logger *zap.Logger, rpcClient RPC, privateKeyBase58 string) (*Signer, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Signer{
		rpc:          rpcClient,
		key:          key,
		pollInterval: 2 * time.Second,
		logger:       logger.With(zap.String("component", "SolanaSigner"), zap.String("payer", key.PublicKey().String())),
	}, nil
}

func (s *Signer) Chain() vaaLib.ChainID       { return vaaLib.ChainIDSolana }
func (s *Signer) Address() vaaLib.Address     { return vaaLib.Address(s.key.PublicKey()) }
func (s *Signer) PublicKey() solana.PublicKey { return s.key.PublicKey() }

// SignAndSend sends each transaction and waits for it to be confirmed before
// sending the next.
func (s *Signer) SignAndSend(ctx context.Context, txs []transfer.UnsignedTx) ([]string, error) {
	var ids []string
	for _, utx := range txs {
		ixs, ok := utx.Tx.(*Instructions)
		if !ok {
			return ids, fmt.Errorf("unsupported transaction %T for %s", utx.Tx, vaaLib.ChainIDSolana)
		}
		sig, err := s.send(ctx, ixs)
		if err != nil {
			return ids, fmt.Errorf("%s: %w", utx.Description, err)
		}
		s.logger.Info("Transaction sent", zap.String("description", utx.Description), zap.String("signature", sig.String()))
		ids = append(ids, sig.String())
		if err := s.confirm(ctx, sig); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

func (s *Signer) send(ctx context.Context, ixs *Instructions) (solana.Signature, error) {
	payer := s.key.PublicKey()
	if !ixs.Payer.IsZero() && !ixs.Payer.Equals(payer) {
		return solana.Signature{}, fmt.Errorf("transaction payer %s is not the signer %s", ixs.Payer, payer)
	}
	recent, err := s.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(ixs.Instructions, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	sig, err := s.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

func (s *Signer) confirm(ctx context.Context, sig solana.Signature) error {
	var failed error
	_, found, err := attestation.Retry(ctx, s.logger, "confirm "+sig.String(), func(ctx context.Context) (struct{}, bool, error) {
		out, err := s.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return struct{}{}, false, err
		}
		if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
			return struct{}{}, false, nil
		}
		status := out.Value[0]
		if status.Err != nil {
			failed = fmt.Errorf("transaction %s failed: %v", sig, status.Err)
			return struct{}{}, true, nil
		}
		done := status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized
		return struct{}{}, done, nil
	}, s.pollInterval, confirmTimeout)
	if err != nil {
		return err
	}
	if failed != nil {
		return failed
	}
	if !found {
		return fmt.Errorf("transaction %s not confirmed after %s", sig, confirmTimeout)
	}
	return nil
}
