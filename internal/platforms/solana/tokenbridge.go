package solana

import (
	"context"
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/gagliardetto/solana-go"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/layout"
	"github.com/wormhole-demo/connect/internal/transfer"
)

// Token bridge instruction indexes.
const (
	instructionCompleteNative  byte = 2
	instructionCompleteWrapped byte = 3
)

// Instructions are the payload of a transfer.UnsignedTx built by this
// package. Payer signs them and pays their fees.
type Instructions struct {
	Payer        solana.PublicKey
	Instructions []solana.Instruction
}

// TokenBridge redeems token bridge transfers on Solana.
type TokenBridge struct {
	*Client
}

func (b *TokenBridge) IsTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	return b.isTransferCompleted(ctx, atts)
}

// Redeem builds the complete_native or complete_wrapped instruction for a
// transfer VAA, posting the VAA first when it is not yet on chain. Tokens go
// to the token account named in the VAA; the client's payer pays.
func (b *TokenBridge) Redeem(ctx context.Context, recipient chains.ChainAddress, atts []*transfer.Attestation) iter.Seq2[transfer.UnsignedTx, error] {
	return func(yield func(transfer.UnsignedTx, error) bool) {
		att, err := wormholeAttestation(atts)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		posted, err := b.EnsurePosted(ctx, att.VAA, att.Raw)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		if b.payer.IsZero() {
			yield(transfer.UnsignedTx{}, ErrNoPayer)
			return
		}
		ix, err := b.completeInstruction(b.payer, att, posted)
		if err != nil {
			yield(transfer.UnsignedTx{}, err)
			return
		}
		b.logger.Info("Redeeming transfer", zap.Stringer("id", att.ID), zap.String("postedVAA", posted.String()))
		yield(transfer.UnsignedTx{
			Chain:       b.chain,
			Description: "TokenBridge.completeTransfer",
			Tx:          &Instructions{Payer: b.payer, Instructions: []solana.Instruction{ix}},
		}, nil)
	}
}

func (b *TokenBridge) completeInstruction(payer solana.PublicKey, att *transfer.Attestation, posted solana.PublicKey) (solana.Instruction, error) {
	v := att.VAA
	if v.Payload == nil {
		return nil, fmt.Errorf("%w: %s", transfer.ErrNotTransfer, v.ID())
	}
	tokenChain, err := layout.Value[vaaLib.ChainID](v.Payload, "token.chain")
	if err != nil {
		return nil, err
	}
	tokenAddress, err := layout.Value[vaaLib.Address](v.Payload, "token.address")
	if err != nil {
		return nil, err
	}
	toAddress, err := layout.Value[vaaLib.Address](v.Payload, "to.address")
	if err != nil {
		return nil, err
	}
	toAccount := solana.PublicKeyFromBytes(toAddress[:])
	program := b.programs.TokenBridge

	pda := func(seeds ...[]byte) (solana.PublicKey, error) {
		key, _, err := solana.FindProgramAddress(seeds, program)
		return key, err
	}
	config, err := pda(SeedConfig)
	if err != nil {
		return nil, err
	}
	claim, err := b.ClaimAddress(v.ID())
	if err != nil {
		return nil, err
	}
	emitterChain := make([]byte, 2)
	binary.BigEndian.PutUint16(emitterChain, uint16(v.EmitterChain))
	endpoint, err := pda(emitterChain, v.EmitterAddress[:])
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: config},
		{PublicKey: posted},
		{PublicKey: claim, IsWritable: true},
		{PublicKey: endpoint},
		{PublicKey: toAccount, IsWritable: true},
		{PublicKey: toAccount, IsWritable: true}, // fee recipient
	}

	var instruction byte
	if tokenChain == vaaLib.ChainIDSolana {
		instruction = instructionCompleteNative
		mint := solana.PublicKeyFromBytes(tokenAddress[:])
		custody, err := pda(mint[:])
		if err != nil {
			return nil, err
		}
		custodySigner, err := pda(SeedCustodySigner)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts,
			&solana.AccountMeta{PublicKey: custody, IsWritable: true},
			&solana.AccountMeta{PublicKey: mint},
			&solana.AccountMeta{PublicKey: custodySigner},
		)
	} else {
		instruction = instructionCompleteWrapped
		chain := make([]byte, 2)
		binary.BigEndian.PutUint16(chain, uint16(tokenChain))
		mint, err := pda(SeedWrapped, chain, tokenAddress[:])
		if err != nil {
			return nil, err
		}
		meta, err := pda(SeedMeta, mint[:])
		if err != nil {
			return nil, err
		}
		mintSigner, err := pda(SeedMintSigner)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts,
			&solana.AccountMeta{PublicKey: mint, IsWritable: true},
			&solana.AccountMeta{PublicKey: meta},
			&solana.AccountMeta{PublicKey: mintSigner},
		)
	}
	accounts = append(accounts,
		&solana.AccountMeta{PublicKey: solana.SysVarRentPubkey},
		&solana.AccountMeta{PublicKey: solana.SystemProgramID},
		&solana.AccountMeta{PublicKey: solana.TokenProgramID},
		&solana.AccountMeta{PublicKey: b.programs.Core},
	)
	return solana.NewInstruction(program, accounts, []byte{instruction}), nil
}
