// Package solana implements the Wormhole token bridge on Solana: redemption
// checks against claim accounts, posted VAA lookup and transaction signing.
package solana

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/attestation"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/transfer"
	"github.com/wormhole-demo/connect/internal/vaa"
)

const (
	nativeDecimals = 9
	// mintDecimalsOffset is the position of the decimals byte in an SPL mint
	// account: COption<Pubkey> mint authority (36) then u64 supply (8).
	mintDecimalsOffset = 44

	postedVAAWait = 20 * time.Second
)

// PDA seeds.
var (
	SeedPostedVAA     = []byte("PostedVAA")
	SeedConfig        = []byte("config")
	SeedWrapped       = []byte("wrapped")
	SeedMeta          = []byte("meta")
	SeedMintSigner    = []byte("mint_signer")
	SeedCustodySigner = []byte("custody_signer")
)

var (
	ErrVAANotPosted = errors.New("VAA not posted to the core bridge")
	ErrNotMint      = errors.New("account is not an SPL mint")
	ErrNoPayer      = errors.New("no fee payer configured")
)

// RPC is the part of the Solana JSON-RPC client the adapter uses.
// *rpc.Client implements it.
type RPC interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Programs are the Wormhole program ids on a Solana cluster.
type Programs struct {
	Core        solana.PublicKey
	TokenBridge solana.PublicKey
}

// Client reads Wormhole state from a Solana cluster.
type Client struct {
	chain         vaaLib.ChainID
	rpc           RPC
	programs      Programs
	payer         solana.PublicKey
	vaaServiceURL string // posts VAAs to the core bridge when set
	httpClient    *http.Client
	pollInterval  time.Duration
	logger        *zap.Logger
}

// NewClient creates a client. payer pays for redemptions. When
// vaaServiceURL is set, VAAs missing from the core bridge are posted through
// that service before redemption.
func NewClient(logger *zap.Logger, rpcClient RPC, programs Programs, payer solana.PublicKey, vaaServiceURL string) *Client {
	return &Client{
		chain:         vaaLib.ChainIDSolana,
		rpc:           rpcClient,
		programs:      programs,
		payer:         payer,
		vaaServiceURL: vaaServiceURL,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		pollInterval:  2 * time.Second,
		logger:        logger.With(zap.String("component", "SolanaClient")),
	}
}

// Dial creates a client for the cluster at rpcURL.
func Dial(logger *zap.Logger, rpcURL string, programs Programs, payer solana.PublicKey, vaaServiceURL string) *Client {
	logger.Info("Connecting to Solana", zap.String("rpcURL", rpcURL))
	return NewClient(logger, rpc.New(rpcURL), programs, payer, vaaServiceURL)
}

func (c *Client) Chain() vaaLib.ChainID { return c.chain }

func (c *Client) RPC() RPC { return c.rpc }

// account returns the data of an account, or nil when it does not exist.
func (c *Client) account(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	info, err := c.rpc.GetAccountInfo(ctx, key)
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	if info == nil || info.Value == nil {
		return nil, nil
	}
	data := info.Value.Data.GetBinary()
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Decimals reads the decimals of an SPL mint. Native SOL has 9.
func (c *Client) Decimals(ctx context.Context, token chains.TokenID) (int, error) {
	if token.Chain != c.chain {
		return 0, fmt.Errorf("%w: %s on %s", chains.ErrUnknownChain, token, c.chain)
	}
	if token.IsNative() {
		return nativeDecimals, nil
	}
	mint := solana.PublicKeyFromBytes(token.Address[:])
	data, err := c.account(ctx, mint)
	if err != nil {
		return 0, err
	}
	if len(data) <= mintDecimalsOffset {
		return 0, fmt.Errorf("%w: %s", ErrNotMint, mint)
	}
	return int(data[mintDecimalsOffset]), nil
}

// PostedVAAAddress derives the core bridge account a VAA is posted to.
func (c *Client) PostedVAAAddress(v *vaa.VAA) (solana.PublicKey, error) {
	hash := v.Hash()
	key, _, err := solana.FindProgramAddress([][]byte{SeedPostedVAA, hash[:]}, c.programs.Core)
	return key, err
}

// IsVAAPosted reports whether v was posted to the core bridge.
func (c *Client) IsVAAPosted(ctx context.Context, v *vaa.VAA) (bool, error) {
	key, err := c.PostedVAAAddress(v)
	if err != nil {
		return false, fmt.Errorf("failed to derive posted VAA PDA: %w", err)
	}
	data, err := c.account(ctx, key)
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// EnsurePosted returns the posted VAA account of v, posting it through the
// VAA service first if needed.
func (c *Client) EnsurePosted(ctx context.Context, v *vaa.VAA, raw []byte) (solana.PublicKey, error) {
	key, err := c.PostedVAAAddress(v)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive posted VAA PDA: %w", err)
	}
	posted, err := c.IsVAAPosted(ctx, v)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if posted {
		c.logger.Debug("VAA already posted", zap.String("postedVAA", key.String()))
		return key, nil
	}
	if c.vaaServiceURL == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: %s and no VAA service configured", ErrVAANotPosted, key)
	}

	c.logger.Info("Posting VAA via VAA service", zap.String("serviceURL", c.vaaServiceURL), zap.Int("vaaLength", len(raw)))
	if err := c.callVAAService(ctx, raw); err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to post VAA via service: %w", err)
	}
	_, found, err := attestation.Retry(ctx, c.logger, "posted VAA", func(ctx context.Context) (struct{}, bool, error) {
		ok, err := c.IsVAAPosted(ctx, v)
		return struct{}{}, ok, err
	}, c.pollInterval, postedVAAWait)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !found {
		return solana.PublicKey{}, fmt.Errorf("%w: %s not found after %s", ErrVAANotPosted, key, postedVAAWait)
	}
	return key, nil
}

func (c *Client) callVAAService(ctx context.Context, raw []byte) error {
	reqJSON, err := json.Marshal(map[string]string{"vaa": hex.EncodeToString(raw)})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.vaaServiceURL+"/post-vaa", bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	var result struct {
		Success   bool   `json:"success"`
		Signature string `json:"signature"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}
	if !result.Success {
		return fmt.Errorf("VAA service error: %s", result.Error)
	}
	c.logger.Info("VAA posted via service", zap.String("signature", result.Signature))
	return nil
}

// ClaimAddress derives the token bridge account that marks a message as
// redeemed.
func (c *Client) ClaimAddress(id vaa.MessageID) (solana.PublicKey, error) {
	chain := make([]byte, 2)
	binary.BigEndian.PutUint16(chain, uint16(id.Chain))
	sequence := make([]byte, 8)
	binary.BigEndian.PutUint64(sequence, id.Sequence)
	key, _, err := solana.FindProgramAddress([][]byte{id.Emitter[:], chain, sequence}, c.programs.TokenBridge)
	return key, err
}

func (c *Client) isTransferCompleted(ctx context.Context, atts []*transfer.Attestation) (bool, error) {
	att, err := wormholeAttestation(atts)
	if err != nil {
		return false, err
	}
	claim, err := c.ClaimAddress(att.VAA.ID())
	if err != nil {
		return false, fmt.Errorf("failed to derive claim PDA: %w", err)
	}
	data, err := c.account(ctx, claim)
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

func wormholeAttestation(atts []*transfer.Attestation) (*transfer.Attestation, error) {
	for _, a := range atts {
		if a.VAA != nil {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: no VAA among %d attestations", transfer.ErrUnsupportedAttestation, len(atts))
}
