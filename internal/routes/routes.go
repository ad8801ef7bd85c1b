// Package routes selects a bridge protocol for a transfer, validates and
// quotes it, and hands it to the transfer state machine.
package routes

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/big"
	"slices"
	"time"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/amount"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/protocols"
	"github.com/wormhole-demo/connect/internal/transfer"
)

var (
	ErrInsufficientAmount  = errors.New("amount does not cover relayer fee and native gas")
	ErrNativeGasNotOffered = errors.New("route does not offer native gas drop-off")
	ErrUnsupportedToken    = errors.New("token not supported by route")
	ErrZeroAmount          = errors.New("amount must be positive")
)

// TokenInfo looks up token metadata on a chain.
type TokenInfo interface {
	Decimals(ctx context.Context, token chains.TokenID) (int, error)
}

// RelayerFeeQuoter quotes the fee an automatic relayer charges, in base units
// of the transferred token.
type RelayerFeeQuoter interface {
	RelayerFee(ctx context.Context, destination vaaLib.ChainID, token chains.TokenID) (*big.Int, error)
}

// DeliveryQuoter quotes the native gas a relayed transfer costs on top of the
// amount, in base units of the source chain's native token.
type DeliveryQuoter interface {
	DeliveryPrice(ctx context.Context, destination vaaLib.ChainID, token chains.TokenID) (*big.Int, error)
}

// Request is what a caller asks to move.
type Request struct {
	From        chains.ChainAddress
	To          chains.ChainAddress
	Source      chains.TokenID
	Destination chains.TokenID
	// Amount is a human-readable amount of the source token.
	Amount string
	// NativeGas is a human-readable amount of the source token to convert to
	// gas on the destination chain. Automatic routes only.
	NativeGas string
	Payload   []byte
}

// Params is a validated Request.
type Params struct {
	Request
	Amount    amount.Amount
	NativeGas amount.Amount
}

// Validation is the outcome of Validate. It carries the failure instead of
// returning it.
type Validation struct {
	Valid  bool
	Params Params
	Err    error
}

// Quote is what a transfer costs and delivers.
type Quote struct {
	// SourceToken is debited from the sender, truncated to wire precision.
	SourceToken amount.Amount
	// DestinationToken is minted to the recipient.
	DestinationToken amount.Amount
	// RelayFee and DestinationNativeGas are in the source token and are set on
	// automatic routes.
	RelayFee             *amount.Amount
	DestinationNativeGas *amount.Amount
	// DeliveryPrice is paid in the source chain's native token on top of the
	// amount, in base units. Only routes relayed by the standard relayer set it.
	DeliveryPrice *big.Int
}

// Config is shared by all routes of a Resolver.
type Config struct {
	Protocols *protocols.Registry
	Transfer  transfer.Deps
	// CircleTokens holds the USDC address per chain.
	CircleTokens map[vaaLib.ChainID]vaaLib.Address
	// NttTokens groups the deployments of each NTT token across chains.
	NttTokens [][]chains.TokenID
	// PorticoTokens holds the canonical asset Portico bridges per chain.
	PorticoTokens map[vaaLib.ChainID]vaaLib.Address
	Logger        *zap.Logger
}

// Route is one bridge protocol in manual or automatic form.
type Route struct {
	Name              string
	Protocol          protocols.Name
	IsAutomatic       bool
	SupportsNativeGas bool

	cfg    *Config
	logger *zap.Logger
}

func newRoute(cfg *Config, name string, protocol protocols.Name, automatic, nativeGas bool) *Route {
	return &Route{
		Name:              name,
		Protocol:          protocol,
		IsAutomatic:       automatic,
		SupportsNativeGas: nativeGas,
		cfg:               cfg,
		logger:            cfg.Logger.With(zap.String("component", "Route"), zap.String("route", name)),
	}
}

func (r *Route) isCircle() bool {
	return r.Protocol == protocols.CircleBridge || r.Protocol == protocols.AutomaticCircleBridge
}

func (r *Route) isNtt() bool {
	return r.Protocol == protocols.Ntt || r.Protocol == protocols.AutomaticNtt
}

// restricted reports whether the route only moves configured tokens.
func (r *Route) restricted() bool {
	return r.isCircle() || r.isNtt() || r.Protocol == protocols.Portico
}

// IsSupported reports whether the route can move token between the chains.
func (r *Route) IsSupported(req Request) bool {
	reg := r.cfg.Protocols
	if !reg.Supports(req.From.Chain, r.Protocol) || !reg.Supports(req.To.Chain, r.Protocol) {
		return false
	}
	if req.From.Chain == req.To.Chain {
		return false
	}
	switch {
	case r.isCircle():
		return r.circleSupported(req)
	case r.isNtt():
		return r.nttSupported(req)
	case r.Protocol == protocols.Portico:
		return r.porticoSupported(req)
	}
	return true
}

func (r *Route) circleSupported(req Request) bool {
	if _, ok := chains.CircleDomain(req.From.Chain); !ok {
		return false
	}
	if _, ok := chains.CircleDomain(req.To.Chain); !ok {
		return false
	}
	src, ok := r.cfg.CircleTokens[req.From.Chain]
	if !ok || req.Source != (chains.TokenID{Chain: req.From.Chain, Address: src}) {
		return false
	}
	dst, ok := r.cfg.CircleTokens[req.To.Chain]
	return ok && req.Destination == chains.TokenID{Chain: req.To.Chain, Address: dst}
}

// nttSupported requires both tokens to be deployments of one NTT token.
func (r *Route) nttSupported(req Request) bool {
	for _, group := range r.cfg.NttTokens {
		if slices.Contains(group, req.Source) && slices.Contains(group, req.Destination) {
			return true
		}
	}
	return false
}

// porticoSupported requires the canonical asset on both sides. The sender may
// also send native, which Portico wraps into the canonical asset.
func (r *Route) porticoSupported(req Request) bool {
	src, ok := r.cfg.PorticoTokens[req.From.Chain]
	if !ok {
		return false
	}
	if req.Source != (chains.TokenID{Chain: req.From.Chain, Address: src}) && req.Source != chains.Native(req.From.Chain) {
		return false
	}
	dst, ok := r.cfg.PorticoTokens[req.To.Chain]
	return ok && req.Destination == chains.TokenID{Chain: req.To.Chain, Address: dst}
}

// IsAvailable reports whether the route can currently serve req. Automatic
// routes need a relayer quote.
func (r *Route) IsAvailable(ctx context.Context, req Request) bool {
	if !r.IsAutomatic {
		return true
	}
	if _, err := r.relayerFee(ctx, req); err != nil {
		r.logger.Debug("Relayer unavailable", zap.Error(err))
		return false
	}
	return true
}

// Validate normalizes req into Params. A failure is reported in the result.
func (r *Route) Validate(ctx context.Context, req Request) Validation {
	invalid := func(err error) Validation { return Validation{Params: Params{Request: req}, Err: err} }

	decimals, err := r.decimals(ctx, req.Source)
	if err != nil {
		return invalid(err)
	}
	amt, err := amount.Parse(req.Amount, decimals)
	if err != nil {
		return invalid(err)
	}
	if amt.IsZero() {
		return invalid(ErrZeroAmount)
	}

	gas := amount.FromBaseUnits(new(big.Int), decimals)
	if req.NativeGas != "" {
		if !r.SupportsNativeGas {
			return invalid(ErrNativeGasNotOffered)
		}
		if gas, err = amount.Parse(req.NativeGas, decimals); err != nil {
			return invalid(err)
		}
		if gas.Cmp(amt) > 0 {
			return invalid(fmt.Errorf("%w: native gas %s exceeds amount %s", ErrInsufficientAmount, gas, amt))
		}
	}
	if r.restricted() && !r.IsSupported(req) {
		return invalid(ErrUnsupportedToken)
	}
	return Validation{Valid: true, Params: Params{Request: req, Amount: amt, NativeGas: gas}}
}

// Quote computes the debit and the minted amount of p.
func (r *Route) Quote(ctx context.Context, p Params) (Quote, error) {
	dstDecimals, err := r.decimals(ctx, p.Destination)
	if err != nil {
		return Quote{}, err
	}

	var fee, gas *amount.Amount
	if r.IsAutomatic {
		f, err := r.relayerFee(ctx, p.Request)
		if err != nil {
			return Quote{}, err
		}
		feeAmt := amount.FromBaseUnits(f, p.Amount.Decimals)
		gasAmt := p.NativeGas
		if gasAmt.Amount == "" {
			gasAmt = amount.FromBaseUnits(new(big.Int), p.Amount.Decimals)
		}
		fee, gas = &feeAmt, &gasAmt
	}
	q, err := quote(p.Amount, r.wireDecimals(dstDecimals), dstDecimals, fee, gas)
	if err != nil {
		return Quote{}, err
	}
	if r.Protocol == protocols.AutomaticNtt {
		dq, err := protocols.Client[DeliveryQuoter](ctx, r.cfg.Protocols, p.From.Chain, r.Protocol)
		if err != nil {
			return Quote{}, err
		}
		if q.DeliveryPrice, err = dq.DeliveryPrice(ctx, p.To.Chain, p.Source); err != nil {
			return Quote{}, err
		}
	}
	return q, nil
}

// wireDecimals is the precision the route carries. NTT trims to the
// destination token as well, and rejects amounts with dust beyond it.
func (r *Route) wireDecimals(dstDecimals int) int {
	if r.isNtt() {
		return min(amount.WireDecimals, dstDecimals)
	}
	return amount.WireDecimals
}

// quote truncates src to wire precision, deducts relayer fee and native gas
// and rescales the remainder to the destination token.
func quote(src amount.Amount, wireDecimals, dstDecimals int, fee, gas *amount.Amount) (Quote, error) {
	if err := src.Validate(); err != nil {
		return Quote{}, err
	}
	debit := amount.Truncate(src, wireDecimals)
	net := debit
	if fee != nil || gas != nil {
		costs := amount.FromBaseUnits(new(big.Int), src.Decimals)
		for _, c := range []*amount.Amount{fee, gas} {
			if c == nil {
				continue
			}
			var err error
			if costs, err = amount.Add(costs, *c); err != nil {
				return Quote{}, err
			}
		}
		var err error
		if net, err = amount.Sub(debit, costs); err != nil {
			return Quote{}, fmt.Errorf("%w: fee and gas %s exceed %s", ErrInsufficientAmount, costs, debit)
		}
	}

	minted, err := amount.Scale(amount.Truncate(net, min(wireDecimals, dstDecimals)), dstDecimals)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		SourceToken:          debit,
		DestinationToken:     minted,
		RelayFee:             fee,
		DestinationNativeGas: gas,
	}, nil
}

// Initiate starts a transfer of p.
func (r *Route) Initiate(ctx context.Context, signer transfer.Signer, p Params) (*transfer.Transfer, error) {
	if err := p.Amount.Validate(); err != nil {
		return nil, err
	}
	wire := amount.WireDecimals
	if r.isNtt() {
		dstDecimals, err := r.decimals(ctx, p.Destination)
		if err != nil {
			return nil, err
		}
		wire = r.wireDecimals(dstDecimals)
	}
	d := transfer.Details{
		Token:     p.Source,
		Amount:    amount.Truncate(p.Amount, wire).Units(),
		From:      p.From,
		To:        p.To,
		Automatic: r.IsAutomatic,
		Payload:   p.Payload,
	}
	if p.NativeGas.Amount != "" && !p.NativeGas.IsZero() {
		d.NativeGas = p.NativeGas.Units()
	}
	t, err := transfer.New(r.Protocol, d, r.cfg.Transfer)
	if err != nil {
		return nil, err
	}
	if _, err := t.InitiateTransfer(ctx, signer); err != nil {
		return t, err
	}
	r.logger.Info("Transfer initiated", zap.Any("originTxs", t.Receipt().OriginTxs))
	return t, nil
}

// Complete redeems a manual transfer.
func (r *Route) Complete(ctx context.Context, signer transfer.Signer, t *transfer.Transfer) ([]transfer.TransactionID, error) {
	if r.IsAutomatic {
		return nil, transfer.ErrAutomaticTransfer
	}
	return t.CompleteTransfer(ctx, signer)
}

// Track follows t until no further progress is observable.
func (r *Route) Track(ctx context.Context, t *transfer.Transfer, timeout time.Duration) iter.Seq2[transfer.Receipt, error] {
	return t.Track(ctx, timeout)
}

func (r *Route) decimals(ctx context.Context, token chains.TokenID) (int, error) {
	info, err := protocols.Client[TokenInfo](ctx, r.cfg.Protocols, token.Chain, r.Protocol)
	if err != nil {
		return 0, err
	}
	return info.Decimals(ctx, token)
}

func (r *Route) relayerFee(ctx context.Context, req Request) (*big.Int, error) {
	q, err := protocols.Client[RelayerFeeQuoter](ctx, r.cfg.Protocols, req.From.Chain, r.Protocol)
	if err != nil {
		return nil, err
	}
	return q.RelayerFee(ctx, req.To.Chain, req.Source)
}
