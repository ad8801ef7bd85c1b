package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/amount"
	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/routes"
	"github.com/wormhole-demo/connect/internal/transfer"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Send tokens to another chain",
	Long: `Picks the first route able to move the token, quotes it, signs the
origin transactions and tracks the transfer. Manual routes are redeemed on the
destination chain with --destination-private-key once the attestation is
available.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.Flags().String("from", "", "Origin chain (required)")
	transferCmd.Flags().String("to", "", "Destination chain (required)")
	transferCmd.Flags().String("recipient", "", "Recipient address on the destination chain (required)")
	transferCmd.Flags().String("token", "native", "Token address on the origin chain, or native")
	transferCmd.Flags().String("destination-token", "", "Token received on the destination chain (defaults to USDC for USDC transfers)")
	transferCmd.Flags().String("amount", "", "Amount to send, in whole tokens (required)")
	transferCmd.Flags().String("native-gas", "", "Part of the amount to convert to destination gas (automatic routes)")
	transferCmd.Flags().String("route", "", "Route to use instead of the best available one")
	transferCmd.Flags().String("private-key", "", "Private key on the origin chain (required)")
	transferCmd.Flags().String("destination-private-key", "", "Private key that redeems manual transfers")
	transferCmd.Flags().Duration("timeout", 20*time.Minute, "How long to wait for each step")
	transferCmd.Flags().Bool("quote-only", false, "Print the quote without sending")

	for _, name := range []string{"from", "to", "recipient", "amount"} {
		transferCmd.MarkFlagRequired(name)
	}

	viper.BindPFlag("private_key", transferCmd.Flags().Lookup("private-key"))
	viper.BindPFlag("destination_private_key", transferCmd.Flags().Lookup("destination-private-key"))
}

func runTransfer(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	flags := cmd.Flags()

	fromName, _ := flags.GetString("from")
	toName, _ := flags.GetString("to")
	from, err := parseChain(fromName)
	if err != nil {
		return err
	}
	to, err := parseChain(toName)
	if err != nil {
		return err
	}

	destinationKey := viper.GetString("destination_private_key")
	opts := engineOptions{}
	if to == vaaLib.ChainIDSolana {
		opts.SolanaKey = destinationKey
	}
	e, err := newEngine(cmd, logger, opts)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(logger)
	defer cancel()
	e.startSpy(ctx)

	req, err := transferRequest(cmd, e, from, to)
	if err != nil {
		return err
	}
	signer, err := e.signer(ctx, from, viper.GetString("private_key"))
	if err != nil {
		return err
	}
	req.From.Address = signer.Address()

	route, params, err := pickRoute(cmd, e.resolver, req)
	if err != nil {
		return err
	}
	quote, err := route.Quote(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to quote %s: %w", route.Name, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "route:    %s\n", route.Name)
	fmt.Fprintf(out, "send:     %s\n", quote.SourceToken)
	fmt.Fprintf(out, "receive:  %s\n", quote.DestinationToken)
	if quote.RelayFee != nil {
		fmt.Fprintf(out, "relay fee: %s\n", quote.RelayFee)
	}
	if quote.DestinationNativeGas != nil && !quote.DestinationNativeGas.IsZero() {
		fmt.Fprintf(out, "native gas: %s\n", quote.DestinationNativeGas)
	}
	if quote.DeliveryPrice != nil {
		fmt.Fprintf(out, "delivery: %s\n", amount.FromBaseUnits(quote.DeliveryPrice, 18))
	}
	if quoteOnly, _ := flags.GetBool("quote-only"); quoteOnly {
		return nil
	}

	t, err := route.Initiate(ctx, signer, params)
	if err != nil {
		return fmt.Errorf("failed to initiate transfer: %w", err)
	}
	timeout := durationFlag(cmd, "timeout")
	for receipt, err := range route.Track(ctx, t, timeout) {
		if err != nil {
			return err
		}
		printReceipt(out, receipt)
		if receipt.State != transfer.Attested || route.IsAutomatic {
			continue
		}
		if destinationKey == "" {
			logger.Info("Transfer attested; redeem it with --destination-private-key or track it later")
			return nil
		}
		redeemer, err := e.signer(ctx, to, destinationKey)
		if err != nil {
			return err
		}
		if _, err := route.Complete(ctx, redeemer, t); err != nil {
			return fmt.Errorf("failed to complete transfer: %w", err)
		}
	}
	logger.Info("Transfer finished", zap.Stringer("state", t.State()))
	return nil
}

func transferRequest(cmd *cobra.Command, e *engine, from, to vaaLib.ChainID) (routes.Request, error) {
	flags := cmd.Flags()
	tokenFlag, _ := flags.GetString("token")
	destinationFlag, _ := flags.GetString("destination-token")
	recipientFlag, _ := flags.GetString("recipient")
	amountFlag, _ := flags.GetString("amount")
	nativeGas, _ := flags.GetString("native-gas")

	source, err := parseToken(from, tokenFlag)
	if err != nil {
		return routes.Request{}, err
	}
	recipient, err := parseAddress(to, recipientFlag)
	if err != nil {
		return routes.Request{}, err
	}

	var destination chains.TokenID
	switch {
	case destinationFlag != "":
		destination, err = parseToken(to, destinationFlag)
		if err != nil {
			return routes.Request{}, err
		}
	default:
		tokens := e.config.circleTokens()
		usdc, ok := tokens[from]
		dst, dstOK := tokens[to]
		if !ok || !dstOK || source.Address != usdc {
			return routes.Request{}, errors.New("--destination-token is required unless sending USDC between CCTP chains")
		}
		destination = chains.TokenID{Chain: to, Address: dst}
	}

	return routes.Request{
		From:        chains.ChainAddress{Chain: from},
		To:          chains.ChainAddress{Chain: to, Address: recipient},
		Source:      source,
		Destination: destination,
		Amount:      amountFlag,
		NativeGas:   nativeGas,
	}, nil
}

// pickRoute returns the requested route, or the first available one that
// validates req.
func pickRoute(cmd *cobra.Command, resolver *routes.Resolver, req routes.Request) (*routes.Route, routes.Params, error) {
	ctx := cmd.Context()
	name, _ := cmd.Flags().GetString("route")
	if name != "" {
		route, ok := resolver.Route(name)
		if !ok {
			return nil, routes.Params{}, fmt.Errorf("unknown route %s", name)
		}
		v := route.Validate(ctx, req)
		if !v.Valid {
			return nil, routes.Params{}, fmt.Errorf("route %s: %w", name, v.Err)
		}
		return route, v.Params, nil
	}
	var errs []error
	for _, route := range resolver.Find(ctx, req) {
		v := route.Validate(ctx, req)
		if v.Valid {
			return route, v.Params, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", route.Name, v.Err))
	}
	if len(errs) == 0 {
		return nil, routes.Params{}, fmt.Errorf("no route from %s to %s for %s", req.From.Chain, req.To.Chain, req.Source)
	}
	return nil, routes.Params{}, errors.Join(errs...)
}
