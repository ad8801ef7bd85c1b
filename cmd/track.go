package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/transfer"
	"github.com/wormhole-demo/connect/internal/vaa"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track a transfer from its origin transaction or message id",
	Long: `Recovers a transfer from the transaction that started it (--chain and --tx)
or from its Wormhole message id (--message-id) and follows it until it is
redeemed or no further progress can be observed.`,
	RunE: runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)

	trackCmd.Flags().String(
		"chain",
		"",
		"Origin chain of the transaction")

	trackCmd.Flags().String(
		"tx",
		"",
		"Origin transaction hash")

	trackCmd.Flags().String(
		"message-id",
		"",
		"Wormhole message id (chain/emitter/sequence)")

	trackCmd.Flags().Duration(
		"timeout",
		10*time.Minute,
		"How long to wait for each step")

	trackCmd.MarkFlagsMutuallyExclusive("tx", "message-id")
	trackCmd.MarkFlagsRequiredTogether("chain", "tx")
}

func runTrack(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	timeout := durationFlag(cmd, "timeout")
	chainName, _ := cmd.Flags().GetString("chain")
	txid, _ := cmd.Flags().GetString("tx")
	messageID, _ := cmd.Flags().GetString("message-id")

	e, err := newEngine(cmd, logger, engineOptions{})
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(logger)
	defer cancel()
	e.startSpy(ctx)

	var t *transfer.Transfer
	switch {
	case txid != "":
		chain, err := parseChain(chainName)
		if err != nil {
			return err
		}
		t, err = transfer.FromTransaction(ctx, chain, txid, e.deps, timeout)
		if err != nil {
			return fmt.Errorf("failed to recover transfer: %w", err)
		}
	case messageID != "":
		id, err := vaa.ParseMessageID(messageID)
		if err != nil {
			return err
		}
		t, err = transfer.FromMessageID(ctx, id, e.deps, timeout)
		if err != nil {
			return fmt.Errorf("failed to recover transfer: %w", err)
		}
	default:
		return fmt.Errorf("either --chain and --tx or --message-id is required")
	}

	out := cmd.OutOrStdout()
	printReceipt(out, t.Receipt())
	for receipt, err := range t.Track(ctx, timeout) {
		if err != nil {
			return err
		}
		printReceipt(out, receipt)
	}
	logger.Info("Tracking finished", zap.Stringer("state", t.State()))
	return nil
}

func printReceipt(w io.Writer, r transfer.Receipt) {
	fmt.Fprintf(w, "state: %s\n", r.State)
	if r.Details.Amount != nil {
		fmt.Fprintf(w, "  %s %s -> %s\n", r.Details.Amount, r.Details.Token, r.Details.To)
	}
	for _, id := range r.AttestationIDs {
		fmt.Fprintf(w, "  attestation: %s\n", id)
	}
	for _, tx := range r.OriginTxs {
		fmt.Fprintf(w, "  origin tx: %s %s\n", tx.Chain, tx.TxID)
	}
	for _, tx := range r.DestinationTxs {
		fmt.Fprintf(w, "  destination tx: %s %s\n", tx.Chain, tx.TxID)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx, cancel
}
