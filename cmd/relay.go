package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/relay"
)

// relayCmd represents the command to redeem token bridge transfers
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Redeem token bridge transfers to one chain as they are signed",
	Long: `Listens to the Wormhole spy for token bridge transfer VAAs and redeems the
ones bound for the chain selected with --chain, paying with --private-key.

Transfers that are already redeemed or sent through an automatic relayer are
skipped.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
		configureLogging(cmd, args)
	},
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().String(
		"chain",
		"solana",
		"Destination chain to redeem on")

	relayCmd.Flags().String(
		"private-key",
		"",
		"Key that signs redemptions: hex on EVM chains, base58 on Solana (required)")

	viper.BindPFlag("relay_private_key", relayCmd.Flags().Lookup("private-key"))
}

func runRelay(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	chainName, _ := cmd.Flags().GetString("chain")
	chain, err := parseChain(chainName)
	if err != nil {
		return err
	}
	privateKey := viper.GetString("relay_private_key")
	if privateKey == "" {
		return fmt.Errorf("private key is required to redeem on %s", chain)
	}
	if viper.GetString("spy_rpc_host") == "" {
		viper.Set("spy_rpc_host", "localhost:7073")
	}

	opts := engineOptions{}
	if chain == vaaLib.ChainIDSolana {
		opts.SolanaKey = privateKey
	}
	e, err := newEngine(cmd, logger, opts)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	signer, err := e.signer(ctx, chain, privateKey)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Starting %s relayer", chain),
		zap.String("spyRPC", viper.GetString("spy_rpc_host")),
		zap.String("signer", fmt.Sprintf("%x", signer.Address())))

	relayer, err := relay.New(logger, e.spy, e.deps, signer)
	if err != nil {
		return fmt.Errorf("failed to initialize relayer: %v", err)
	}

	if err := relayer.Start(ctx); err != nil {
		return fmt.Errorf("relayer stopped with error: %v", err)
	}
	return nil
}
