package cmd

import (
	"fmt"
	"os"
	"strings"

	dotenv "github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wormhole-connect",
	Short: "Cross-chain token transfers over Wormhole, Circle CCTP, NTT and Portico",
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	rootCmd.PersistentFlags().String(
		"config",
		"",
		"Config file with NTT and Portico deployments (YAML, JSON or TOML)")

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	rootCmd.PersistentFlags().String(
		"network",
		"mainnet",
		"Wormhole network (mainnet, testnet)")

	rootCmd.PersistentFlags().String(
		"spy-rpc-host",
		"",
		"Wormhole spy service endpoint, consulted for VAAs before the API")

	rootCmd.PersistentFlags().String(
		"api-url",
		"",
		"Wormholescan API URL (defaults based on --network)")

	rootCmd.PersistentFlags().String(
		"circle-api-url",
		"",
		"Circle attestation API URL (defaults based on --network)")

	rootCmd.PersistentFlags().StringToString(
		"rpc",
		nil,
		"RPC URL overrides per chain, e.g. ethereum=https://...")

	rootCmd.PersistentFlags().String(
		"solana-rpc-url",
		"",
		"Solana RPC URL (defaults based on --network)")

	rootCmd.PersistentFlags().String(
		"vaa-service-url",
		"",
		"Service that posts VAAs to the Solana core bridge")

	// Bind flags to viper for env variable support
	viper.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))
	viper.BindPFlag("spy_rpc_host", rootCmd.PersistentFlags().Lookup("spy-rpc-host"))
	viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("circle_api_url", rootCmd.PersistentFlags().Lookup("circle-api-url"))
	viper.BindPFlag("solana_rpc_url", rootCmd.PersistentFlags().Lookup("solana-rpc-url"))
	viper.BindPFlag("vaa_service_url", rootCmd.PersistentFlags().Lookup("vaa-service-url"))

	cobra.OnInitialize(initConfig)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("wormhole-connect")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if file, _ := rootCmd.PersistentFlags().GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to read config %s: %v\n", file, err)
			os.Exit(1)
		}
	}
}

func printBanner() {
	colours := []string{
		"\033[38;5;81m", // Cyan
		"\033[38;5;75m", // Light Blue
		"\033[38;5;69m", // Sky Blue
		"\033[38;5;63m", // Dodger Blue
		"\033[38;5;57m", // Deep Sky Blue
		"\033[38;5;51m", // Cornflower Blue
	}
	banner := `
 __      __                      .__           .__           _________                                     __
/  \    /  \___________  _____   |  |__   ____ |  |   ____   \_   ___ \  ____   ____   ____   ____   _____/  |_
\   \/\/   /  _ \_  __ \/     \  |  |  \ /  _ \|  | _/ __ \  /    \  \/ /  _ \ /    \ /    \_/ __ \_/ ___\   __\
 \        (  <_> )  | \/  Y Y  \ |   Y  (  <_> )  |_\  ___/  \     \___(  <_> )   |  \   |  \  ___/\  \___|  |
  \__/\  / \____/|__|  |__|_|  / |___|  /\____/|____/\___  >  \______  /\____/|___|  /___|  /\___  >\___  >__|
       \/                    \/       \/                 \/          \/            \/     \/     \/     \/
`
	lines := strings.Split(banner, "\n")

	// remove empty lines
	for i := 0; i < len(lines); i++ {
		if lines[i] == "" {
			lines = append(lines[:i], lines[i+1:]...)
			i--
		}
	}

	for i, line := range lines {
		fmt.Printf("%s%s\n", colours[i%len(colours)], line)
	}

	fmt.Println("\033[0m") // Reset
}

func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	json, _ := cmd.Flags().GetBool("json")

	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.Development = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Configure JSON output if requested
	if json {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		logger, _ = zap.NewProduction()
	}

	// Replace the global logger
	zap.ReplaceGlobals(logger)

	return logger
}
