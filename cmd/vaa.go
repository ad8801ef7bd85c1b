package cmd

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/vaa"
)

// decodeOrder is the order protocols are tried in when decoding a VAA of
// unknown kind. Relayed and Portico payloads come first since they extend
// plain ones.
var decodeOrder = []string{
	vaa.Ntt,
	vaa.PorticoBridge,
	vaa.AutomaticCircleBridge,
	vaa.AutomaticTokenBridge,
	vaa.TokenBridge,
	vaa.WormholeCore,
}

var vaaCmd = &cobra.Command{
	Use:   "vaa",
	Short: "Inspect Wormhole VAAs",
}

var vaaDecodeCmd = &cobra.Command{
	Use:   "decode <vaa>",
	Short: "Decode a hex or base64 encoded VAA",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := configureLogging(cmd, args)
		raw, err := decodeBytes(args[0])
		if err != nil {
			return err
		}
		v, err := decodeVAA(vaa.Default(), raw)
		if err != nil {
			return err
		}
		vaa.LogVAA(logger, v)
		printVAA(cmd.OutOrStdout(), v)
		return nil
	},
}

var vaaFetchCmd = &cobra.Command{
	Use:   "fetch <chain/emitter/sequence>",
	Short: "Fetch a signed VAA from the spy or the Wormholescan API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := configureLogging(cmd, args)
		id, err := vaa.ParseMessageID(args[0])
		if err != nil {
			return err
		}
		e, err := newEngine(cmd, logger, engineOptions{})
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		e.startSpy(ctx)

		raw, found, err := e.fetcher.FetchVAA(ctx, id, durationFlag(cmd, "timeout"))
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("VAA %s not found", id)
		}
		v, err := decodeVAA(vaa.Default(), raw)
		if err != nil {
			return err
		}
		vaa.LogVAA(logger, v)
		fmt.Fprintf(cmd.OutOrStdout(), "raw: %s\n", hex.EncodeToString(raw))
		printVAA(cmd.OutOrStdout(), v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vaaCmd)
	vaaCmd.AddCommand(vaaDecodeCmd, vaaFetchCmd)

	vaaFetchCmd.Flags().Duration(
		"timeout",
		time.Minute,
		"How long to wait for the VAA to be signed")
}

// decodeVAA decodes raw with the first protocol whose payloads fit, falling
// back to a raw payload.
func decodeVAA(r *vaa.Registry, raw []byte) (*vaa.VAA, error) {
	for _, protocol := range decodeOrder {
		if v, err := r.DeserializeProtocol(protocol, raw); err == nil {
			return v, nil
		}
	}
	return r.Deserialize(vaa.RawLiteral, raw)
}

// decodeBytes reads hex, with or without 0x, or standard base64.
func decodeBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("VAA is neither hex nor base64")
	}
	return b, nil
}

func printVAA(w io.Writer, v *vaa.VAA) {
	fmt.Fprintf(w, "id:         %s\n", v.ID())
	fmt.Fprintf(w, "payload:    %s\n", v.Literal())
	fmt.Fprintf(w, "hash:       %s\n", v.Hash().Hex())
	fmt.Fprintf(w, "digest:     %s\n", v.Digest().Hex())
	fmt.Fprintf(w, "signatures: %d (guardian set %d)\n", len(v.Signatures), v.GuardianSetIndex)
	fmt.Fprintf(w, "timestamp:  %s\n", time.Unix(int64(v.Timestamp), 0).UTC().Format(time.RFC3339))
	if v.Payload != nil {
		fmt.Fprintf(w, "fields:     %v\n", v.Payload)
	} else {
		fmt.Fprintf(w, "raw payload: %s\n", hex.EncodeToString(v.RawPayload))
	}
}

// startSpy streams VAAs into the fetcher's cache until ctx is done.
func (e *engine) startSpy(ctx context.Context) {
	if e.spy == nil {
		return
	}
	go func() {
		err := e.spy.Run(ctx, nil)
		if err != nil && ctx.Err() == nil {
			e.logger.Warn("Spy stream stopped", zap.Error(err))
		}
	}()
}
