package solana

import (
	"context"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/protocols"
)

// Register adds the Solana token bridge client to b.
func Register(b *protocols.Builder, client *Client) error {
	return b.Register(chains.Solana, protocols.TokenBridge, func(ctx context.Context, chain vaaLib.ChainID) (any, error) {
		return &TokenBridge{client}, nil
	})
}
