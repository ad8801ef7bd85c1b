package evm

import (
	"context"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/connect/internal/chains"
	"github.com/wormhole-demo/connect/internal/protocols"
)

// ClientFunc returns the Client of an EVM chain.
type ClientFunc func(ctx context.Context, chain vaaLib.ChainID) (*Client, error)

// Register adds the EVM protocol clients to b.
func Register(b *protocols.Builder, client ClientFunc) error {
	for _, p := range []struct {
		name protocols.Name
		wrap func(*Client) any
	}{
		{protocols.WormholeCore, func(c *Client) any { return c }},
		{protocols.TokenBridge, func(c *Client) any { return &TokenBridge{c} }},
		{protocols.AutomaticTokenBridge, func(c *Client) any { return &AutomaticTokenBridge{c} }},
		{protocols.CircleBridge, func(c *Client) any { return &CircleBridge{c} }},
		{protocols.AutomaticCircleBridge, func(c *Client) any { return &AutomaticCircleBridge{c} }},
		{protocols.Ntt, func(c *Client) any { return &Ntt{c} }},
		{protocols.AutomaticNtt, func(c *Client) any { return &AutomaticNtt{c} }},
		{protocols.Portico, func(c *Client) any { return &Portico{Client: c, peers: client} }},
	} {
		wrap := p.wrap
		err := b.Register(chains.Evm, p.name, func(ctx context.Context, chain vaaLib.ChainID) (any, error) {
			c, err := client(ctx, chain)
			if err != nil {
				return nil, err
			}
			return wrap(c), nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
