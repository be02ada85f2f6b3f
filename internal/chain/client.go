package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Head identifies the block all reads of one snapshot are pinned to.
type Head struct {
	Number    uint64
	Timestamp uint64
}

// Client wraps go-ethereum RPC with the read-only calls the pool reader needs.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestHead returns the number and timestamp of the latest block.
func (c *Client) LatestHead(ctx context.Context) (Head, error) {
	header, err := c.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return Head{}, err
	}
	if header.Number == nil || !header.Number.IsUint64() {
		return Head{}, fmt.Errorf("invalid block number in header")
	}
	return Head{Number: header.Number.Uint64(), Timestamp: header.Time}, nil
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
