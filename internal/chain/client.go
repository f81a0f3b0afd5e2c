package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"swapwatch/internal/model"
)

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL. Head subscriptions
// need a websocket or IPC endpoint.
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

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// HeaderByHash returns the block header with the given hash.
func (c *Client) HeaderByHash(ctx context.Context, hash common.Hash) (model.BlockHeader, error) {
	header, err := c.ethClient.HeaderByHash(ctx, hash)
	if err != nil {
		return model.BlockHeader{}, err
	}
	return model.HeaderFromEth(header), nil
}

// FetchLogs returns the logs of one block emitted by contract with the given topic0.
func (c *Client) FetchLogs(ctx context.Context, blockHash common.Hash, contract common.Address, topic0 common.Hash) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		BlockHash: &blockHash,
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{topic0}},
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// SubscribeHeads opens a new-head subscription.
func (c *Client) SubscribeHeads(ctx context.Context) (*HeadSubscription, error) {
	ch := make(chan *types.Header, 16)
	sub, err := c.ethClient.SubscribeNewHead(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("subscribe new heads: %w", err)
	}
	return &HeadSubscription{sub: sub, ch: ch}, nil
}

// HeadSubscription delivers new block headers in arrival order.
type HeadSubscription struct {
	sub ethereum.Subscription
	ch  chan *types.Header
}

// Next blocks until the next header arrives. It returns io.EOF once the
// subscription has been closed without error.
func (s *HeadSubscription) Next(ctx context.Context) (model.BlockHeader, error) {
	select {
	case <-ctx.Done():
		return model.BlockHeader{}, ctx.Err()
	case err, ok := <-s.sub.Err():
		if !ok || err == nil {
			return model.BlockHeader{}, io.EOF
		}
		return model.BlockHeader{}, fmt.Errorf("head subscription: %w", err)
	case header := <-s.ch:
		if header == nil {
			return model.BlockHeader{}, errors.New("head subscription delivered nil header")
		}
		return model.HeaderFromEth(header), nil
	}
}

// Close unsubscribes.
func (s *HeadSubscription) Close() {
	s.sub.Unsubscribe()
}
