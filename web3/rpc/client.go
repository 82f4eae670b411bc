// Package rpc provides a go-ethereum contract backend that balances calls
// over several JSON-RPC endpoints of the same chain, retrying and rotating
// endpoints on failure.
package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/vocdoni/starkvote/log"
)

const (
	// retriesPerEndpoint is the number of attempts on one endpoint before
	// switching to the next one.
	retriesPerEndpoint = 2
	retrySleep         = 200 * time.Millisecond
	defaultTimeout     = 5 * time.Second
	dialTimeout        = 10 * time.Second
)

var _ bind.ContractBackend = (*Client)(nil)

// Client implements bind.ContractBackend for a single chain.
type Client struct {
	endpoints *Endpoints
	chainID   uint64
}

// Dial connects to every uri and checks that all of them serve the same
// chain.
func Dial(ctx context.Context, uris ...string) (*Client, error) {
	if len(uris) == 0 {
		return nil, ErrNoEndpoints
	}
	var chainID uint64
	eps := make([]*Endpoint, 0, len(uris))
	for _, uri := range uris {
		ep, id, err := dialEndpoint(ctx, uri)
		if err != nil {
			NewEndpoints(eps...).close()
			return nil, err
		}
		if len(eps) > 0 && id != chainID {
			ep.client.Close()
			NewEndpoints(eps...).close()
			return nil, fmt.Errorf("endpoint %s serves chain %d, expected %d", uri, id, chainID)
		}
		chainID = id
		eps = append(eps, ep)
	}
	log.Infow("web3 client ready", "chainID", chainID, "endpoints", len(eps))
	return NewClient(chainID, eps...), nil
}

func dialEndpoint(ctx context.Context, uri string) (*Endpoint, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	rpcClient, err := gethrpc.DialContext(ctx, uri)
	if err != nil {
		return nil, 0, fmt.Errorf("dial %s: %w", uri, err)
	}
	client := ethclient.NewClient(rpcClient)
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, 0, fmt.Errorf("chain id of %s: %w", uri, err)
	}
	return &Endpoint{URI: uri, client: client, rpcClient: rpcClient}, id.Uint64(), nil
}

// NewClient returns a client for chainID over already connected endpoints.
func NewClient(chainID uint64, eps ...*Endpoint) *Client {
	return &Client{
		endpoints: NewEndpoints(eps...),
		chainID:   chainID,
	}
}

// ChainID returns the chain the client is bound to.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// Close closes the connections of every endpoint.
func (c *Client) Close() {
	c.endpoints.close()
}

// call runs fn with retries. Each endpoint is tried retriesPerEndpoint
// times, then disabled in favour of the next one, until all endpoints have
// been tried. Permanent errors are returned at once.
func call[T any](ctx context.Context, c *Client, fn func(context.Context, *Endpoint) (T, error)) (T, error) {
	var zero T
	total := c.endpoints.Len()
	if total == 0 {
		return zero, fmt.Errorf("chain %d: %w", c.chainID, ErrNoEndpoints)
	}

	tried := make(map[string]bool, total)
	var lastErr error
	for attempt := 0; attempt < total; attempt++ {
		ep, err := c.endpoints.Next()
		if err != nil {
			return zero, fmt.Errorf("chain %d: %w", c.chainID, err)
		}
		if tried[ep.URI] {
			break
		}
		tried[ep.URI] = true

		for retry := range retriesPerEndpoint {
			res, err := withTimeout(ctx, ep, fn)
			if err == nil {
				if attempt > 0 {
					log.Infow("rpc call succeeded after endpoint switch",
						"chainID", c.chainID,
						"uri", ep.URI,
						"endpointAttempts", attempt+1)
				}
				return res, nil
			}
			lastErr = err
			if rpcErr := ParseError(err); rpcErr != nil && len(rpcErr.Data) > 0 {
				lastErr = fmt.Errorf("%w (code: %d, data: %s)", err, rpcErr.Code, rpcErr.Data)
			}
			if IsPermanentError(err) || ctx.Err() != nil {
				return zero, lastErr
			}
			if retry < retriesPerEndpoint-1 {
				select {
				case <-ctx.Done():
					return zero, ctx.Err()
				case <-time.After(retrySleep):
				}
			}
		}
		log.Warnw("endpoint failed, switching to next",
			"chainID", c.chainID,
			"uri", ep.URI,
			"error", lastErr.Error())
		c.endpoints.Disable(ep.URI)
	}
	return zero, fmt.Errorf("all endpoints of chain %d failed: %w", c.chainID, lastErr)
}

func withTimeout[T any](ctx context.Context, ep *Endpoint, fn func(context.Context, *Endpoint) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return fn(ctx, ep)
}

// CodeAt implements bind.ContractBackend.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) ([]byte, error) {
		return ep.client.CodeAt(ctx, account, blockNumber)
	})
}

// CallContract implements bind.ContractBackend.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) ([]byte, error) {
		return ep.client.CallContract(ctx, msg, blockNumber)
	})
}

// EstimateGas implements bind.ContractBackend.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) (uint64, error) {
		return ep.client.EstimateGas(ctx, msg)
	})
}

// FilterLogs implements bind.ContractBackend.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) ([]gethtypes.Log, error) {
		return ep.client.FilterLogs(ctx, query)
	})
}

// HeaderByNumber implements bind.ContractBackend.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) (*gethtypes.Header, error) {
		return ep.client.HeaderByNumber(ctx, number)
	})
}

// PendingNonceAt implements bind.ContractBackend.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) (uint64, error) {
		return ep.client.PendingNonceAt(ctx, account)
	})
}

// SuggestGasPrice implements bind.ContractBackend.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) (*big.Int, error) {
		return ep.client.SuggestGasPrice(ctx)
	})
}

// SuggestGasTipCap implements bind.ContractBackend.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) (*big.Int, error) {
		return ep.client.SuggestGasTipCap(ctx)
	})
}

// SendTransaction implements bind.ContractBackend.
func (c *Client) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	_, err := call(ctx, c, func(ctx context.Context, ep *Endpoint) (struct{}, error) {
		return struct{}{}, ep.client.SendTransaction(ctx, tx)
	})
	return err
}

// PendingCodeAt implements bind.ContractBackend.
func (c *Client) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) ([]byte, error) {
		return ep.client.PendingCodeAt(ctx, account)
	})
}

// SubscribeFilterLogs implements bind.ContractBackend. Subscriptions are
// long lived, so the call is not bounded by the per call timeout.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error) {
	ep, err := c.endpoints.Next()
	if err != nil {
		return nil, err
	}
	return ep.client.SubscribeFilterLogs(ctx, query, ch)
}

// HeaderByHash returns the header of the block with the given hash.
func (c *Client) HeaderByHash(ctx context.Context, hash common.Hash) (*gethtypes.Header, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) (*gethtypes.Header, error) {
		return ep.client.HeaderByHash(ctx, hash)
	})
}

// TransactionReceipt returns the receipt of a mined transaction, or
// ethereum.NotFound while it is pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) (*gethtypes.Receipt, error) {
		return ep.client.TransactionReceipt(ctx, hash)
	})
}

// BlockNumber returns the number of the most recent block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, c, func(ctx context.Context, ep *Endpoint) (uint64, error) {
		return ep.client.BlockNumber(ctx)
	})
}

// RawCall performs a JSON-RPC call that ethclient does not wrap, such as
// eth_accounts, and decodes the response into result.
func (c *Client) RawCall(ctx context.Context, result any, method string, args ...any) error {
	_, err := call(ctx, c, func(ctx context.Context, ep *Endpoint) (struct{}, error) {
		return struct{}{}, ep.rpcClient.CallContext(ctx, result, method, args...)
	})
	return err
}
