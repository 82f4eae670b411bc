package web3

import (
	"context"
	"fmt"
	"time"

	"github.com/vocdoni/starkvote/log"
)

// blockNumberer is the part of the chain client WaitReadyRPC needs.
type blockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// WaitReadyRPC blocks until the node answers eth_blockNumber or ctx is done.
func WaitReadyRPC(ctx context.Context, cli blockNumberer, retryInterval time.Duration) error {
	for {
		blockNumber, err := cli.BlockNumber(ctx)
		if err == nil {
			log.Infow("rpc is ready", "blockNumber", blockNumber)
			return nil
		}
		log.Debugw("waiting for rpc", "error", err.Error())
		select {
		case <-ctx.Done():
			return fmt.Errorf("rpc not ready: %w", ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}
