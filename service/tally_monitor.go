package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vocdoni/starkvote/log"
	"github.com/vocdoni/starkvote/types"
	"github.com/vocdoni/starkvote/vote"
)

// DefaultTallyInterval is the polling interval of the tally monitor.
const DefaultTallyInterval = 30 * time.Second

// TallyMonitor periodically reads the candidate tallies of a ledger and logs
// them whenever they change.
type TallyMonitor struct {
	ledger   vote.Ledger
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	last     []types.Candidate
}

// NewTallyMonitor creates a monitor of ledger. A zero interval uses
// DefaultTallyInterval.
func NewTallyMonitor(ledger vote.Ledger, interval time.Duration) *TallyMonitor {
	if interval <= 0 {
		interval = DefaultTallyInterval
	}
	return &TallyMonitor{
		ledger:   ledger,
		interval: interval,
	}
}

// Start begins monitoring. It returns an error if the service is already
// running or if the ledger cannot be read.
func (tm *TallyMonitor) Start(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.cancel != nil {
		return fmt.Errorf("service already running")
	}
	cands, err := tm.ledger.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to read tallies: %w", err)
	}
	tm.record(cands)

	ctx, tm.cancel = context.WithCancel(ctx)
	tm.done = make(chan struct{})
	go tm.monitor(ctx, tm.done)
	return nil
}

// Stop halts the monitor and waits for it to exit.
func (tm *TallyMonitor) Stop() {
	tm.mu.Lock()
	cancel, done := tm.cancel, tm.done
	tm.cancel, tm.done = nil, nil
	tm.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Tallies returns the last tallies read.
func (tm *TallyMonitor) Tallies() []types.Candidate {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return slices.Clone(tm.last)
}

func (tm *TallyMonitor) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(tm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := tm.poll(ctx); err != nil && ctx.Err() == nil {
				log.Warnw("failed to read tallies", "error", err.Error())
			}
		}
	}
}

// poll reads the tallies and records them.
func (tm *TallyMonitor) poll(ctx context.Context) (bool, error) {
	cands, err := tm.ledger.Candidates(ctx)
	if err != nil {
		return false, err
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.record(cands), nil
}

// record stores cands and logs them if they differ from the last read.
// Must be called with the lock held.
func (tm *TallyMonitor) record(cands []types.Candidate) bool {
	if tm.last != nil && slices.Equal(cands, tm.last) {
		return false
	}
	tm.last = cands

	args := make(map[string]any, len(cands)+1)
	var total uint64
	for _, c := range cands {
		args[c.Name] = c.VoteCount
		total += c.VoteCount
	}
	args["total"] = total
	log.Monitor("tally", args)
	return true
}
