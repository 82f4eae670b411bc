package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/starkvote/api"
	"github.com/vocdoni/starkvote/log"
	"github.com/vocdoni/starkvote/vote"
)

const apiShutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	API      *api.API
	workflow *vote.Workflow
	records  api.RecordReader
	accounts api.AccountLister
	mu       sync.Mutex
	cancel   context.CancelFunc
	host     string
	port     int
}

// NewAPI creates a new APIService instance serving workflow.
func NewAPI(workflow *vote.Workflow, host string, port int, disableLogging bool) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		workflow: workflow,
		host:     host,
		port:     port,
	}
}

// SetLedgerInfo configures the optional record and account sources of the
// API. Must be called before Start.
func (as *APIService) SetLedgerInfo(records api.RecordReader, accounts api.AccountLister) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.records = records
	as.accounts = accounts
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	var err error
	as.API, err = api.New(&api.Config{
		Host:     as.host,
		Port:     as.port,
		Workflow: as.workflow,
		Records:  as.records,
		Accounts: as.accounts,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	if err := as.API.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	_, as.cancel = context.WithCancel(ctx)
	return nil
}

// Stop gracefully shuts the API server down.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel == nil {
		return
	}
	as.cancel()
	as.cancel = nil
	ctx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
	defer cancel()
	if err := as.API.Stop(ctx); err != nil {
		log.Warnw("failed to stop API server", "error", err.Error())
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
