// Package api serves the vote HTTP API: candidates and tallies, vote
// submission through the commitment workflow, and public proof checks.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/starkvote/log"
	"github.com/vocdoni/starkvote/types"
	"github.com/vocdoni/starkvote/vote"
)

const (
	maxRequestBodySize    = 64 << 10
	defaultRequestTimeout = 45 * time.Second
)

// RecordReader returns the vote stored under a digest. storage.Storage
// implements it.
type RecordReader interface {
	VoteRecord(digest types.Digest) (*types.VoteRecord, error)
}

// AccountLister lists the accounts that can submit votes. web3.Ledger
// implements it.
type AccountLister interface {
	Accounts(ctx context.Context) ([]common.Address, error)
}

// Config holds the API server settings. Records and Accounts are optional.
type Config struct {
	Host           string
	Port           int
	Workflow       *vote.Workflow
	Records        RecordReader
	Accounts       AccountLister
	RequestTimeout time.Duration
}

// API is the HTTP API server.
type API struct {
	router   *chi.Mux
	server   *http.Server
	listener net.Listener
	workflow *vote.Workflow
	records  RecordReader
	accounts AccountLister
}

// New creates the API and its router. Call Start to serve it.
func New(conf *Config) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Workflow == nil {
		return nil, fmt.Errorf("missing vote workflow")
	}
	timeout := conf.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	a := &API{
		workflow: conf.Workflow,
		records:  conf.Records,
		accounts: conf.Accounts,
	}
	a.initRouter(timeout)
	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Router returns the chi router.
func (a *API) Router() *chi.Mux {
	return a.router
}

// Start listens on the configured address and serves in the background.
func (a *API) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	a.listener = ln
	log.Infow("starting API server", "addr", ln.Addr().String())
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}()
	return nil
}

// Addr returns the address the server listens on, once started.
func (a *API) Addr() string {
	if a.listener == nil {
		return a.server.Addr
	}
	return a.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (a *API) Stop(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *API) initRouter(timeout time.Duration) {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)
	a.router.Use(loggingMiddleware(DefaultLoggingConfig()))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(timeout))

	a.registerHandlers()
}

func (a *API) registerHandlers() {
	routes := []struct {
		method  string
		pattern string
		handler http.HandlerFunc
	}{
		{http.MethodGet, PingEndpoint, func(w http.ResponseWriter, _ *http.Request) { httpWriteOK(w) }},
		{http.MethodGet, CandidatesEndpoint, a.candidates},
		{http.MethodPost, VoteEndpoint, a.newVote},
		{http.MethodGet, VoteCountEndpoint, a.voteCount},
		{http.MethodGet, VoteRecordEndpoint, a.voteRecord},
		{http.MethodGet, AccountsEndpoint, a.listAccounts},
		{http.MethodPost, VerifyProofEndpoint, a.verifyProof},
	}
	for _, r := range routes {
		log.Debugw("register handler", "endpoint", r.pattern, "method", r.method)
		a.router.Method(r.method, r.pattern, r.handler)
	}
}
