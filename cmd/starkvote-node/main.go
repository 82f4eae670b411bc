package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/starkvote/api"
	"github.com/vocdoni/starkvote/config"
	"github.com/vocdoni/starkvote/db"
	"github.com/vocdoni/starkvote/db/metadb"
	"github.com/vocdoni/starkvote/log"
	"github.com/vocdoni/starkvote/prover"
	"github.com/vocdoni/starkvote/service"
	"github.com/vocdoni/starkvote/storage"
	"github.com/vocdoni/starkvote/util"
	"github.com/vocdoni/starkvote/vote"
	"github.com/vocdoni/starkvote/web3"
	"github.com/vocdoni/starkvote/web3/rpc"
)

// Services holds all the running services
type Services struct {
	Storage  *storage.Storage
	Chain    *rpc.Client
	Ledger   vote.Ledger
	Workflow *vote.Workflow
	Monitor  *service.TallyMonitor
	API      *service.APIService
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.Output, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log.Infow("starting starkvote-node", "version", Version)

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		shutdownServices(services)
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// setupServices initializes and starts all required services. On error the
// returned services hold whatever was started.
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	var err error
	switch cfg.Ledger.Type {
	case config.LedgerLocal:
		services.Ledger, err = setupLocalLedger(cfg, services)
	case config.LedgerWeb3:
		services.Ledger, err = setupWeb3Ledger(ctx, cfg, services)
	}
	if err != nil {
		return services, err
	}

	engine, err := prover.NewTraceEngine(prover.WithQueries(cfg.Prover.Queries))
	if err != nil {
		return services, fmt.Errorf("failed to create proof engine: %w", err)
	}
	services.Workflow = vote.New(engine, services.Ledger,
		vote.WithMaxConcurrentProofs(cfg.Prover.MaxConcurrent))

	log.Infow("starting tally monitor", "interval", cfg.Monitor.Interval.String())
	services.Monitor = service.NewTallyMonitor(services.Ledger, cfg.Monitor.Interval)
	if err := services.Monitor.Start(ctx); err != nil {
		return services, fmt.Errorf("failed to start tally monitor: %w", err)
	}

	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(services.Workflow, cfg.API.Host, cfg.API.Port, cfg.Log.DisableAPI)
	var records api.RecordReader
	if services.Storage != nil {
		records = services.Storage
	}
	var accounts api.AccountLister
	if l, ok := services.Ledger.(*web3.Ledger); ok {
		accounts = l
	}
	services.API.SetLedgerInfo(records, accounts)
	if err := services.API.Start(ctx); err != nil {
		return services, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Infow("starkvote-node is running, ready to accept votes!", "ledger", cfg.Ledger.Type)
	return services, nil
}

func setupLocalLedger(cfg *Config, services *Services) (vote.Ledger, error) {
	dir := cfg.Datadir
	if cfg.DB.Type == db.TypeMongo {
		dir = "starkvote"
	}
	log.Infow("initializing storage", "datadir", dir, "type", cfg.DB.Type)
	database, err := metadb.New(cfg.DB.Type, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(database)

	if err := services.Storage.SetCandidates(cfg.Ledger.Candidates); err != nil {
		if !errors.Is(err, storage.ErrVotesAlreadyExist) {
			return nil, fmt.Errorf("failed to set candidates: %w", err)
		}
		log.Warnw("votes already recorded, keeping the stored candidates")
	}
	return services.Storage, nil
}

func setupWeb3Ledger(ctx context.Context, cfg *Config, services *Services) (vote.Ledger, error) {
	var key *ecdsa.PrivateKey
	if cfg.Web3.PrivKey != "" {
		var err error
		if key, err = crypto.HexToECDSA(util.TrimHex(cfg.Web3.PrivKey)); err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
	}
	if !common.IsHexAddress(cfg.Web3.Contract) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Web3.Contract)
	}

	log.Infow("connecting to web3 endpoints", "network", cfg.Web3.Network, "endpoints", cfg.Web3.Rpc)
	dialCtx, cancel := context.WithTimeout(ctx, config.DefaultRPCWait)
	defer cancel()
	chain, err := dialWhenReady(dialCtx, cfg.Web3.Rpc)
	if err != nil {
		return nil, err
	}
	services.Chain = chain

	ledger, err := web3.NewLedger(ctx, chain, web3.Config{
		Contract:   common.HexToAddress(cfg.Web3.Contract),
		ChainID:    chain.ChainID(),
		PrivateKey: key,
		GasLimit:   cfg.Web3.GasLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind contract: %w", err)
	}
	return ledger, nil
}

// dialWhenReady dials the endpoints until they answer or ctx is done.
func dialWhenReady(ctx context.Context, endpoints []string) (*rpc.Client, error) {
	for {
		chain, err := rpc.Dial(ctx, endpoints...)
		if err == nil {
			if err := web3.WaitReadyRPC(ctx, chain, config.DefaultRPCRetry); err != nil {
				chain.Close()
				return nil, err
			}
			return chain, nil
		}
		log.Warnw("web3 endpoints not ready", "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to web3 endpoints: %w", err)
		case <-time.After(config.DefaultRPCRetry):
		}
	}
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}

	// Stop services in reverse order of startup
	if services.API != nil {
		services.API.Stop()
	}
	if services.Monitor != nil {
		services.Monitor.Stop()
	}
	if services.Chain != nil {
		services.Chain.Close()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
