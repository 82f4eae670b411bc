package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/starkvote/config"
	"github.com/vocdoni/starkvote/db"
	"github.com/vocdoni/starkvote/prover"
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	Datadir string
	DB      DBConfig
	API     APIConfig
	Log     LogConfig
	Ledger  LedgerConfig
	Web3    Web3Config
	Prover  ProverConfig
	Monitor MonitorConfig
}

// DBConfig holds the database configuration
type DBConfig struct {
	Type string `mapstructure:"type"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Output     string `mapstructure:"output"`
	DisableAPI bool   `mapstructure:"disableAPI"`
}

// LedgerConfig selects where votes are tallied
type LedgerConfig struct {
	Type       string   `mapstructure:"type"`
	Candidates []string `mapstructure:"candidates"`
}

// Web3Config holds the chain configuration of the web3 ledger
type Web3Config struct {
	Network  string   `mapstructure:"network"`
	Rpc      []string `mapstructure:"rpc"`
	Contract string   `mapstructure:"contract"`
	PrivKey  string   `mapstructure:"privkey"`
	GasLimit uint64   `mapstructure:"gasLimit"`
}

// ProverConfig holds the proof engine configuration
type ProverConfig struct {
	Queries       int `mapstructure:"queries"`
	MaxConcurrent int `mapstructure:"maxConcurrent"`
}

// MonitorConfig holds the tally monitor configuration
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig(args []string) (*Config, error) {
	v := viper.New()
	fs := flag.NewFlagSet("starkvote-node", flag.ContinueOnError)

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, config.DefaultDatadir)

	fs.StringP("datadir", "d", defaultDatadirPath, "data directory for database files")
	fs.String("db.type", config.DefaultDBType,
		fmt.Sprintf("database type (%s, %s, %s, %s)", db.TypePebble, db.TypeLevelDB, db.TypeMongo, db.TypeInMem))
	fs.StringP("api.host", "a", config.DefaultAPIHost, "API host")
	fs.IntP("api.port", "p", config.DefaultAPIPort, "API port")
	fs.StringP("log.level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringP("log.output", "o", config.DefaultLogOutput, "log output (stdout, stderr or filepath)")
	fs.Bool("log.disableAPI", false, "disable API request logging")
	fs.String("ledger.type", config.DefaultLedgerType, fmt.Sprintf("ledger type %v", config.LedgerTypes))
	fs.StringSlice("ledger.candidates", config.DefaultCandidates, "candidates of the local ledger, comma-separated")
	fs.StringP("web3.network", "n", config.DefaultNetwork, fmt.Sprintf("network to use %v", config.AvailableNetworks()))
	fs.StringSliceP("web3.rpc", "w", []string{}, "web3 rpc endpoint(s), comma-separated (overrides network default)")
	fs.String("web3.contract", "", "SecureVoting contract address (overrides network default)")
	fs.StringP("web3.privkey", "k", "", "private key signing vote transactions; without it votes are sent from unlocked node accounts")
	fs.Uint64("web3.gasLimit", config.DefaultGasLimit, "gas limit of vote transactions")
	fs.Int("prover.queries", prover.DefaultQueries, "number of queried trace positions per proof")
	fs.Int("prover.maxConcurrent", runtime.NumCPU(), "maximum number of proofs generated at once")
	fs.Duration("monitor.interval", config.DefaultTallyInterval, "tally monitor polling interval")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "starkvote-node %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: starkvote-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, STARKVOTE_WEB3_PRIVKEY or STARKVOTE_API_PORT\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Local ledger with the default candidates\n")
		fmt.Fprintf(os.Stderr, "  starkvote-node\n\n")
		fmt.Fprintf(os.Stderr, "  # On-chain ledger on a local node\n")
		fmt.Fprintf(os.Stderr, "  starkvote-node --ledger.type=web3 --web3.contract=0x5FbD...\n")
	}

	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("STARKVOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration and fills the network
// defaults of the web3 ledger
func validateConfig(cfg *Config) error {
	if !slices.Contains(config.LedgerTypes, cfg.Ledger.Type) {
		return fmt.Errorf("invalid ledger type %q, available types: %v", cfg.Ledger.Type, config.LedgerTypes)
	}
	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}
	if cfg.Prover.Queries <= 0 {
		return fmt.Errorf("prover queries must be positive")
	}
	if cfg.Prover.MaxConcurrent <= 0 {
		return fmt.Errorf("prover max concurrent proofs must be positive")
	}

	switch cfg.Ledger.Type {
	case config.LedgerLocal:
		if len(cfg.Ledger.Candidates) == 0 {
			return fmt.Errorf("the local ledger needs at least one candidate")
		}
	case config.LedgerWeb3:
		network, ok := config.DefaultConfig[cfg.Web3.Network]
		if !ok && (len(cfg.Web3.Rpc) == 0 || cfg.Web3.Contract == "") {
			return fmt.Errorf("unknown network %s, available networks: %v (or set web3.rpc and web3.contract)",
				cfg.Web3.Network, config.AvailableNetworks())
		}
		if len(cfg.Web3.Rpc) == 0 {
			cfg.Web3.Rpc = network.RPC
		}
		if cfg.Web3.Contract == "" {
			cfg.Web3.Contract = network.SecureVotingContract
		}
		if cfg.Web3.Contract == "" {
			return fmt.Errorf("contract address is required (use --web3.contract flag or STARKVOTE_WEB3_CONTRACT environment variable)")
		}
		if cfg.Web3.GasLimit == 0 {
			return fmt.Errorf("gas limit must be positive")
		}
	}
	return nil
}
