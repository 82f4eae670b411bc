// Package config holds the default settings of the starkvote node.
package config

import "time"

const (
	DefaultAPIHost       = "0.0.0.0"
	DefaultAPIPort       = 5000
	DefaultLogLevel      = "info"
	DefaultLogOutput     = "stdout"
	DefaultDatadir       = ".starkvote" // relative to the user home
	DefaultDBType        = "pebble"
	DefaultLedgerType    = LedgerLocal
	DefaultGasLimit      = 9_000_000
	DefaultNetwork       = "local"
	DefaultTallyInterval = 30 * time.Second
	DefaultRPCRetry      = 2 * time.Second
	DefaultRPCWait       = 2 * time.Minute
)

// Ledger types.
const (
	LedgerLocal = "local"
	LedgerWeb3  = "web3"
)

// DefaultCandidates is the candidate list of a fresh local ledger.
var DefaultCandidates = []string{"Alice", "Bob", "Charlie"}

// LedgerTypes lists the supported ledger types.
var LedgerTypes = []string{LedgerLocal, LedgerWeb3}
