package main

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/starkvote/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	c := qt.New(t)
	cfg, err := loadConfig(nil)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.API.Port, qt.Equals, config.DefaultAPIPort)
	c.Assert(cfg.Ledger.Type, qt.Equals, config.LedgerLocal)
	c.Assert(cfg.Ledger.Candidates, qt.DeepEquals, []string{"Alice", "Bob", "Charlie"})
	c.Assert(cfg.Web3.GasLimit, qt.Equals, uint64(9_000_000))
	c.Assert(cfg.DB.Type, qt.Equals, "pebble")
	c.Assert(cfg.Monitor.Interval, qt.Equals, config.DefaultTallyInterval)
	c.Assert(validateConfig(cfg), qt.IsNil)
}

func TestLoadConfigFlagsAndEnv(t *testing.T) {
	c := qt.New(t)
	t.Setenv("STARKVOTE_API_PORT", "6000")
	t.Setenv("STARKVOTE_WEB3_CONTRACT", "0x5FbDB2315678afecb367f032d93F642f64180aa3")

	cfg, err := loadConfig([]string{
		"--ledger.type=web3",
		"--ledger.candidates=Dave,Eve",
		"--monitor.interval=5s",
		"-l", "debug",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.API.Port, qt.Equals, 6000)
	c.Assert(cfg.Ledger.Type, qt.Equals, config.LedgerWeb3)
	c.Assert(cfg.Ledger.Candidates, qt.DeepEquals, []string{"Dave", "Eve"})
	c.Assert(cfg.Log.Level, qt.Equals, "debug")
	c.Assert(cfg.Monitor.Interval, qt.Equals, 5*time.Second)

	c.Assert(validateConfig(cfg), qt.IsNil)
	c.Assert(cfg.Web3.Rpc, qt.DeepEquals, config.DefaultConfig[config.DefaultNetwork].RPC)
	c.Assert(cfg.Web3.Contract, qt.Equals, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
}

func TestValidateConfig(t *testing.T) {
	c := qt.New(t)
	valid := func() *Config {
		cfg, err := loadConfig(nil)
		c.Assert(err, qt.IsNil)
		return cfg
	}

	cfg := valid()
	cfg.Ledger.Type = "paper"
	c.Assert(validateConfig(cfg), qt.ErrorMatches, `invalid ledger type "paper".*`)

	cfg = valid()
	cfg.Ledger.Candidates = nil
	c.Assert(validateConfig(cfg), qt.ErrorMatches, ".*at least one candidate")

	cfg = valid()
	cfg.Prover.Queries = 0
	c.Assert(validateConfig(cfg), qt.IsNotNil)

	cfg = valid()
	cfg.Ledger.Type = config.LedgerWeb3
	c.Assert(validateConfig(cfg), qt.ErrorMatches, "contract address is required.*")

	cfg = valid()
	cfg.Ledger.Type = config.LedgerWeb3
	cfg.Web3.Network = "mars"
	c.Assert(validateConfig(cfg), qt.ErrorMatches, "unknown network mars.*")
	cfg.Web3.Rpc = []string{"http://10.0.0.1:8545"}
	cfg.Web3.Contract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	c.Assert(validateConfig(cfg), qt.IsNil)
}
