package config

import (
	"maps"
	"slices"
)

// NetworkConfig holds the chain defaults of a network.
type NetworkConfig struct {
	ChainID uint64
	RPC     []string
	// SecureVotingContract is the default contract address, empty when it
	// has to be deployed first.
	SecureVotingContract string
}

// DefaultConfig contains the defaults by network name.
var DefaultConfig = map[string]NetworkConfig{
	"local": {
		ChainID: 1337,
		RPC:     []string{"http://127.0.0.1:8545"},
	},
	"hardhat": {
		ChainID: 31337,
		RPC:     []string{"http://127.0.0.1:8545"},
	},
}

// AvailableNetworks returns the sorted names of the known networks.
func AvailableNetworks() []string {
	return slices.Sorted(maps.Keys(DefaultConfig))
}
