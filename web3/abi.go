package web3

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// secureVotingABI is the interface of the SecureVoting tally contract.
const secureVotingABI = `[
  {"type":"function","name":"getCandidates","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"name","type":"string"},{"name":"voteCount","type":"uint256"}]}]},
  {"type":"function","name":"getVoteCount","stateMutability":"view",
   "inputs":[{"name":"candidateIndex","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"usedProofs","stateMutability":"view",
   "inputs":[{"name":"","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"vote","stateMutability":"nonpayable",
   "inputs":[{"name":"proofHash","type":"bytes32"},{"name":"candidateIndex","type":"uint256"}],
   "outputs":[]}
]`

const (
	methodGetCandidates = "getCandidates"
	methodGetVoteCount  = "getVoteCount"
	methodUsedProofs    = "usedProofs"
	methodVote          = "vote"
)

// contractCandidate mirrors the candidate tuple returned by getCandidates.
type contractCandidate struct {
	Name      string
	VoteCount *big.Int
}

// SecureVotingABI returns the parsed contract ABI.
func SecureVotingABI() (*abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(secureVotingABI))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
