package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/starkvote/types"
)

// CandidateResponse is a candidate with its tally. The count is a decimal
// string, as the on-chain uint256 it mirrors.
type CandidateResponse struct {
	Name      string `json:"name"`
	VoteCount string `json:"voteCount"`
}

// VoteRequest is the body of POST /vote. Account is the address that
// submits the vote to an on-chain ledger.
type VoteRequest struct {
	Account        types.HexBytes       `json:"account,omitempty"`
	VoterID        *types.VoterID       `json:"voterId"`
	CandidateIndex types.CandidateIndex `json:"candidateIndex"`
}

// VoteResponse is the answer to POST /vote, for accepted and rejected votes.
type VoteResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Digest    string `json:"digest,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	State     string `json:"state,omitempty"`
	Code      int    `json:"code,omitempty"`
}

// VoteCountResponse is the answer to GET /votes/{candidateIndex}.
type VoteCountResponse struct {
	CandidateIndex int    `json:"candidateIndex"`
	Count          string `json:"count"`
}

// AccountsResponse is the answer to GET /accounts.
type AccountsResponse struct {
	Success  bool             `json:"success"`
	Accounts []common.Address `json:"accounts"`
}

// VerifyProofRequest is the body of POST /proofs/verify.
type VerifyProofRequest struct {
	VoterID *types.VoterID `json:"voterId"`
	Proof   types.HexBytes `json:"proof"`
}

// VerifyProofResponse is the answer to POST /proofs/verify. Digest is only
// set for valid proofs.
type VerifyProofResponse struct {
	Valid  bool          `json:"valid"`
	Digest *types.Digest `json:"digest,omitempty"`
}
