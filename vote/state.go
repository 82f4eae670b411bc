package vote

import (
	"github.com/google/uuid"
	"github.com/vocdoni/starkvote/types"
)

// State is the position of a vote request in the commitment workflow.
type State int

const (
	StateReceived State = iota
	StateTraceBuilt
	StateProofGenerated
	StateLocallyVerified
	StateCommitted
	StateRejected
)

var stateNames = map[State]string{
	StateReceived:        "RECEIVED",
	StateTraceBuilt:      "TRACE_BUILT",
	StateProofGenerated:  "PROOF_GENERATED",
	StateLocallyVerified: "LOCALLY_VERIFIED",
	StateCommitted:       "COMMITTED",
	StateRejected:        "REJECTED",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Final reports whether no further transition is possible from s.
func (s State) Final() bool {
	return s == StateCommitted || s == StateRejected
}

// Request is a vote submitted to the workflow.
type Request struct {
	// VoterID is the voter secret. It never leaves the workflow and is never
	// logged.
	VoterID        *types.VoterID
	CandidateIndex int
	// Submitter is the account that pays for the ledger submission, if the
	// ledger needs one.
	Submitter types.HexBytes
}

// Result reports the outcome of a vote request. Digest is set once the proof
// has been committed to, even if the ledger later rejects it.
type Result struct {
	RequestID      uuid.UUID
	State          State
	Digest         types.Digest
	CandidateIndex int
}
