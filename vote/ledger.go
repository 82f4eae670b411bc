package vote

import (
	"context"
	"errors"

	"github.com/vocdoni/starkvote/types"
)

// ErrDuplicateDigest is returned by a Ledger when a vote with the same digest
// has already been recorded.
var ErrDuplicateDigest = errors.New("digest already recorded")

// Ledger is the append-only tally that records accepted votes. Implementations
// own all shared state and must make Vote atomic: the digest uniqueness check,
// the record insert and the counter increment either all happen or none does.
type Ledger interface {
	// Candidates returns the candidate list with current tallies, in index
	// order.
	Candidates(ctx context.Context) ([]types.Candidate, error)
	// VoteCount returns the tally of the candidate at candidateIndex.
	VoteCount(ctx context.Context, candidateIndex int) (uint64, error)
	// Vote records digest as a vote for candidateIndex. It returns
	// ErrDuplicateDigest if the digest is already recorded.
	Vote(ctx context.Context, digest types.Digest, candidateIndex int, submitter types.HexBytes) error
}
