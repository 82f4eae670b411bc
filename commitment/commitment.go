// Package commitment derives the public digest of a vote proof. The digest
// is the keccak256 hash of the canonical proof encoding and is the only
// artifact of a vote that reaches the tally ledger.
package commitment

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/starkvote/prover"
	"github.com/vocdoni/starkvote/types"
)

// Commit serializes proof canonically and returns its digest. Equal proofs
// always yield equal digests.
func Commit(proof *prover.Proof) (types.Digest, error) {
	raw, err := proof.Marshal()
	if err != nil {
		return types.Digest{}, fmt.Errorf("serialize proof: %w", err)
	}
	return CommitBytes(raw), nil
}

// CommitBytes returns the digest of an already serialized proof.
func CommitBytes(raw []byte) types.Digest {
	return types.Digest(ethcrypto.Keccak256Hash(raw))
}

// Canonicalize decodes a serialized proof and returns its canonical encoding
// and digest. Non canonical input is rejected.
func Canonicalize(raw []byte) ([]byte, types.Digest, error) {
	p, err := prover.Unmarshal(raw)
	if err != nil {
		return nil, types.Digest{}, err
	}
	canonical, err := p.Marshal()
	if err != nil {
		return nil, types.Digest{}, fmt.Errorf("serialize proof: %w", err)
	}
	return canonical, CommitBytes(canonical), nil
}
