// Package prover generates and checks proofs that a vote computation trace
// satisfies its boundary assertions.
package prover

import (
	"errors"

	"github.com/vocdoni/starkvote/computation"
)

var (
	// ErrProofGeneration is returned when a proof cannot be built for the
	// given trace and assertions.
	ErrProofGeneration = errors.New("proof generation failed")
	// ErrMalformedProof is returned when a serialized proof cannot be decoded
	// or is not in canonical form.
	ErrMalformedProof = errors.New("malformed proof")
)

// Engine is a proof system for the vote computation. Implementations must be
// deterministic: equal inputs produce byte-identical proofs, so that proof
// digests are reproducible.
type Engine interface {
	// Prove builds a proof that trace satisfies assertions. Errors wrap
	// ErrProofGeneration.
	Prove(assertions computation.Assertions, trace *computation.Trace) (*Proof, error)
	// Verify reports whether proof attests assertions. It never panics and
	// returns false for any malformed input.
	Verify(assertions computation.Assertions, proof *Proof) bool
}

// VerifyBytes decodes a serialized proof and verifies it against assertions.
// Proofs that do not use the canonical encoding are rejected, so any change
// to the bytes of a valid proof yields false.
func VerifyBytes(e Engine, assertions computation.Assertions, raw []byte) bool {
	p, err := Unmarshal(raw)
	if err != nil {
		return false
	}
	return e.Verify(assertions, p)
}
