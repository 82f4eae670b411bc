package prover

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/accumulator/merkletree"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/starkvote/circuits/transition"
	"github.com/vocdoni/starkvote/computation"
	"github.com/vocdoni/starkvote/crypto/field"
	"github.com/vocdoni/starkvote/log"
)

const (
	// DefaultQueries is the number of transition spot checks of a proof.
	DefaultQueries = 16
	// MaxQueries is the number of transitions of the trace.
	MaxQueries = computation.LastStep

	lastStep    = uint32(computation.LastStep)
	merkleDepth = 6 // log2(computation.Steps)
	rootSize    = 32
	leafSize    = 8
)

// TraceEngine proves the vote computation by committing to the whole trace
// in a keccak256 Merkle tree and opening the boundary rows plus a set of
// transitions selected by a Fiat-Shamir transcript. Proofs are deterministic.
type TraceEngine struct {
	queries         int
	constraintCheck bool
}

// Option configures a TraceEngine.
type Option func(*TraceEngine)

// WithQueries sets the number of transitions opened by each proof. It must
// be between 1 and MaxQueries.
func WithQueries(n int) Option {
	return func(e *TraceEngine) {
		e.queries = n
	}
}

// WithConstraintCheck enables or disables checking every trace against the
// gnark transition circuit before proving. It is enabled by default.
func WithConstraintCheck(enabled bool) Option {
	return func(e *TraceEngine) {
		e.constraintCheck = enabled
	}
}

// NewTraceEngine returns a TraceEngine configured with opts.
func NewTraceEngine(opts ...Option) (*TraceEngine, error) {
	e := &TraceEngine{
		queries:         DefaultQueries,
		constraintCheck: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.queries < 1 || e.queries > MaxQueries {
		return nil, fmt.Errorf("invalid number of queries %d, must be in [1, %d]", e.queries, MaxQueries)
	}
	return e, nil
}

// Queries returns the number of transitions opened by each proof.
func (e *TraceEngine) Queries() int {
	return e.queries
}

// Prove implements Engine.
func (e *TraceEngine) Prove(assertions computation.Assertions, trace *computation.Trace) (*Proof, error) {
	startTime := time.Now()
	if trace == nil {
		return nil, fmt.Errorf("%w: nil trace", ErrProofGeneration)
	}
	if err := computation.CheckTrace(trace, assertions); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProofGeneration, err)
	}
	if e.constraintCheck {
		if err := transition.Check(assertions, trace); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProofGeneration, err)
		}
	}

	root := traceRoot(trace)
	queries := queryPositions(transcriptSeed(uint32(e.queries), assertions, root), e.queries)
	steps := openingSteps(queries)

	proof := &Proof{
		Version:   ProofVersion,
		Steps:     computation.Steps,
		Queries:   uint32(e.queries),
		TraceRoot: root,
		Openings:  make([]Opening, 0, len(steps)),
	}
	for _, step := range steps {
		path, err := openTrace(trace, step)
		if err != nil {
			return nil, fmt.Errorf("%w: open step %d: %w", ErrProofGeneration, step, err)
		}
		proof.Openings = append(proof.Openings, Opening{
			Step:  step,
			Value: trace[step].Uint64(),
			Path:  path,
		})
	}
	log.Debugw("trace proof generated",
		"queries", e.queries,
		"openings", len(proof.Openings),
		"took", time.Since(startTime).String())
	return proof, nil
}

// Verify implements Engine.
func (e *TraceEngine) Verify(assertions computation.Assertions, proof *Proof) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Debugw("trace proof verification panicked", "recovered", fmt.Sprint(r))
			valid = false
		}
	}()
	if proof == nil {
		return false
	}
	if err := assertions.Validate(); err != nil {
		return false
	}
	// the computation is public, so the end value is fully determined by the
	// start value
	if computation.BuildAssertions(assertions.Start.Value).End.Value != assertions.End.Value {
		return false
	}
	if proof.Version != ProofVersion ||
		proof.Steps != computation.Steps ||
		proof.Queries != uint32(e.queries) ||
		len(proof.TraceRoot) != rootSize {
		return false
	}

	queries := queryPositions(transcriptSeed(proof.Queries, assertions, proof.TraceRoot), e.queries)
	steps := openingSteps(queries)
	if len(proof.Openings) != len(steps) {
		return false
	}
	values := make(map[uint32]field.Element, len(steps))
	for i, o := range proof.Openings {
		if o.Step != steps[i] || len(o.Path) != merkleDepth {
			return false
		}
		v := field.Element(o.Value)
		if !v.IsCanonical() {
			return false
		}
		proofSet := make([][]byte, 0, merkleDepth+1)
		proofSet = append(proofSet, leafData(o.Step, v))
		proofSet = append(proofSet, o.Path...)
		if !merkletree.VerifyProof(ethcrypto.NewKeccakState(), proof.TraceRoot, proofSet, uint64(o.Step), computation.Steps) {
			return false
		}
		values[o.Step] = v
	}

	if values[0] != assertions.Start.Value || values[lastStep] != assertions.End.Value {
		return false
	}
	for _, q := range queries {
		if computation.Transition(values[q]) != values[q+1] {
			return false
		}
	}
	return true
}

// leafData is the Merkle leaf of a trace row: step and value, both 4-byte
// big-endian.
func leafData(step uint32, v field.Element) []byte {
	leaf := make([]byte, leafSize)
	binary.BigEndian.PutUint32(leaf[:4], step)
	copy(leaf[4:], v.Bytes())
	return leaf
}

func traceRoot(trace *computation.Trace) []byte {
	tree := merkletree.New(ethcrypto.NewKeccakState())
	for i := range trace {
		tree.Push(leafData(uint32(i), trace[i]))
	}
	return tree.Root()
}

// openTrace returns the authentication path of a trace row, without the
// leaf itself.
func openTrace(trace *computation.Trace, step uint32) ([][]byte, error) {
	tree := merkletree.New(ethcrypto.NewKeccakState())
	if err := tree.SetIndex(uint64(step)); err != nil {
		return nil, err
	}
	for i := range trace {
		tree.Push(leafData(uint32(i), trace[i]))
	}
	_, proofSet, _, _ := tree.Prove()
	if len(proofSet) != merkleDepth+1 {
		return nil, fmt.Errorf("unexpected proof set length %d", len(proofSet))
	}
	return proofSet[1:], nil
}
