package prover

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ProofVersion is the current proof format version.
const ProofVersion = 1

// maxProofSize bounds the size of serialized proofs accepted by Unmarshal.
const maxProofSize = 64 << 10

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements:  1024,
		MaxNestedLevels:   8,
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		TagsMd:            cbor.TagsForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decoder: %v", err))
	}
}

// Opening reveals one trace row together with its Merkle authentication path
// against the trace root. The leaf itself is rebuilt from Step and Value.
type Opening struct {
	_     struct{} `cbor:",toarray"`
	Step  uint32
	Value uint64
	Path  [][]byte
}

// Proof attests that a committed trace satisfies the boundary assertions of
// the vote computation. The encoding is positional (CBOR arrays) so that the
// serialized form is canonical.
type Proof struct {
	_         struct{} `cbor:",toarray"`
	Version   uint8
	Steps     uint32
	Queries   uint32
	TraceRoot []byte
	Openings  []Opening
}

// Marshal returns the canonical CBOR encoding of the proof.
func (p *Proof) Marshal() ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil proof")
	}
	return encMode.Marshal(p)
}

// Unmarshal decodes a serialized proof. It fails with ErrMalformedProof if
// the input is not the canonical encoding of a proof.
func Unmarshal(raw []byte) (*Proof, error) {
	if len(raw) == 0 || len(raw) > maxProofSize {
		return nil, fmt.Errorf("%w: invalid size %d", ErrMalformedProof, len(raw))
	}
	p := &Proof{}
	if err := decMode.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	canonical, err := p.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	if !bytes.Equal(canonical, raw) {
		return nil, fmt.Errorf("%w: non canonical encoding", ErrMalformedProof)
	}
	return p, nil
}

// openingSteps returns the sorted trace rows revealed by a proof with the
// given query positions: both boundary rows plus each queried row and its
// successor.
func openingSteps(queries []uint32) []uint32 {
	seen := make(map[uint32]bool, 2*len(queries)+2)
	add := func(s uint32) { seen[s] = true }
	add(0)
	add(lastStep)
	for _, q := range queries {
		add(q)
		add(q + 1)
	}
	steps := make([]uint32, 0, len(seen))
	for s := uint32(0); s <= lastStep; s++ {
		if seen[s] {
			steps = append(steps, s)
		}
	}
	return steps
}
