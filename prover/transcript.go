package prover

import (
	"encoding/binary"
	"slices"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/starkvote/computation"
)

var transcriptDomain = []byte("starkvote/trace-proof/v1")

// transcriptSeed binds the proof parameters, the public assertions and the
// trace commitment. Query positions are derived from it, so the prover cannot
// choose them after seeing the commitment.
func transcriptSeed(queries uint32, assertions computation.Assertions, root []byte) []byte {
	var params [9]byte
	params[0] = ProofVersion
	binary.BigEndian.PutUint32(params[1:5], computation.Steps)
	binary.BigEndian.PutUint32(params[5:9], queries)
	return ethcrypto.Keccak256(
		transcriptDomain,
		params[:],
		assertions.Start.Value.Bytes(),
		assertions.End.Value.Bytes(),
		root,
	)
}

// queryPositions squeezes n distinct transition positions in [0, 63) from
// the transcript seed, sorted in ascending order.
func queryPositions(seed []byte, n int) []uint32 {
	positions := make([]uint32, 0, n)
	seen := make(map[uint32]bool, n)
	var ctr [4]byte
	for i := uint32(0); len(positions) < n; i++ {
		binary.BigEndian.PutUint32(ctr[:], i)
		h := ethcrypto.Keccak256(seed, ctr[:])
		q := uint32(binary.BigEndian.Uint64(h[:8]) % uint64(lastStep))
		if seen[q] {
			continue
		}
		seen[q] = true
		positions = append(positions, q)
	}
	slices.Sort(positions)
	return positions
}
