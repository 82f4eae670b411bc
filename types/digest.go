package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DigestLength is the size in bytes of a proof digest (keccak256).
const DigestLength = common.HashLength

// Digest is the fixed-width hash of the canonical encoding of a vote proof.
// It is the key under which a vote is recorded in the tally ledger.
type Digest [DigestLength]byte

// BytesToDigest copies b into a digest. It fails if b has the wrong length.
func BytesToDigest(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestLength {
		return d, fmt.Errorf("invalid digest length %d, expected %d", len(b), DigestLength)
	}
	copy(d[:], b)
	return d, nil
}

// HexToDigest decodes a 0x-prefixed (or bare) hex string into a digest.
func HexToDigest(s string) (Digest, error) {
	b, err := HexStringToHexBytes(s)
	if err != nil {
		return Digest{}, err
	}
	return BytesToDigest(b)
}

// Bytes returns a copy of the digest bytes.
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestLength)
	copy(out, d[:])
	return out
}

// Hash returns the digest as a go-ethereum hash, as used by the bytes32
// argument of the on-chain ledger.
func (d Digest) Hash() common.Hash {
	return common.Hash(d)
}

// IsZero reports whether the digest is all zeros.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// String returns the 0x-prefixed hex representation of the digest.
func (d Digest) String() string {
	return hexutil.Encode(d[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	dec, err := HexToDigest(string(text))
	if err != nil {
		return err
	}
	*d = dec
	return nil
}
