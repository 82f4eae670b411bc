package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/vocdoni/starkvote/crypto/field"
)

// VoterID is the secret identifier a voter supplies with a vote. It is an
// unsigned integer of up to 256 bits, accepted in JSON either as a number or
// as a decimal or 0x-prefixed hexadecimal string. Its value is only ever used
// reduced modulo the field prime.
type VoterID struct {
	v uint256.Int
}

// NewVoterID returns a voter identifier holding v.
func NewVoterID(v uint64) *VoterID {
	id := &VoterID{}
	id.v.SetUint64(v)
	return id
}

// ParseVoterID parses a decimal or 0x-prefixed hexadecimal identifier.
func ParseVoterID(s string) (*VoterID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty voter identifier")
	}
	id := &VoterID{}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex voter identifier %q", s)
		}
		u, overflow := uint256.FromBig(b)
		if overflow {
			return nil, fmt.Errorf("voter identifier exceeds 256 bits")
		}
		id.v.Set(u)
		return id, nil
	}
	u, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid voter identifier %q: %w", s, err)
	}
	id.v.Set(u)
	return id, nil
}

// Element returns the identifier reduced modulo the field prime. This is the
// secret input of the vote computation.
func (id *VoterID) Element() field.Element {
	if id == nil {
		return field.Zero
	}
	return field.FromUint256(&id.v)
}

// String returns the decimal representation of the identifier.
func (id *VoterID) String() string {
	if id == nil {
		return "0"
	}
	return id.v.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (id *VoterID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *VoterID) UnmarshalText(text []byte) error {
	parsed, err := ParseVoterID(string(text))
	if err != nil {
		return err
	}
	id.v.Set(&parsed.v)
	return nil
}

// UnmarshalJSON accepts both quoted and bare numeric identifiers.
func (id *VoterID) UnmarshalJSON(data []byte) error {
	if len(data) > 1 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	if string(data) == "null" {
		return fmt.Errorf("missing voter identifier")
	}
	return id.UnmarshalText(data)
}
