// Package field implements arithmetic over the 32-bit prime field used by the
// vote computation, P = 2^32 - 3*2^25 + 1.
package field

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
)

// Modulus is the field prime P = 2^32 - 3*2^25 + 1 = 4194304001.
const Modulus uint64 = 1<<32 - 3<<25 + 1

// ElementSize is the size in bytes of the canonical encoding of an element.
const ElementSize = 4

var (
	modulusU256 = uint256.NewInt(Modulus)
	modulusBig  = new(big.Int).SetUint64(Modulus)
)

// Element is a field element. Values produced by this package are always
// reduced, i.e. in the range [0, Modulus).
type Element uint64

// Zero is the additive identity.
const Zero Element = 0

// New returns v reduced modulo P.
func New(v uint64) Element {
	return Element(v % Modulus)
}

// FromUint256 reduces an unsigned 256-bit integer modulo P.
func FromUint256(x *uint256.Int) Element {
	if x == nil {
		return Zero
	}
	r := new(uint256.Int).Mod(x, modulusU256)
	return Element(r.Uint64())
}

// FromBig reduces a big integer modulo P. Negative values are mapped to their
// non-negative representative.
func FromBig(x *big.Int) Element {
	if x == nil {
		return Zero
	}
	r := new(big.Int).Mod(x, modulusBig)
	return Element(r.Uint64())
}

// FromBytes decodes the canonical big-endian encoding of an element. It
// rejects inputs with the wrong length or values not lower than P.
func FromBytes(b []byte) (Element, error) {
	if len(b) != ElementSize {
		return Zero, fmt.Errorf("invalid element length %d, expected %d", len(b), ElementSize)
	}
	v := uint64(binary.BigEndian.Uint32(b))
	if v >= Modulus {
		return Zero, fmt.Errorf("value %d is not a canonical field element", v)
	}
	return Element(v), nil
}

// Add returns e + o mod P.
func (e Element) Add(o Element) Element {
	s := uint64(e.Reduce()) + uint64(o.Reduce())
	if s >= Modulus {
		s -= Modulus
	}
	return Element(s)
}

// AddUint64 returns e + n mod P.
func (e Element) AddUint64(n uint64) Element {
	return e.Add(New(n))
}

// Reduce returns the canonical representative of e. Elements built through
// this package are already canonical; Reduce exists for values decoded from
// untrusted sources.
func (e Element) Reduce() Element {
	if uint64(e) < Modulus {
		return e
	}
	return Element(uint64(e) % Modulus)
}

// IsCanonical reports whether e is in [0, P).
func (e Element) IsCanonical() bool {
	return uint64(e) < Modulus
}

// Uint64 returns the element value.
func (e Element) Uint64() uint64 {
	return uint64(e)
}

// BigInt returns the element as a big integer.
func (e Element) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(e))
}

// Bytes returns the canonical 4-byte big-endian encoding of the element.
func (e Element) Bytes() []byte {
	out := make([]byte, ElementSize)
	binary.BigEndian.PutUint32(out, uint32(e.Reduce()))
	return out
}

// String returns the decimal representation of the element.
func (e Element) String() string {
	return strconv.FormatUint(uint64(e), 10)
}
