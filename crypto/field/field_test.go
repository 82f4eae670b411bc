package field

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/holiman/uint256"
)

func TestModulus(t *testing.T) {
	c := qt.New(t)
	c.Assert(Modulus, qt.Equals, uint64(4194304001))
	p, ok := new(big.Int).SetString("4194304001", 10)
	c.Assert(ok, qt.IsTrue)
	c.Assert(p.ProbablyPrime(20), qt.IsTrue)
}

func TestAdd(t *testing.T) {
	c := qt.New(t)

	c.Assert(New(1).Add(New(2)), qt.Equals, Element(3))
	c.Assert(New(Modulus-1).AddUint64(1), qt.Equals, Zero)
	c.Assert(New(Modulus-1).AddUint64(2), qt.Equals, Element(1))
	c.Assert(New(Modulus-2).AddUint64(126), qt.Equals, Element(124))
	// non-canonical operands are reduced first
	c.Assert(Element(Modulus+5).Add(Element(1)), qt.Equals, Element(6))
}

func TestReduceFromWideIntegers(t *testing.T) {
	c := qt.New(t)

	c.Assert(New(Modulus), qt.Equals, Zero)
	c.Assert(FromUint256(uint256.NewInt(Modulus+42)), qt.Equals, Element(42))
	c.Assert(FromUint256(nil), qt.Equals, Zero)

	maxU256 := new(uint256.Int).SetAllOne()
	want := new(big.Int).Mod(maxU256.ToBig(), new(big.Int).SetUint64(Modulus))
	c.Assert(FromUint256(maxU256).Uint64(), qt.Equals, want.Uint64())

	c.Assert(FromBig(big.NewInt(-1)), qt.Equals, Element(Modulus-1))
	c.Assert(FromBig(nil), qt.Equals, Zero)
}

func TestBytes(t *testing.T) {
	c := qt.New(t)

	e := New(0xdeadbeef % Modulus)
	dec, err := FromBytes(e.Bytes())
	c.Assert(err, qt.IsNil)
	c.Assert(dec, qt.Equals, e)

	_, err = FromBytes([]byte{0xff, 0xff, 0xff, 0xff})
	c.Assert(err, qt.ErrorMatches, ".*not a canonical field element")

	_, err = FromBytes([]byte{0x01})
	c.Assert(err, qt.ErrorMatches, "invalid element length.*")
}
