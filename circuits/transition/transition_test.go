package transition

import (
	"testing"

	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/starkvote/computation"
	"github.com/vocdoni/starkvote/crypto/field"
)

func TestCircuitIsSolved(t *testing.T) {
	c := qt.New(t)

	for _, secret := range []uint64{0, 42, field.Modulus - 1} {
		s := field.New(secret)
		tr := computation.ComputeTrace(s)
		a := computation.BuildAssertions(s)
		c.Assert(test.IsSolved(&Circuit{}, Assignment(a, &tr), Curve.ScalarField()), qt.IsNil,
			qt.Commentf("secret %d", secret))
	}
}

func TestCheck(t *testing.T) {
	c := qt.New(t)

	s := field.New(field.Modulus - 3)
	tr := computation.ComputeTrace(s)
	a := computation.BuildAssertions(s)
	c.Assert(Check(a, &tr), qt.IsNil)

	// broken transition
	bad := tr
	bad[20] = bad[20].AddUint64(1)
	c.Assert(Check(a, &bad), qt.IsNotNil)

	// end assertion not matching the trace
	wrongEnd := a
	wrongEnd.End.Value = wrongEnd.End.Value.AddUint64(2)
	c.Assert(Check(wrongEnd, &tr), qt.IsNotNil)

	// values outside the field are rejected even if they follow x+2
	var wide computation.Trace
	for i := range wide {
		wide[i] = field.Element(field.Modulus + uint64(2*i))
	}
	wa := computation.Assertions{
		Start: computation.Assertion{Step: 0, Value: wide[0]},
		End:   computation.Assertion{Step: computation.LastStep, Value: wide[computation.LastStep]},
	}
	c.Assert(Check(wa, &wide), qt.IsNotNil)

	c.Assert(Check(a, nil), qt.IsNotNil)
}
