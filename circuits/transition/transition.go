// Package transition expresses the vote computation as a gnark constraint
// system. The prover checks every trace against it before committing to the
// trace, so a trace that does not follow the transition function or does not
// match the boundary assertions never gets a proof.
//
// Field elements of P = 2^32 - 3*2^25 + 1 are embedded in the BN254 scalar
// field. Reduction modulo P is made explicit with a boolean wrap witness per
// step: trace[i] + wrap[i-1]*P == trace[i-1] + 2.
package transition

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/vocdoni/starkvote/computation"
	"github.com/vocdoni/starkvote/crypto/field"
)

// Curve is the curve whose scalar field hosts the constraint system.
var Curve = ecc.BN254

// Circuit is the transition relation of the vote computation. Start and End
// are the asserted boundary values, Trace is the full execution trace and
// Wrap flags the steps where the addition overflows P.
type Circuit struct {
	Start frontend.Variable `gnark:",public"`
	End   frontend.Variable `gnark:",public"`
	Trace [computation.Steps]frontend.Variable
	Wrap  [computation.Steps - 1]frontend.Variable
}

// Define declares the circuit constraints.
func (c *Circuit) Define(api frontend.API) error {
	modulus := new(big.Int).SetUint64(field.Modulus)
	maxElement := new(big.Int).SetUint64(field.Modulus - 1)

	api.AssertIsEqual(c.Trace[0], c.Start)
	api.AssertIsEqual(c.Trace[computation.LastStep], c.End)
	for i := range c.Trace {
		api.AssertIsLessOrEqual(c.Trace[i], maxElement)
	}
	for i := 1; i < computation.Steps; i++ {
		api.AssertIsBoolean(c.Wrap[i-1])
		lhs := api.Add(c.Trace[i], api.Mul(c.Wrap[i-1], modulus))
		rhs := api.Add(c.Trace[i-1], computation.StepIncrement)
		api.AssertIsEqual(lhs, rhs)
	}
	return nil
}

// Assignment builds the full witness assignment for a trace and its
// assertions. It does not validate anything: a wrong trace produces an
// assignment that does not solve the circuit.
func Assignment(assertions computation.Assertions, trace *computation.Trace) *Circuit {
	a := &Circuit{
		Start: assertions.Start.Value.Uint64(),
		End:   assertions.End.Value.Uint64(),
	}
	for i := range trace {
		a.Trace[i] = trace[i].Uint64()
	}
	for i := 1; i < computation.Steps; i++ {
		if trace[i-1].Uint64()+computation.StepIncrement >= field.Modulus {
			a.Wrap[i-1] = 1
		} else {
			a.Wrap[i-1] = 0
		}
	}
	return a
}

var (
	compileOnce sync.Once
	compiledCCS constraint.ConstraintSystem
	compileErr  error
)

// Compile returns the constraint system of the circuit. It is compiled once
// per process and shared afterwards; the result is read-only.
func Compile() (constraint.ConstraintSystem, error) {
	compileOnce.Do(func() {
		compiledCCS, compileErr = frontend.Compile(Curve.ScalarField(), r1cs.NewBuilder, &Circuit{})
	})
	return compiledCCS, compileErr
}

// Check reports whether trace satisfies the transition relation and the
// boundary assertions.
func Check(assertions computation.Assertions, trace *computation.Trace) error {
	if trace == nil {
		return fmt.Errorf("nil trace")
	}
	ccs, err := Compile()
	if err != nil {
		return fmt.Errorf("compile transition circuit: %w", err)
	}
	w, err := frontend.NewWitness(Assignment(assertions, trace), Curve.ScalarField())
	if err != nil {
		return fmt.Errorf("build witness: %w", err)
	}
	if err := ccs.IsSolved(w); err != nil {
		return fmt.Errorf("transition constraints not satisfied: %w", err)
	}
	return nil
}
