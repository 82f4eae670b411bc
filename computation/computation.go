// Package computation describes the program whose execution is attested by a
// vote proof: a single register that starts at a secret value and is
// incremented by a constant for a fixed number of steps over the field P.
//
// The trace and the boundary assertions are both derived from the constants
// in this package, so they can never diverge.
package computation

import (
	"errors"
	"fmt"

	"github.com/vocdoni/starkvote/crypto/field"
)

const (
	// Register is the index of the only register of the computation.
	Register = 0
	// Steps is the length of the execution trace.
	Steps = 64
	// LastStep is the index of the last row of the trace.
	LastStep = Steps - 1
	// StepIncrement is the constant added to the register at each step.
	StepIncrement = 2
	// EndOffset is the total amount added between the first and last step.
	EndOffset = StepIncrement * LastStep
)

var (
	// ErrBoundaryMismatch is returned when a trace does not match an assertion.
	ErrBoundaryMismatch = errors.New("trace does not satisfy boundary assertion")
	// ErrTransitionViolation is returned when two consecutive trace rows do not
	// follow the transition function.
	ErrTransitionViolation = errors.New("trace violates transition function")
	// ErrInvalidAssertion is returned for assertions that do not target the
	// canonical register and steps.
	ErrInvalidAssertion = errors.New("invalid assertion")
)

// Trace is the execution trace of the computation.
type Trace [Steps]field.Element

// Transition applies the step function x -> x + 2 (mod P).
func Transition(x field.Element) field.Element {
	return x.AddUint64(StepIncrement)
}

// ComputeTrace runs the computation starting at secret. It is total over the
// field: every element yields a valid trace.
func ComputeTrace(secret field.Element) Trace {
	var t Trace
	t[0] = secret.Reduce()
	for i := 1; i < Steps; i++ {
		t[i] = Transition(t[i-1])
	}
	return t
}

// Assertion binds a register value at a given step of the trace.
type Assertion struct {
	Register int           `json:"register"`
	Step     int           `json:"step"`
	Value    field.Element `json:"value"`
}

// String implements fmt.Stringer.
func (a Assertion) String() string {
	return fmt.Sprintf("r%d[%d]=%s", a.Register, a.Step, a.Value)
}

// Assertions are the boundary constraints of a single vote computation.
type Assertions struct {
	Start Assertion `json:"start"`
	End   Assertion `json:"end"`
}

// BuildAssertions returns the boundary assertions for secret: the register
// holds secret at step 0 and secret + 126 (mod P) at step 63.
func BuildAssertions(secret field.Element) Assertions {
	return Assertions{
		Start: Assertion{Register: Register, Step: 0, Value: secret.Reduce()},
		End:   Assertion{Register: Register, Step: LastStep, Value: secret.AddUint64(EndOffset)},
	}
}

// Slice returns the assertions ordered by step.
func (a Assertions) Slice() []Assertion {
	return []Assertion{a.Start, a.End}
}

// Validate checks that the assertions target the canonical register and
// steps and hold canonical field values. It does not check the relation
// between the start and end values, which is what a proof attests.
func (a Assertions) Validate() error {
	if a.Start.Register != Register || a.End.Register != Register {
		return fmt.Errorf("%w: register must be %d", ErrInvalidAssertion, Register)
	}
	if a.Start.Step != 0 {
		return fmt.Errorf("%w: start step %d, expected 0", ErrInvalidAssertion, a.Start.Step)
	}
	if a.End.Step != LastStep {
		return fmt.Errorf("%w: end step %d, expected %d", ErrInvalidAssertion, a.End.Step, LastStep)
	}
	if !a.Start.Value.IsCanonical() || !a.End.Value.IsCanonical() {
		return fmt.Errorf("%w: value out of field range", ErrInvalidAssertion)
	}
	return nil
}

// CheckTrace reports the first row of the trace that breaks the assertions or
// the transition function. Errors name the step but never the values, which
// derive from the voter secret.
func CheckTrace(t *Trace, a Assertions) error {
	if t == nil {
		return fmt.Errorf("nil trace")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	for _, as := range a.Slice() {
		if t[as.Step] != as.Value {
			return fmt.Errorf("%w: step %d", ErrBoundaryMismatch, as.Step)
		}
	}
	for i := 1; i < Steps; i++ {
		if !t[i].IsCanonical() || t[i] != Transition(t[i-1]) {
			return fmt.Errorf("%w: step %d", ErrTransitionViolation, i)
		}
	}
	return nil
}
