package prover

import (
	"bytes"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/starkvote/computation"
	"github.com/vocdoni/starkvote/crypto/field"
)

func newTestEngine(c *qt.C, opts ...Option) *TraceEngine {
	e, err := NewTraceEngine(opts...)
	c.Assert(err, qt.IsNil)
	return e
}

func proveSecret(c *qt.C, e Engine, secret uint64) (computation.Assertions, *Proof) {
	s := field.New(secret)
	trace := computation.ComputeTrace(s)
	a := computation.BuildAssertions(s)
	p, err := e.Prove(a, &trace)
	c.Assert(err, qt.IsNil)
	return a, p
}

func TestProveVerify(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c)

	for _, secret := range []uint64{0, 1, 42, 123456789, field.Modulus - 1, field.Modulus - 64} {
		a, p := proveSecret(c, e, secret)
		c.Assert(e.Verify(a, p), qt.IsTrue, qt.Commentf("secret %d", secret))
		c.Assert(p.Openings[0].Step, qt.Equals, uint32(0))
		c.Assert(p.Openings[len(p.Openings)-1].Step, qt.Equals, uint32(computation.LastStep))
	}
}

func TestProveDeterministic(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c)

	_, p1 := proveSecret(c, e, 777)
	_, p2 := proveSecret(c, e, 777)
	b1, err := p1.Marshal()
	c.Assert(err, qt.IsNil)
	b2, err := p2.Marshal()
	c.Assert(err, qt.IsNil)
	c.Assert(b1, qt.DeepEquals, b2)

	_, p3 := proveSecret(c, e, 778)
	b3, err := p3.Marshal()
	c.Assert(err, qt.IsNil)
	c.Assert(bytes.Equal(b1, b3), qt.IsFalse)
}

func TestProveRejectsInvalidTrace(t *testing.T) {
	c := qt.New(t)

	for _, e := range []*TraceEngine{
		newTestEngine(c),
		newTestEngine(c, WithConstraintCheck(false)),
	} {
		s := field.New(5)
		trace := computation.ComputeTrace(s)
		a := computation.BuildAssertions(s)

		bad := trace
		bad[10] = bad[10].AddUint64(1)
		_, err := e.Prove(a, &bad)
		c.Assert(errors.Is(err, ErrProofGeneration), qt.IsTrue)

		wrong := computation.BuildAssertions(field.New(6))
		_, err = e.Prove(wrong, &trace)
		c.Assert(errors.Is(err, ErrProofGeneration), qt.IsTrue)

		_, err = e.Prove(a, nil)
		c.Assert(errors.Is(err, ErrProofGeneration), qt.IsTrue)
	}
}

func TestVerifyRejectsOtherAssertions(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c)
	a, p := proveSecret(c, e, 100)

	other := computation.BuildAssertions(field.New(101))
	c.Assert(e.Verify(other, p), qt.IsFalse)

	mismatched := a
	mismatched.End.Value = mismatched.End.Value.AddUint64(2)
	c.Assert(e.Verify(mismatched, p), qt.IsFalse)

	badStep := a
	badStep.End.Step = 62
	c.Assert(e.Verify(badStep, p), qt.IsFalse)

	c.Assert(e.Verify(a, nil), qt.IsFalse)
}

func TestVerifyRejectsTamperedProof(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c)
	a, p := proveSecret(c, e, 9)

	tamper := func(f func(p *Proof)) *Proof {
		raw, err := p.Marshal()
		c.Assert(err, qt.IsNil)
		cp, err := Unmarshal(raw)
		c.Assert(err, qt.IsNil)
		f(cp)
		return cp
	}

	c.Assert(e.Verify(a, tamper(func(p *Proof) { p.Version++ })), qt.IsFalse)
	c.Assert(e.Verify(a, tamper(func(p *Proof) { p.Queries-- })), qt.IsFalse)
	c.Assert(e.Verify(a, tamper(func(p *Proof) { p.TraceRoot[0] ^= 1 })), qt.IsFalse)
	c.Assert(e.Verify(a, tamper(func(p *Proof) { p.TraceRoot = p.TraceRoot[:31] })), qt.IsFalse)
	c.Assert(e.Verify(a, tamper(func(p *Proof) { p.Openings[1].Value++ })), qt.IsFalse)
	c.Assert(e.Verify(a, tamper(func(p *Proof) { p.Openings[1].Path[2][5] ^= 0x80 })), qt.IsFalse)
	c.Assert(e.Verify(a, tamper(func(p *Proof) { p.Openings = p.Openings[1:] })), qt.IsFalse)
	c.Assert(e.Verify(a, tamper(func(p *Proof) { p.Openings[0].Path = nil })), qt.IsFalse)
	c.Assert(e.Verify(a, tamper(func(p *Proof) { p.Openings[0].Value = field.Modulus })), qt.IsFalse)

	// a proof built for a different number of queries is not accepted
	wide := newTestEngine(c, WithQueries(32))
	c.Assert(wide.Verify(a, p), qt.IsFalse)
}

func TestVerifyBytesRejectsEveryBitFlip(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, WithQueries(4))
	a, p := proveSecret(c, e, 31337)

	raw, err := p.Marshal()
	c.Assert(err, qt.IsNil)
	c.Assert(VerifyBytes(e, a, raw), qt.IsTrue)

	for i := range raw {
		mod := bytes.Clone(raw)
		mod[i] ^= 0x01
		c.Assert(VerifyBytes(e, a, mod), qt.IsFalse, qt.Commentf("byte %d", i))
	}
	c.Assert(VerifyBytes(e, a, nil), qt.IsFalse)
	c.Assert(VerifyBytes(e, a, raw[:len(raw)-1]), qt.IsFalse)
	c.Assert(VerifyBytes(e, a, append(bytes.Clone(raw), 0x00)), qt.IsFalse)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	c := qt.New(t)

	_, err := Unmarshal([]byte{0xff, 0x00, 0x13})
	c.Assert(errors.Is(err, ErrMalformedProof), qt.IsTrue)
	_, err = Unmarshal(make([]byte, maxProofSize+1))
	c.Assert(errors.Is(err, ErrMalformedProof), qt.IsTrue)
}

func TestNewTraceEngineQueries(t *testing.T) {
	c := qt.New(t)

	_, err := NewTraceEngine(WithQueries(0))
	c.Assert(err, qt.IsNotNil)
	_, err = NewTraceEngine(WithQueries(MaxQueries + 1))
	c.Assert(err, qt.IsNotNil)

	e := newTestEngine(c, WithQueries(MaxQueries))
	a, p := proveSecret(c, e, 2)
	c.Assert(e.Verify(a, p), qt.IsTrue)
	// every transition is opened
	c.Assert(p.Openings, qt.HasLen, computation.Steps)
}

func TestQueryPositions(t *testing.T) {
	c := qt.New(t)

	seed := []byte("seed")
	qs := queryPositions(seed, 20)
	c.Assert(qs, qt.HasLen, 20)
	for i, q := range qs {
		c.Assert(q < lastStep, qt.IsTrue)
		if i > 0 {
			c.Assert(qs[i-1] < q, qt.IsTrue)
		}
	}
	c.Assert(queryPositions(seed, 20), qt.DeepEquals, qs)

	// asking for every transition yields exactly [0, lastStep)
	all := queryPositions(seed, MaxQueries)
	c.Assert(all, qt.HasLen, int(lastStep))
	for i, q := range all {
		c.Assert(q, qt.Equals, uint32(i))
	}
	c.Assert(openingSteps([]uint32{0, 5, 62}), qt.DeepEquals, []uint32{0, 1, 5, 6, 62, 63})
}
