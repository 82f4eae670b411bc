// Package vote implements the vote commitment workflow: it turns a voter
// identifier and a candidate choice into a proof, checks the proof locally,
// and records only the proof digest in a tally ledger.
package vote

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/starkvote/commitment"
	"github.com/vocdoni/starkvote/computation"
	"github.com/vocdoni/starkvote/log"
	"github.com/vocdoni/starkvote/prover"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrMissingVoterID is returned when a request carries no voter identifier.
var ErrMissingVoterID = errors.New("missing voter identifier")

// Workflow drives vote requests through the commitment state machine. It
// keeps no state between requests and is safe for concurrent use.
type Workflow struct {
	engine    prover.Engine
	ledger    Ledger
	proofs    *semaphore.Weighted
	maxProofs int
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithMaxConcurrentProofs bounds the number of proofs generated and verified
// at the same time. Values lower than 1 are ignored.
func WithMaxConcurrentProofs(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxProofs = n
		}
	}
}

// New returns a workflow that proves with engine and records votes in ledger.
// By default up to runtime.NumCPU() proofs run in parallel.
func New(engine prover.Engine, ledger Ledger, opts ...Option) *Workflow {
	w := &Workflow{
		engine:    engine,
		ledger:    ledger,
		maxProofs: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.proofs = semaphore.NewWeighted(int64(w.maxProofs))
	return w
}

// Ledger returns the ledger the workflow records votes in.
func (w *Workflow) Ledger() Ledger {
	return w.ledger
}

// Engine returns the proof engine of the workflow.
func (w *Workflow) Engine() prover.Engine {
	return w.engine
}

// Submit runs req through the workflow. The returned result is never nil and
// reports the last state reached. On rejection the error is a *Error, except
// for context cancellation and missing identifiers which are returned as is.
// A request cancelled before COMMITTED has no effect on the ledger.
func (w *Workflow) Submit(ctx context.Context, req *Request) (*Result, error) {
	res := &Result{
		RequestID: uuid.New(),
		State:     StateReceived,
	}
	if req == nil {
		return w.reject(res, fmt.Errorf("nil request"))
	}
	res.CandidateIndex = req.CandidateIndex
	startTime := time.Now()
	w.transition(res)

	// RECEIVED
	candidates, err := w.ledger.Candidates(ctx)
	if err != nil {
		return w.reject(res, newError(ErrLedgerSubmissionFailed, err, "cannot fetch candidates"))
	}
	if req.CandidateIndex < 0 || req.CandidateIndex >= len(candidates) {
		return w.reject(res, newError(ErrInvalidCandidate, nil,
			"candidate index %d out of range [0, %d)", req.CandidateIndex, len(candidates)))
	}
	if req.VoterID == nil {
		return w.reject(res, ErrMissingVoterID)
	}

	// TRACE_BUILT
	secret := req.VoterID.Element()
	trace := computation.ComputeTrace(secret)
	assertions := computation.BuildAssertions(secret)
	res.State = StateTraceBuilt
	w.transition(res)

	// PROOF_GENERATED and LOCALLY_VERIFIED share the prover pool
	if err := w.proofs.Acquire(ctx, 1); err != nil {
		return w.reject(res, err)
	}
	proof, err := w.engine.Prove(assertions, &trace)
	if err != nil {
		w.proofs.Release(1)
		log.Errorw(err, fmt.Sprintf("proof generation failed for request %s", res.RequestID))
		return w.reject(res, newError(ErrProofGenerationFailed, err, "cannot generate proof"))
	}
	res.State = StateProofGenerated
	w.transition(res)

	valid := w.engine.Verify(assertions, proof)
	w.proofs.Release(1)
	if !valid {
		return w.reject(res, newError(ErrInvalidProof, nil, "generated proof does not verify"))
	}
	res.State = StateLocallyVerified
	w.transition(res)

	digest, err := commitment.Commit(proof)
	if err != nil {
		return w.reject(res, newError(ErrProofGenerationFailed, err, "cannot serialize proof"))
	}
	res.Digest = digest
	if err := ctx.Err(); err != nil {
		return w.reject(res, err)
	}

	// COMMITTED
	if err := w.ledger.Vote(ctx, digest, req.CandidateIndex, req.Submitter); err != nil {
		if errors.Is(err, ErrDuplicateDigest) {
			return w.reject(res, newError(ErrDuplicateVote, err, "proof digest %s already recorded", digest))
		}
		return w.reject(res, newError(ErrLedgerSubmissionFailed, err, "cannot record vote"))
	}
	res.State = StateCommitted
	w.transition(res)
	log.Debugw("vote committed",
		"requestID", res.RequestID.String(),
		"took", time.Since(startTime).String())
	return res, nil
}

// SubmitBatch submits all reqs in parallel. Results and errors are returned
// in request order; a failing request does not affect the others.
func (w *Workflow) SubmitBatch(ctx context.Context, reqs []*Request) ([]*Result, []error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))
	// The group only bounds the fan-out to the prover pool size. Errors are
	// per request and land in errs, so no goroutine fails the group.
	var g errgroup.Group
	g.SetLimit(w.maxProofs)
	for i, req := range reqs {
		g.Go(func() error {
			results[i], errs[i] = w.Submit(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

func (w *Workflow) transition(res *Result) {
	l := log.Logger().Debug().
		Str("requestID", res.RequestID.String()).
		Str("state", res.State.String()).
		Int("candidateIndex", res.CandidateIndex)
	if !res.Digest.IsZero() {
		l = l.Str("digest", res.Digest.String())
	}
	l.Msg("vote state transition")
}

func (w *Workflow) reject(res *Result, err error) (*Result, error) {
	res.State = StateRejected
	log.Logger().Info().
		Str("requestID", res.RequestID.String()).
		Str("state", res.State.String()).
		Int("candidateIndex", res.CandidateIndex).
		Str("reason", err.Error()).
		Msg("vote rejected")
	return res, err
}
