package api

import (
	"net/http"

	"github.com/vocdoni/starkvote/commitment"
	"github.com/vocdoni/starkvote/computation"
	"github.com/vocdoni/starkvote/prover"
)

// verifyProof checks a serialized proof against the assertions derived from
// a voter identifier. Anyone holding both can check what the ledger stores.
// POST /proofs/verify
func (a *API) verifyProof(w http.ResponseWriter, r *http.Request) {
	req := &VerifyProofRequest{}
	if err := decodeJSON(w, r, req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.VoterID == nil {
		ErrMissingVoterID.Write(w)
		return
	}
	if len(req.Proof) == 0 {
		ErrMalformedProof.With("empty proof").Write(w)
		return
	}

	canonical, digest, err := commitment.Canonicalize(req.Proof)
	if err != nil {
		httpWriteJSON(w, http.StatusOK, &VerifyProofResponse{Valid: false})
		return
	}
	assertions := computation.BuildAssertions(req.VoterID.Element())
	if !prover.VerifyBytes(a.workflow.Engine(), assertions, canonical) {
		httpWriteJSON(w, http.StatusOK, &VerifyProofResponse{Valid: false})
		return
	}
	httpWriteJSON(w, http.StatusOK, &VerifyProofResponse{Valid: true, Digest: &digest})
}
