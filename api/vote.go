package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/starkvote/log"
	"github.com/vocdoni/starkvote/storage"
	"github.com/vocdoni/starkvote/types"
	"github.com/vocdoni/starkvote/vote"
)

const voteAcceptedMessage = "Vote cast successfully!"

// candidates returns the candidate list with the tallies.
// GET /candidates
func (a *API) candidates(w http.ResponseWriter, r *http.Request) {
	cands, err := a.workflow.Ledger().Candidates(r.Context())
	if err != nil {
		ErrLedgerUnavailable.WithErr(err).Write(w)
		return
	}
	resp := make([]CandidateResponse, len(cands))
	for i, c := range cands {
		resp[i] = CandidateResponse{
			Name:      c.Name,
			VoteCount: strconv.FormatUint(c.VoteCount, 10),
		}
	}
	httpWriteJSON(w, http.StatusOK, resp)
}

// newVote runs a vote through the commitment workflow. Rejections are
// answered with success=false and the error code.
// POST /vote
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	req := &VoteRequest{}
	if err := decodeJSON(w, r, req); err != nil {
		writeVoteRejection(w, ErrMalformedBody.WithErr(err), nil)
		return
	}
	if len(req.Account) != 0 && len(req.Account) != common.AddressLength {
		writeVoteRejection(w, ErrMalformedAddress.Withf("%d bytes", len(req.Account)), nil)
		return
	}
	if req.VoterID == nil {
		writeVoteRejection(w, ErrMissingVoterID, nil)
		return
	}

	res, err := a.workflow.Submit(r.Context(), &vote.Request{
		VoterID:        req.VoterID,
		CandidateIndex: req.CandidateIndex.Int(),
		Submitter:      req.Account,
	})
	if err != nil {
		writeVoteRejection(w, voteError(err), res)
		return
	}
	httpWriteJSON(w, http.StatusOK, &VoteResponse{
		Success:   true,
		Message:   voteAcceptedMessage,
		Digest:    res.Digest.String(),
		RequestID: res.RequestID.String(),
		State:     res.State.String(),
	})
}

// voteError maps a workflow rejection to its API error.
func voteError(err error) Error {
	msg := err.Error()
	var verr *vote.Error
	if errors.As(err, &verr) {
		msg = verr.Message
	}
	switch {
	case errors.Is(err, vote.ErrInvalidCandidate):
		return ErrInvalidCandidate.With(msg)
	case errors.Is(err, vote.ErrDuplicateVote):
		return ErrDuplicateVote.With(msg)
	case errors.Is(err, vote.ErrInvalidProof):
		return ErrInvalidProof.With(msg)
	case errors.Is(err, vote.ErrProofGenerationFailed):
		return ErrProofGenerationFailed.With(msg)
	case errors.Is(err, vote.ErrLedgerSubmissionFailed):
		return ErrLedgerSubmissionFailed.With(msg)
	case errors.Is(err, vote.ErrMissingVoterID):
		return ErrMissingVoterID
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrLedgerSubmissionFailed.WithErr(err)
	}
	return ErrGenericInternalServerError.WithErr(err)
}

func writeVoteRejection(w http.ResponseWriter, e Error, res *vote.Result) {
	resp := &VoteResponse{
		Success: false,
		Message: e.Error(),
		Code:    e.Code,
	}
	if res != nil {
		resp.RequestID = res.RequestID.String()
		resp.State = res.State.String()
		if !res.Digest.IsZero() {
			resp.Digest = res.Digest.String()
		}
	}
	log.Debugw("vote rejected", "code", e.Code, "message", resp.Message, "requestID", resp.RequestID)
	httpWriteJSON(w, e.HTTPstatus, resp)
}

// voteCount returns the tally of a candidate.
// GET /votes/{candidateIndex}
func (a *API) voteCount(w http.ResponseWriter, r *http.Request) {
	idx, err := types.ParseCandidateIndex(chi.URLParam(r, CandidateIndexURLParam))
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	ledger := a.workflow.Ledger()
	cands, err := ledger.Candidates(r.Context())
	if err != nil {
		ErrLedgerUnavailable.WithErr(err).Write(w)
		return
	}
	if idx.Int() < 0 || idx.Int() >= len(cands) {
		ErrInvalidCandidate.Withf("candidate index %d out of range [0, %d)", idx, len(cands)).Write(w)
		return
	}
	count, err := ledger.VoteCount(r.Context(), idx.Int())
	if err != nil {
		ErrLedgerUnavailable.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, http.StatusOK, &VoteCountResponse{
		CandidateIndex: idx.Int(),
		Count:          strconv.FormatUint(count, 10),
	})
}

// voteRecord returns the vote recorded under a proof digest.
// GET /votes/digest/{digest}
func (a *API) voteRecord(w http.ResponseWriter, r *http.Request) {
	if a.records == nil {
		ErrRecordsUnsupported.Write(w)
		return
	}
	digest, err := types.HexToDigest(chi.URLParam(r, DigestURLParam))
	if err != nil {
		ErrMalformedDigest.WithErr(err).Write(w)
		return
	}
	record, err := a.records.VoteRecord(digest)
	if errors.Is(err, storage.ErrNotFound) {
		ErrResourceNotFound.Withf("no vote with digest %s", digest).Write(w)
		return
	}
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, http.StatusOK, record)
}

// listAccounts returns the accounts that can submit votes.
// GET /accounts
func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := []common.Address{}
	if a.accounts != nil {
		list, err := a.accounts.Accounts(r.Context())
		if err != nil {
			ErrLedgerUnavailable.WithErr(err).Write(w)
			return
		}
		accounts = append(accounts, list...)
	}
	httpWriteJSON(w, http.StatusOK, &AccountsResponse{Success: true, Accounts: accounts})
}
