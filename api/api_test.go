package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/starkvote/computation"
	"github.com/vocdoni/starkvote/crypto/field"
	"github.com/vocdoni/starkvote/db/metadb"
	"github.com/vocdoni/starkvote/prover"
	"github.com/vocdoni/starkvote/storage"
	"github.com/vocdoni/starkvote/types"
	"github.com/vocdoni/starkvote/vote"
)

type testAPI struct {
	*API
	srv     *httptest.Server
	storage *storage.Storage
	engine  *prover.TraceEngine
}

type staticAccounts []common.Address

func (s staticAccounts) Accounts(context.Context) ([]common.Address, error) {
	return s, nil
}

func newTestAPI(c *qt.C, accounts AccountLister) *testAPI {
	st := storage.New(metadb.NewTest(c))
	c.Assert(st.SetCandidates([]string{"Alice", "Bob", "Charlie"}), qt.IsNil)
	engine, err := prover.NewTraceEngine()
	c.Assert(err, qt.IsNil)

	a, err := New(&Config{
		Workflow: vote.New(engine, st),
		Records:  st,
		Accounts: accounts,
	})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	c.Cleanup(srv.Close)
	return &testAPI{API: a, srv: srv, storage: st, engine: engine}
}

func (ta *testAPI) request(c *qt.C, method, path string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(body)
			c.Assert(err, qt.IsNil)
			reader = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, ta.srv.URL+path, reader)
	c.Assert(err, qt.IsNil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	return resp.StatusCode, data
}

func (ta *testAPI) vote(c *qt.C, voterID string, idx int) (int, *VoteResponse) {
	status, data := ta.request(c, http.MethodPost, VoteEndpoint,
		`{"voterId":`+voterID+`,"candidateIndex":`+jsonInt(idx)+`}`)
	resp := &VoteResponse{}
	c.Assert(json.Unmarshal(data, resp), qt.IsNil, qt.Commentf("body: %s", data))
	return status, resp
}

func jsonInt(i int) string {
	data, _ := json.Marshal(i)
	return string(data)
}

func TestNewRequiresWorkflow(t *testing.T) {
	c := qt.New(t)
	_, err := New(nil)
	c.Assert(err, qt.IsNotNil)
	_, err = New(&Config{})
	c.Assert(err, qt.ErrorMatches, "missing vote workflow")
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c, nil)
	status, _ := ta.request(c, http.MethodGet, PingEndpoint, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
}

// TestElection runs the three candidate scenario: votes from distinct voters
// are counted, a repeated voter is rejected without changing any tally.
func TestElection(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c, nil)

	status, data := ta.request(c, http.MethodGet, CandidatesEndpoint, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	var cands []CandidateResponse
	c.Assert(json.Unmarshal(data, &cands), qt.IsNil)
	c.Assert(cands, qt.DeepEquals, []CandidateResponse{
		{Name: "Alice", VoteCount: "0"},
		{Name: "Bob", VoteCount: "0"},
		{Name: "Charlie", VoteCount: "0"},
	})

	status, resp := ta.vote(c, `"1001"`, 1)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(resp.Success, qt.IsTrue)
	c.Assert(resp.Message, qt.Equals, voteAcceptedMessage)
	c.Assert(resp.State, qt.Equals, vote.StateCommitted.String())
	digest, err := types.HexToDigest(resp.Digest)
	c.Assert(err, qt.IsNil)

	status, resp = ta.vote(c, `1002`, 1)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(resp.Success, qt.IsTrue)

	// same voter, other candidate
	status, resp = ta.vote(c, `"1001"`, 2)
	c.Assert(status, qt.Equals, http.StatusConflict)
	c.Assert(resp.Success, qt.IsFalse)
	c.Assert(resp.Code, qt.Equals, ErrDuplicateVote.Code)
	c.Assert(resp.Digest, qt.Equals, digest.String())

	status, data = ta.request(c, http.MethodGet, EndpointWithParam(VoteCountEndpoint, CandidateIndexURLParam, "1"), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	count := &VoteCountResponse{}
	c.Assert(json.Unmarshal(data, count), qt.IsNil)
	c.Assert(count, qt.DeepEquals, &VoteCountResponse{CandidateIndex: 1, Count: "2"})

	status, data = ta.request(c, http.MethodGet, EndpointWithParam(VoteCountEndpoint, CandidateIndexURLParam, "2"), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(data, count), qt.IsNil)
	c.Assert(count.Count, qt.Equals, "0")

	status, data = ta.request(c, http.MethodGet, EndpointWithParam(VoteRecordEndpoint, DigestURLParam, digest.String()), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	record := &types.VoteRecord{}
	c.Assert(json.Unmarshal(data, record), qt.IsNil)
	c.Assert(record.Digest, qt.Equals, digest)
	c.Assert(record.CandidateIndex, qt.Equals, 1)
	c.Assert(bytes.Contains(data, []byte("voterId")), qt.IsFalse)
}

func TestVoteRejections(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c, nil)

	status, resp := ta.vote(c, `"7"`, 3)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(resp.Success, qt.IsFalse)
	c.Assert(resp.Code, qt.Equals, ErrInvalidCandidate.Code)
	c.Assert(resp.State, qt.Equals, vote.StateRejected.String())

	status, resp = ta.vote(c, `"7"`, -1)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(resp.Code, qt.Equals, ErrInvalidCandidate.Code)

	status, data := ta.request(c, http.MethodPost, VoteEndpoint, `{"candidateIndex":0}`)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(json.Unmarshal(data, resp), qt.IsNil)
	c.Assert(resp.Code, qt.Equals, ErrMissingVoterID.Code)

	status, data = ta.request(c, http.MethodPost, VoteEndpoint, `{"voterId":"abc","candidateIndex":0}`)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(json.Unmarshal(data, resp), qt.IsNil)
	c.Assert(resp.Code, qt.Equals, ErrMalformedBody.Code)
	c.Assert(resp.Success, qt.IsFalse)

	status, data = ta.request(c, http.MethodPost, VoteEndpoint, `{"voterId":"1","candidateIndex":0,"account":"0x0102"}`)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(json.Unmarshal(data, resp), qt.IsNil)
	c.Assert(resp.Code, qt.Equals, ErrMalformedAddress.Code)

	total, err := ta.storage.TotalVotes()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(0))
}

func TestVoteCandidateIndexAsString(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c, nil)

	status, data := ta.request(c, http.MethodPost, VoteEndpoint, `{"voterId":"42","candidateIndex":"2"}`)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body: %s", data))
	count, err := ta.storage.VoteCount(context.Background(), 2)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))
}

func TestVoteCountErrors(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c, nil)

	status, data := ta.request(c, http.MethodGet, EndpointWithParam(VoteCountEndpoint, CandidateIndexURLParam, "x"), nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	apiErr := struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}{}
	c.Assert(json.Unmarshal(data, &apiErr), qt.IsNil)
	c.Assert(apiErr.Code, qt.Equals, ErrMalformedParam.Code)

	status, _ = ta.request(c, http.MethodGet, EndpointWithParam(VoteCountEndpoint, CandidateIndexURLParam, "3"), nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	status, _ = ta.request(c, http.MethodGet, EndpointWithParam(VoteRecordEndpoint, DigestURLParam, "0x1234"), nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	status, _ = ta.request(c, http.MethodGet,
		EndpointWithParam(VoteRecordEndpoint, DigestURLParam, types.Digest{1}.String()), nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)
}

func TestAccounts(t *testing.T) {
	c := qt.New(t)

	status, data := newTestAPI(c, nil).request(c, http.MethodGet, AccountsEndpoint, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	resp := &AccountsResponse{}
	c.Assert(json.Unmarshal(data, resp), qt.IsNil)
	c.Assert(resp.Success, qt.IsTrue)
	c.Assert(resp.Accounts, qt.HasLen, 0)

	acc := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	status, data = newTestAPI(c, staticAccounts{acc}).request(c, http.MethodGet, AccountsEndpoint, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(data, resp), qt.IsNil)
	c.Assert(resp.Accounts, qt.DeepEquals, []common.Address{acc})
}

func TestVerifyProof(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c, nil)

	secret := field.New(99)
	trace := computation.ComputeTrace(secret)
	proof, err := ta.engine.Prove(computation.BuildAssertions(secret), &trace)
	c.Assert(err, qt.IsNil)
	raw, err := proof.Marshal()
	c.Assert(err, qt.IsNil)

	verify := func(voterID string, proof []byte) *VerifyProofResponse {
		status, data := ta.request(c, http.MethodPost, VerifyProofEndpoint, map[string]any{
			"voterId": voterID,
			"proof":   types.HexBytes(proof),
		})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body: %s", data))
		resp := &VerifyProofResponse{}
		c.Assert(json.Unmarshal(data, resp), qt.IsNil)
		return resp
	}

	resp := verify("99", raw)
	c.Assert(resp.Valid, qt.IsTrue)
	c.Assert(resp.Digest, qt.IsNotNil)

	// the digest is the one a vote with the same identifier records
	status, voteResp := ta.vote(c, `"99"`, 0)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(voteResp.Digest, qt.Equals, resp.Digest.String())

	c.Assert(verify("100", raw).Valid, qt.IsFalse)
	tampered := bytes.Clone(raw)
	tampered[len(tampered)-1] ^= 0x01
	c.Assert(verify("99", tampered).Valid, qt.IsFalse)
	c.Assert(verify("99", []byte{0xff}).Valid, qt.IsFalse)

	status, _ = ta.request(c, http.MethodPost, VerifyProofEndpoint, map[string]any{"voterId": "99"})
	c.Assert(status, qt.Equals, http.StatusBadRequest)
}

func TestConcurrentDuplicateVotes(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c, nil)

	const n = 8
	statuses := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, ta.srv.URL+VoteEndpoint,
				bytes.NewBufferString(`{"voterId":"5150","candidateIndex":`+jsonInt(i%3)+`}`))
			if err != nil {
				t.Error(err)
				return
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	accepted := 0
	for _, s := range statuses {
		switch s {
		case http.StatusOK:
			accepted++
		case http.StatusConflict:
		default:
			c.Fatalf("unexpected status %d", s)
		}
	}
	c.Assert(accepted, qt.Equals, 1)
	total, err := ta.storage.TotalVotes()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(1))
}

func TestVoteError(t *testing.T) {
	c := qt.New(t)
	for _, tc := range []struct {
		err  error
		want Error
	}{
		{&vote.Error{Kind: vote.ErrInvalidCandidate, Message: "out of range"}, ErrInvalidCandidate},
		{&vote.Error{Kind: vote.ErrDuplicateVote, Message: "again"}, ErrDuplicateVote},
		{&vote.Error{Kind: vote.ErrInvalidProof, Message: "bad"}, ErrInvalidProof},
		{&vote.Error{Kind: vote.ErrProofGenerationFailed, Message: "bad"}, ErrProofGenerationFailed},
		{&vote.Error{Kind: vote.ErrLedgerSubmissionFailed, Message: "down"}, ErrLedgerSubmissionFailed},
		{vote.ErrMissingVoterID, ErrMissingVoterID},
		{context.DeadlineExceeded, ErrLedgerSubmissionFailed},
		{errors.New("other"), ErrGenericInternalServerError},
	} {
		got := voteError(tc.err)
		c.Assert(got.Code, qt.Equals, tc.want.Code)
		c.Assert(got.HTTPstatus, qt.Equals, tc.want.HTTPstatus)
	}
	c.Assert(ErrInvalidCandidate.HTTPstatus, qt.Equals, http.StatusBadRequest)
	c.Assert(ErrLedgerSubmissionFailed.HTTPstatus, qt.Equals, http.StatusServiceUnavailable)
}
