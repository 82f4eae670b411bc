package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/starkvote/api"
	"github.com/vocdoni/starkvote/computation"
	"github.com/vocdoni/starkvote/db/metadb"
	"github.com/vocdoni/starkvote/prover"
	"github.com/vocdoni/starkvote/storage"
	"github.com/vocdoni/starkvote/types"
	"github.com/vocdoni/starkvote/vote"
)

func newTestClient(c *qt.C) (*HTTPclient, *prover.TraceEngine) {
	st := storage.New(metadb.NewTest(c))
	c.Assert(st.SetCandidates([]string{"Alice", "Bob", "Charlie"}), qt.IsNil)
	engine, err := prover.NewTraceEngine()
	c.Assert(err, qt.IsNil)
	a, err := api.New(&api.Config{Workflow: vote.New(engine, st), Records: st})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	c.Cleanup(srv.Close)

	cli, err := New(context.Background(), srv.URL)
	c.Assert(err, qt.IsNil)
	return cli, engine
}

func TestNewUnreachable(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	_, err := New(context.Background(), srv.URL)
	var apiErr *Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Status, qt.Equals, http.StatusNotFound)

	srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(ctx, srv.URL)
	c.Assert(err, qt.IsNotNil)
}

func TestClientVoting(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	cli, _ := newTestClient(c)

	cands, err := cli.Candidates(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(cands, qt.HasLen, 3)
	c.Assert(cands[0], qt.DeepEquals, types.Candidate{Name: "Alice"})

	account := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	resp, err := cli.Vote(ctx, types.NewVoterID(1001), 0, account)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Success, qt.IsTrue)
	digest, err := types.HexToDigest(resp.Digest)
	c.Assert(err, qt.IsNil)

	resp, err = cli.Vote(ctx, types.NewVoterID(1001), 1, common.Address{})
	var apiErr *Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Status, qt.Equals, http.StatusConflict)
	c.Assert(apiErr.Code, qt.Equals, api.ErrDuplicateVote.Code)
	c.Assert(resp.Success, qt.IsFalse)
	c.Assert(resp.Digest, qt.Equals, digest.String())

	_, err = cli.Vote(ctx, types.NewVoterID(1002), 5, common.Address{})
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Code, qt.Equals, api.ErrInvalidCandidate.Code)

	count, err := cli.VoteCount(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))
	_, err = cli.VoteCount(ctx, 3)
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Status, qt.Equals, http.StatusBadRequest)

	record, err := cli.VoteRecord(ctx, digest)
	c.Assert(err, qt.IsNil)
	c.Assert(record.CandidateIndex, qt.Equals, 0)
	c.Assert(record.Submitter, qt.DeepEquals, types.HexBytes(account.Bytes()))

	_, err = cli.VoteRecord(ctx, types.Digest{})
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Status, qt.Equals, http.StatusNotFound)

	accounts, err := cli.Accounts(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(accounts, qt.HasLen, 0)
}

func TestClientVerifyProof(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	cli, engine := newTestClient(c)

	id := types.NewVoterID(77)
	trace := computation.ComputeTrace(id.Element())
	proof, err := engine.Prove(computation.BuildAssertions(id.Element()), &trace)
	c.Assert(err, qt.IsNil)
	raw, err := proof.Marshal()
	c.Assert(err, qt.IsNil)

	resp, err := cli.VerifyProof(ctx, id, raw)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Valid, qt.IsTrue)
	c.Assert(resp.Digest, qt.IsNotNil)

	resp, err = cli.VerifyProof(ctx, types.NewVoterID(78), raw)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Valid, qt.IsFalse)
}

func TestResponseError(t *testing.T) {
	c := qt.New(t)
	e := responseError(http.StatusBadRequest, []byte(`{"error":"malformed","code":40004}`))
	c.Assert(e.Code, qt.Equals, 40004)
	c.Assert(e.Message, qt.Equals, "malformed")
	c.Assert(e.Error(), qt.Contains, "40004")

	e = responseError(http.StatusBadGateway, []byte("bad gateway\n"))
	c.Assert(e.Code, qt.Equals, 0)
	c.Assert(e.Message, qt.Equals, "bad gateway")
}
