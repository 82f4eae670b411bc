package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/starkvote/api"
	"github.com/vocdoni/starkvote/api/client"
	"github.com/vocdoni/starkvote/db/metadb"
	"github.com/vocdoni/starkvote/prover"
	"github.com/vocdoni/starkvote/storage"
	"github.com/vocdoni/starkvote/vote"
)

func newTestEnv(c *qt.C) (*cliEnv, *bytes.Buffer) {
	st := storage.New(metadb.NewTest(c))
	c.Assert(st.SetCandidates([]string{"Alice", "Bob", "Charlie"}), qt.IsNil)
	engine, err := prover.NewTraceEngine()
	c.Assert(err, qt.IsNil)
	a, err := api.New(&api.Config{Workflow: vote.New(engine, st), Records: st})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	c.Cleanup(srv.Close)

	out := &bytes.Buffer{}
	return &cliEnv{host: srv.URL, out: out}, out
}

func TestRunUsage(t *testing.T) {
	c := qt.New(t)
	env := &cliEnv{out: &bytes.Buffer{}}
	ctx := context.Background()
	c.Assert(run(ctx, env, nil), qt.ErrorIs, errUsage)
	c.Assert(run(ctx, env, []string{"tally"}), qt.ErrorIs, errUsage)
	c.Assert(run(ctx, env, []string{"vote", "1"}), qt.ErrorIs, errUsage)
}

func TestVoteCommands(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	env, out := newTestEnv(c)

	c.Assert(run(ctx, env, []string{"vote", "1001", "1"}), qt.IsNil)
	resp := &api.VoteResponse{}
	c.Assert(json.Unmarshal(out.Bytes(), resp), qt.IsNil)
	c.Assert(resp.Success, qt.IsTrue)
	digest := resp.Digest

	out.Reset()
	err := run(ctx, env, []string{"vote", "1001", "2"})
	var apiErr *client.Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Code, qt.Equals, api.ErrDuplicateVote.Code)
	c.Assert(out.String(), qt.Contains, `"success": false`)

	out.Reset()
	c.Assert(run(ctx, env, []string{"candidates"}), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "0\tAlice\t0\n1\tBob\t1\n2\tCharlie\t0\n")

	out.Reset()
	c.Assert(run(ctx, env, []string{"count", "1"}), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "1\n")

	out.Reset()
	c.Assert(run(ctx, env, []string{"record", digest}), qt.IsNil)
	c.Assert(out.String(), qt.Contains, `"candidateIndex": 1`)

	out.Reset()
	c.Assert(run(ctx, env, []string{"accounts"}), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "")

	env.account = "0x1234"
	c.Assert(run(ctx, env, []string{"vote", "1002", "0"}), qt.ErrorMatches, `invalid account "0x1234"`)
}

func TestProveAndVerify(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	env, out := newTestEnv(c)

	c.Assert(run(ctx, env, []string{"prove", "0x2a"}), qt.IsNil)
	proved := &proveOutput{}
	c.Assert(json.Unmarshal(out.Bytes(), proved), qt.IsNil)
	c.Assert(proved.Proof, qt.Not(qt.HasLen), 0)

	out.Reset()
	c.Assert(run(ctx, env, []string{"verify", "42", proved.Proof.String()}), qt.IsNil)
	verified := &api.VerifyProofResponse{}
	c.Assert(json.Unmarshal(out.Bytes(), verified), qt.IsNil)
	c.Assert(verified.Valid, qt.IsTrue)
	c.Assert(*verified.Digest, qt.Equals, proved.Digest)

	out.Reset()
	c.Assert(run(ctx, env, []string{"verify", "43", proved.Proof.String()}), qt.IsNil)
	c.Assert(strings.TrimSpace(out.String()), qt.Equals, "{\n  \"valid\": false\n}")

	// the local digest is the one the node records for the same identifier
	out.Reset()
	c.Assert(run(ctx, env, []string{"vote", "42", "0"}), qt.IsNil)
	resp := &api.VoteResponse{}
	c.Assert(json.Unmarshal(out.Bytes(), resp), qt.IsNil)
	c.Assert(resp.Digest, qt.Equals, proved.Digest.String())
}
