package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/starkvote/api/client"
	"github.com/vocdoni/starkvote/commitment"
	"github.com/vocdoni/starkvote/computation"
	"github.com/vocdoni/starkvote/prover"
	"github.com/vocdoni/starkvote/types"
)

var errUsage = errors.New("invalid usage")

// cliEnv holds the global settings of a command.
type cliEnv struct {
	host    string
	account string
	queries int
	out     io.Writer
}

type command struct {
	name  string
	args  string
	help  string
	nargs int
	run   func(ctx context.Context, env *cliEnv, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"candidates", "", "list the candidates and their tallies", 0, cmdCandidates},
		{"vote", "<voterId> <candidateIndex>", "cast a vote", 2, cmdVote},
		{"count", "<candidateIndex>", "show the tally of a candidate", 1, cmdCount},
		{"record", "<digest>", "show the vote recorded under a digest", 1, cmdRecord},
		{"accounts", "", "list the accounts of the node", 0, cmdAccounts},
		{"prove", "<voterId>", "generate a proof locally and print it with its digest", 1, cmdProve},
		{"verify", "<voterId> <proofHex>", "verify a proof on the node", 2, cmdVerify},
	}
}

// run executes the command named by args[0].
func run(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		if len(args)-1 != cmd.nargs {
			return fmt.Errorf("%w: %s expects %d arguments", errUsage, cmd.name, cmd.nargs)
		}
		return cmd.run(ctx, env, args[1:])
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func (env *cliEnv) client(ctx context.Context) (*client.HTTPclient, error) {
	return client.New(ctx, env.host)
}

func (env *cliEnv) print(v any) error {
	enc := json.NewEncoder(env.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdCandidates(ctx context.Context, env *cliEnv, _ []string) error {
	cli, err := env.client(ctx)
	if err != nil {
		return err
	}
	cands, err := cli.Candidates(ctx)
	if err != nil {
		return err
	}
	for i, c := range cands {
		fmt.Fprintf(env.out, "%d\t%s\t%d\n", i, c.Name, c.VoteCount)
	}
	return nil
}

func cmdVote(ctx context.Context, env *cliEnv, args []string) error {
	voterID, err := types.ParseVoterID(args[0])
	if err != nil {
		return err
	}
	idx, err := types.ParseCandidateIndex(args[1])
	if err != nil {
		return err
	}
	var account common.Address
	if env.account != "" {
		if !common.IsHexAddress(env.account) {
			return fmt.Errorf("invalid account %q", env.account)
		}
		account = common.HexToAddress(env.account)
	}
	cli, err := env.client(ctx)
	if err != nil {
		return err
	}
	resp, err := cli.Vote(ctx, voterID, idx.Int(), account)
	if resp != nil {
		if perr := env.print(resp); perr != nil {
			return perr
		}
	}
	return err
}

func cmdCount(ctx context.Context, env *cliEnv, args []string) error {
	idx, err := types.ParseCandidateIndex(args[0])
	if err != nil {
		return err
	}
	cli, err := env.client(ctx)
	if err != nil {
		return err
	}
	count, err := cli.VoteCount(ctx, idx.Int())
	if err != nil {
		return err
	}
	fmt.Fprintln(env.out, strconv.FormatUint(count, 10))
	return nil
}

func cmdRecord(ctx context.Context, env *cliEnv, args []string) error {
	digest, err := types.HexToDigest(args[0])
	if err != nil {
		return err
	}
	cli, err := env.client(ctx)
	if err != nil {
		return err
	}
	record, err := cli.VoteRecord(ctx, digest)
	if err != nil {
		return err
	}
	return env.print(record)
}

func cmdAccounts(ctx context.Context, env *cliEnv, _ []string) error {
	cli, err := env.client(ctx)
	if err != nil {
		return err
	}
	accounts, err := cli.Accounts(ctx)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		fmt.Fprintln(env.out, a.Hex())
	}
	return nil
}

// proveOutput is the result of the prove command.
type proveOutput struct {
	Digest types.Digest   `json:"digest"`
	Proof  types.HexBytes `json:"proof"`
}

func cmdProve(_ context.Context, env *cliEnv, args []string) error {
	voterID, err := types.ParseVoterID(args[0])
	if err != nil {
		return err
	}
	var opts []prover.Option
	if env.queries > 0 {
		opts = append(opts, prover.WithQueries(env.queries))
	}
	engine, err := prover.NewTraceEngine(opts...)
	if err != nil {
		return err
	}
	secret := voterID.Element()
	trace := computation.ComputeTrace(secret)
	proof, err := engine.Prove(computation.BuildAssertions(secret), &trace)
	if err != nil {
		return fmt.Errorf("cannot generate proof: %w", err)
	}
	raw, err := proof.Marshal()
	if err != nil {
		return err
	}
	return env.print(&proveOutput{Digest: commitment.CommitBytes(raw), Proof: raw})
}

func cmdVerify(ctx context.Context, env *cliEnv, args []string) error {
	voterID, err := types.ParseVoterID(args[0])
	if err != nil {
		return err
	}
	proof, err := types.HexStringToHexBytes(args[1])
	if err != nil {
		return fmt.Errorf("invalid proof: %w", err)
	}
	cli, err := env.client(ctx)
	if err != nil {
		return err
	}
	resp, err := cli.VerifyProof(ctx, voterID, proof)
	if err != nil {
		return err
	}
	return env.print(resp)
}
