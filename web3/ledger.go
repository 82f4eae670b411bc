// Package web3 implements the tally ledger on the SecureVoting contract of an
// EVM chain.
package web3

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/starkvote/log"
	"github.com/vocdoni/starkvote/types"
	"github.com/vocdoni/starkvote/vote"
	"github.com/vocdoni/starkvote/web3/rpc"
)

const (
	// DefaultGasLimit is the gas limit of vote transactions.
	DefaultGasLimit = 9_000_000
	// DefaultReceiptTimeout bounds the wait for a vote transaction to be mined.
	DefaultReceiptTimeout = 2 * time.Minute

	receiptPollInterval = time.Second
)

var (
	ErrInvalidCandidate = errors.New("invalid candidate index")
	ErrNoSender         = errors.New("no private key configured and no submitter account")
	ErrReceiptTimeout   = errors.New("timeout waiting for transaction receipt")
	ErrTxFailed         = errors.New("transaction failed")
)

// Backend is the chain access the ledger needs. *rpc.Client implements it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
	RawCall(ctx context.Context, result any, method string, args ...any) error
}

var (
	_ Backend     = (*rpc.Client)(nil)
	_ vote.Ledger = (*Ledger)(nil)
)

// Config holds the ledger settings.
type Config struct {
	Contract common.Address
	ChainID  uint64
	// PrivateKey signs vote transactions. When nil, votes are sent with
	// eth_sendTransaction from the submitter account, which must be unlocked
	// on the node.
	PrivateKey     *ecdsa.PrivateKey
	GasLimit       uint64
	ReceiptTimeout time.Duration
}

// Ledger is a vote.Ledger backed by the SecureVoting contract.
type Ledger struct {
	backend      Backend
	abi          *abi.ABI
	contract     *bind.BoundContract
	conf         Config
	pollInterval time.Duration
}

// NewLedger binds the contract at conf.Contract and checks it has code.
func NewLedger(ctx context.Context, backend Backend, conf Config) (*Ledger, error) {
	if conf.Contract == (common.Address{}) {
		return nil, fmt.Errorf("missing contract address")
	}
	if conf.GasLimit == 0 {
		conf.GasLimit = DefaultGasLimit
	}
	if conf.ReceiptTimeout == 0 {
		conf.ReceiptTimeout = DefaultReceiptTimeout
	}
	parsed, err := SecureVotingABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	code, err := backend.CodeAt(ctx, conf.Contract, nil)
	if err != nil {
		return nil, fmt.Errorf("contract code: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("no contract deployed at %s", conf.Contract.Hex())
	}
	l := &Ledger{
		backend:      backend,
		abi:          parsed,
		contract:     bind.NewBoundContract(conf.Contract, *parsed, backend, backend, backend),
		conf:         conf,
		pollInterval: receiptPollInterval,
	}
	log.Infow("web3 ledger ready",
		"contract", conf.Contract.Hex(),
		"chainID", conf.ChainID,
		"signer", l.signerAddress().Hex())
	return l, nil
}

func (l *Ledger) signerAddress() common.Address {
	if l.conf.PrivateKey == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(l.conf.PrivateKey.PublicKey)
}

func (l *Ledger) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return out, nil
}

// Candidates implements vote.Ledger.
func (l *Ledger) Candidates(ctx context.Context) ([]types.Candidate, error) {
	out, err := l.call(ctx, methodGetCandidates)
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new([]contractCandidate)).(*[]contractCandidate)
	candidates := make([]types.Candidate, len(raw))
	for i, c := range raw {
		if c.VoteCount == nil || !c.VoteCount.IsUint64() {
			return nil, fmt.Errorf("vote count of candidate %d out of range", i)
		}
		candidates[i] = types.Candidate{Name: c.Name, VoteCount: c.VoteCount.Uint64()}
	}
	return candidates, nil
}

// VoteCount implements vote.Ledger.
func (l *Ledger) VoteCount(ctx context.Context, candidateIndex int) (uint64, error) {
	if candidateIndex < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCandidate, candidateIndex)
	}
	out, err := l.call(ctx, methodGetVoteCount, big.NewInt(int64(candidateIndex)))
	if err != nil {
		if rpc.IsPermanentError(err) {
			return 0, fmt.Errorf("%w: %d", ErrInvalidCandidate, candidateIndex)
		}
		return 0, err
	}
	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !count.IsUint64() {
		return 0, fmt.Errorf("vote count of candidate %d out of range", candidateIndex)
	}
	return count.Uint64(), nil
}

// ProofUsed reports whether the contract already recorded digest.
func (l *Ledger) ProofUsed(ctx context.Context, digest types.Digest) (bool, error) {
	out, err := l.call(ctx, methodUsedProofs, digest.Hash())
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Vote implements vote.Ledger. The contract rejects a digest it has already
// recorded, so uniqueness holds across every node sharing the contract.
func (l *Ledger) Vote(ctx context.Context, digest types.Digest, candidateIndex int, submitter types.HexBytes) error {
	if candidateIndex < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCandidate, candidateIndex)
	}
	if used, err := l.ProofUsed(ctx, digest); err == nil && used {
		return vote.ErrDuplicateDigest
	} else if err != nil {
		log.Debugw("usedProofs check unavailable", "error", err.Error())
	}

	hash, err := l.sendVote(ctx, digest, big.NewInt(int64(candidateIndex)), submitter)
	if err != nil {
		if rpc.IsPermanentError(err) {
			return l.classifyRevert(ctx, digest, err)
		}
		return fmt.Errorf("send vote: %w", err)
	}
	log.Debugw("vote transaction sent", "digest", digest.String(), "tx", hash.Hex())

	receipt, err := l.WaitReceipt(ctx, hash)
	if err != nil {
		return err
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return l.classifyRevert(ctx, digest, fmt.Errorf("%w: tx %s", ErrTxFailed, hash.Hex()))
	}
	log.Infow("vote recorded on chain",
		"digest", digest.String(),
		"tx", hash.Hex(),
		"block", receipt.BlockNumber.Uint64())
	return nil
}

// sendVote submits the vote transaction, signed locally when a private key
// is configured and by the node otherwise.
func (l *Ledger) sendVote(ctx context.Context, digest types.Digest, idx *big.Int, submitter types.HexBytes) (common.Hash, error) {
	if l.conf.PrivateKey != nil {
		opts, err := bind.NewKeyedTransactorWithChainID(l.conf.PrivateKey, new(big.Int).SetUint64(l.conf.ChainID))
		if err != nil {
			return common.Hash{}, fmt.Errorf("create transactor: %w", err)
		}
		opts.Context = ctx
		opts.GasLimit = l.conf.GasLimit
		tx, err := l.contract.Transact(opts, methodVote, digest.Hash(), idx)
		if err != nil {
			return common.Hash{}, err
		}
		return tx.Hash(), nil
	}

	if len(submitter) != common.AddressLength {
		return common.Hash{}, ErrNoSender
	}
	data, err := l.abi.Pack(methodVote, digest.Hash(), idx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack vote: %w", err)
	}
	var hash common.Hash
	if err := l.backend.RawCall(ctx, &hash, "eth_sendTransaction", map[string]any{
		"from": common.BytesToAddress(submitter),
		"to":   l.conf.Contract,
		"gas":  hexutil.Uint64(l.conf.GasLimit),
		"data": hexutil.Bytes(data),
	}); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// duplicateReasons match revert reasons of a vote for an already used digest.
var duplicateReasons = []string{"already voted", "proof already used"}

// classifyRevert maps a rejected vote to vote.ErrDuplicateDigest only when
// the revert reason says so or the contract confirms the digest is used.
// Any other rejection is returned as a plain error.
func (l *Ledger) classifyRevert(ctx context.Context, digest types.Digest, cause error) error {
	reason := revertReason(cause)
	lower := strings.ToLower(reason)
	for _, pattern := range duplicateReasons {
		if strings.Contains(lower, pattern) {
			log.Debugw("vote reverted as duplicate", "digest", digest.String(), "reason", reason)
			return fmt.Errorf("%w: %s", vote.ErrDuplicateDigest, reason)
		}
	}
	used, err := l.ProofUsed(ctx, digest)
	if err != nil {
		log.Debugw("usedProofs check unavailable", "digest", digest.String(), "error", err.Error())
	} else if used {
		log.Debugw("vote reverted as duplicate", "digest", digest.String(), "reason", reason)
		return fmt.Errorf("%w: %s", vote.ErrDuplicateDigest, reason)
	}
	return fmt.Errorf("vote rejected by contract (%s): %w", reason, cause)
}

// revertReason decodes the Error(string) payload of a revert, falling back
// to the error message.
func revertReason(err error) string {
	if rpcErr := rpc.ParseError(err); rpcErr != nil && len(rpcErr.Data) > 0 {
		if reason, uerr := abi.UnpackRevert(rpcErr.Data); uerr == nil {
			return reason
		}
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, "revert"); i >= 0 {
		return strings.TrimSpace(msg[i+len("revert"):])
	}
	return msg
}

// WaitReceipt polls for the receipt of hash until it is mined, ctx is done
// or the configured timeout expires.
func (l *Ledger) WaitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	timeout := time.After(l.conf.ReceiptTimeout)
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := l.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			log.Debugw("receipt not available yet", "tx", hash.Hex(), "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("%w %s", ErrReceiptTimeout, hash.Hex())
		case <-ticker.C:
		}
	}
}

// Accounts returns the accounts managed by the node (eth_accounts).
func (l *Ledger) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := l.backend.RawCall(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return accounts, nil
}
