package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vocdoni/starkvote/db"
	"github.com/vocdoni/starkvote/db/prefixeddb"
	"github.com/vocdoni/starkvote/log"
	"github.com/vocdoni/starkvote/types"
	"github.com/vocdoni/starkvote/vote"
)

var _ vote.Ledger = (*Storage)(nil)

// SetCandidates replaces the candidate list. It fails once any vote has been
// recorded, since indexes would no longer match the recorded votes.
func (s *Storage) SetCandidates(names []string) error {
	if len(names) == 0 {
		return ErrNoCandidates
	}
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty name for candidate %d", i)
		}
	}

	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	total, err := s.totalVotesUnsafe()
	if err != nil {
		return err
	}
	if total > 0 {
		return ErrVotesAlreadyExist
	}

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	cTx := prefixeddb.NewPrefixedWriteTx(wTx, candidatePrefix)

	var stale [][]byte
	if err := cTx.Iterate(nil, func(k, _ []byte) bool {
		stale = append(stale, slices.Clone(k))
		return true
	}); err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}
	for _, k := range stale {
		if err := cTx.Delete(k); err != nil {
			return err
		}
	}
	for i, name := range names {
		data, err := EncodeArtifact(&candidateRecord{Name: name})
		if err != nil {
			return err
		}
		if err := cTx.Set(candidateKey(i), data); err != nil {
			return err
		}
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("commit candidates: %w", err)
	}
	s.cache.Add(candidatesCacheKey, slices.Clone(names))
	log.Infow("candidates set", "count", len(names), "names", strings.Join(names, ","))
	return nil
}

// candidateNamesUnsafe returns the candidate names in index order. Must be
// called with the lock held.
func (s *Storage) candidateNamesUnsafe() ([]string, error) {
	if cached, ok := s.cache.Get(candidatesCacheKey); ok {
		return cached.([]string), nil
	}
	var names []string
	var decodeErr error
	if err := prefixeddb.NewPrefixedReader(s.db, candidatePrefix).Iterate(nil, func(_, v []byte) bool {
		rec := &candidateRecord{}
		if decodeErr = DecodeArtifact(v, rec); decodeErr != nil {
			return false
		}
		names = append(names, rec.Name)
		return true
	}); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode candidate: %w", decodeErr)
	}
	if len(names) > 0 {
		s.cache.Add(candidatesCacheKey, names)
	}
	return names, nil
}

func (s *Storage) voteCountUnsafe(r db.Reader, idx int) (uint64, error) {
	data, err := prefixeddb.NewPrefixedReader(r, voteCountPrefix).Get(candidateKey(idx))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeCount(data)
}

// Candidates returns the candidates with their current tallies.
func (s *Storage) Candidates(ctx context.Context) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	names, err := s.candidateNamesUnsafe()
	if err != nil {
		return nil, err
	}
	candidates := make([]types.Candidate, len(names))
	for i, name := range names {
		count, err := s.voteCountUnsafe(s.db, i)
		if err != nil {
			return nil, fmt.Errorf("vote count of candidate %d: %w", i, err)
		}
		candidates[i] = types.Candidate{Name: name, VoteCount: count}
	}
	return candidates, nil
}

// VoteCount returns the tally of a candidate.
func (s *Storage) VoteCount(ctx context.Context, candidateIndex int) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	names, err := s.candidateNamesUnsafe()
	if err != nil {
		return 0, err
	}
	if candidateIndex < 0 || candidateIndex >= len(names) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCandidate, candidateIndex)
	}
	return s.voteCountUnsafe(s.db, candidateIndex)
}

// Vote records digest as a vote for candidateIndex. The uniqueness check,
// the record insert and the counter increment form one transaction.
func (s *Storage) Vote(ctx context.Context, digest types.Digest, candidateIndex int, submitter types.HexBytes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	names, err := s.candidateNamesUnsafe()
	if err != nil {
		return err
	}
	if candidateIndex < 0 || candidateIndex >= len(names) {
		return fmt.Errorf("%w: %d", ErrInvalidCandidate, candidateIndex)
	}

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	recordsTx := prefixeddb.NewPrefixedWriteTx(wTx, voteRecordPrefix)

	if _, err := recordsTx.Get(digest.Bytes()); err == nil {
		return vote.ErrDuplicateDigest
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("check digest: %w", err)
	}

	record := &types.VoteRecord{
		Digest:         digest,
		CandidateIndex: candidateIndex,
		Submitter:      submitter,
		Timestamp:      time.Now().UTC(),
	}
	data, err := EncodeArtifact(record)
	if err != nil {
		return err
	}
	if err := recordsTx.Set(digest.Bytes(), data); err != nil {
		return fmt.Errorf("store vote record: %w", err)
	}

	count, err := s.voteCountUnsafe(wTx, candidateIndex)
	if err != nil {
		return fmt.Errorf("read vote count: %w", err)
	}
	countsTx := prefixeddb.NewPrefixedWriteTx(wTx, voteCountPrefix)
	if err := countsTx.Set(candidateKey(candidateIndex), encodeCount(count+1)); err != nil {
		return fmt.Errorf("store vote count: %w", err)
	}

	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("commit vote: %w", err)
	}
	log.Debugw("vote recorded",
		"digest", digest.String(),
		"candidate", candidateIndex,
		"count", count+1)
	return nil
}

// VoteRecord returns the stored record of a digest, or ErrNotFound.
func (s *Storage) VoteRecord(digest types.Digest) (*types.VoteRecord, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	record := &types.VoteRecord{}
	if err := s.getArtifact(voteRecordPrefix, digest.Bytes(), record); err != nil {
		return nil, err
	}
	return record, nil
}

// TotalVotes returns the number of votes recorded for all candidates.
func (s *Storage) TotalVotes() (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.totalVotesUnsafe()
}

func (s *Storage) totalVotesUnsafe() (uint64, error) {
	var total uint64
	var decodeErr error
	if err := prefixeddb.NewPrefixedReader(s.db, voteCountPrefix).Iterate(nil, func(_, v []byte) bool {
		var n uint64
		n, decodeErr = decodeCount(v)
		if decodeErr != nil {
			return false
		}
		total += n
		return true
	}); err != nil {
		return 0, err
	}
	return total, decodeErr
}
