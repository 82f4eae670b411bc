package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Candidate is an option of the poll together with its current tally.
type Candidate struct {
	Name      string `json:"name" cbor:"name"`
	VoteCount uint64 `json:"voteCount" cbor:"voteCount"`
}

// VoteRecord is a vote accepted by the tally ledger. It never includes the
// voter identifier, only the digest of the proof derived from it.
type VoteRecord struct {
	Digest         Digest    `json:"digest" cbor:"digest"`
	CandidateIndex int       `json:"candidateIndex" cbor:"candidateIndex"`
	Submitter      HexBytes  `json:"submitter,omitempty" cbor:"submitter,omitempty"`
	Timestamp      time.Time `json:"timestamp" cbor:"timestamp"`
}

// CandidateIndex is the position of a candidate in the ledger candidate list.
// Browser forms submit it as a string, so JSON decoding accepts both numbers
// and numeric strings.
type CandidateIndex int

// Int returns the index as an int.
func (i CandidateIndex) Int() int {
	return int(i)
}

// ParseCandidateIndex parses a decimal candidate index.
func ParseCandidateIndex(s string) (CandidateIndex, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid candidate index %q: %w", s, err)
	}
	return CandidateIndex(n), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *CandidateIndex) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	idx, err := ParseCandidateIndex(s)
	if err != nil {
		return err
	}
	*i = idx
	return nil
}
