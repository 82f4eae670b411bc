package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints
const (
	PingEndpoint = "/ping" // GET: health check

	CandidatesEndpoint = "/candidates" // GET: candidates with their tallies

	VoteEndpoint = "/vote" // POST: submit a vote

	CandidateIndexURLParam = "candidateIndex"
	DigestURLParam         = "digest"
	VotesEndpoint          = "/votes"
	VoteCountEndpoint      = VotesEndpoint + "/{" + CandidateIndexURLParam + "}"   // GET: tally of a candidate
	VoteRecordEndpoint     = VotesEndpoint + "/digest/{" + DigestURLParam + "}" // GET: vote recorded under a digest

	AccountsEndpoint = "/accounts" // GET: accounts that can submit votes

	VerifyProofEndpoint = "/proofs/verify" // POST: verify a proof for a voter identifier
)

// EndpointWithParam replaces the {key} placeholder of path with param, or
// appends it as a query parameter when path has no such placeholder.
func EndpointWithParam(path, key, param string) string {
	placeholder := "{" + key + "}"
	if strings.Contains(path, placeholder) {
		return strings.Replace(path, placeholder, url.PathEscape(param), 1)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", path, sep, url.QueryEscape(key), url.QueryEscape(param))
}

// LogExcludedPrefixes are the paths the request logger skips.
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
