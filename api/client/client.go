// Package client is a typed HTTP client for the vote API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/starkvote/api"
	"github.com/vocdoni/starkvote/log"
	"github.com/vocdoni/starkvote/types"
)

const (
	// DefaultRetries is the number of attempts of a request whose
	// connection fails.
	DefaultRetries = 3
	// DefaultTimeout is the default timeout of the HTTP client. Votes wait
	// for the ledger, so it is longer than the usual request.
	DefaultTimeout = 60 * time.Second

	retrySleep = 500 * time.Millisecond
)

// Error is a non 200 answer of the API.
type Error struct {
	Status  int
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("API error %d (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// HTTPclient is the vote API client.
type HTTPclient struct {
	c       *http.Client
	host    *url.URL
	retries int
}

// New returns a client for the API at host, after checking that it answers
// the ping endpoint.
func New(ctx context.Context, host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	c := &HTTPclient{
		c: &http.Client{
			Transport: &http.Transport{IdleConnTimeout: DefaultTimeout},
			Timeout:   DefaultTimeout,
		},
		host:    hostURL,
		retries: DefaultRetries,
	}
	log.Debugw("http client created", "host", hostURL.String())
	if _, err := c.Request(ctx, http.MethodGet, nil, api.PingEndpoint); err != nil {
		return nil, err
	}
	return c, nil
}

// SetRetries configures the number of attempts of a request.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = max(n, 1)
}

// SetTimeout configures the timeout of the HTTP client.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.c.Timeout = d
}

// Request sends a request with an optional JSON body to the endpoint at
// urlPath and returns the response body. A non 200 status is returned as
// *Error along with the body.
func (c *HTTPclient) Request(ctx context.Context, method string, jsonBody any, urlPath ...string) ([]byte, error) {
	var body []byte
	if jsonBody != nil {
		var err error
		if body, err = json.Marshal(jsonBody); err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}
	u := *c.host
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	log.Debugw("http client request", "method", method, "url", u.String())

	var (
		resp *http.Response
		err  error
	)
	for i := 1; i <= c.retries; i++ {
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, rerr := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
		if rerr != nil {
			return nil, fmt.Errorf("failed to create request: %w", rerr)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		if resp, err = c.c.Do(req); err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warnw("http request failed", "error", err.Error(), "attempt", i, "retries", c.retries)
		time.Sleep(retrySleep)
	}
	if err != nil {
		return nil, fmt.Errorf("http request failed after %d attempts: %w", c.retries, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return data, responseError(resp.StatusCode, data)
	}
	return data, nil
}

func responseError(status int, data []byte) *Error {
	e := &Error{Status: status, Message: string(bytes.TrimSpace(data))}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	if json.Unmarshal(data, &body) == nil {
		e.Code = body.Code
		switch {
		case body.Message != "":
			e.Message = body.Message
		case body.Error != "":
			e.Message = body.Error
		}
	}
	return e
}

func (c *HTTPclient) getJSON(ctx context.Context, out any, urlPath ...string) error {
	data, err := c.Request(ctx, http.MethodGet, nil, urlPath...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}

// Candidates returns the candidates and their tallies.
func (c *HTTPclient) Candidates(ctx context.Context) ([]types.Candidate, error) {
	var resp []api.CandidateResponse
	if err := c.getJSON(ctx, &resp, api.CandidatesEndpoint); err != nil {
		return nil, err
	}
	cands := make([]types.Candidate, len(resp))
	for i, r := range resp {
		count, err := strconv.ParseUint(r.VoteCount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vote count %q of candidate %d", r.VoteCount, i)
		}
		cands[i] = types.Candidate{Name: r.Name, VoteCount: count}
	}
	return cands, nil
}

// Vote casts a vote for candidateIndex. account is the submitting account
// and may be the zero address. A rejected vote returns its response with an
// *Error.
func (c *HTTPclient) Vote(ctx context.Context, voterID *types.VoterID, candidateIndex int, account common.Address) (*api.VoteResponse, error) {
	req := &api.VoteRequest{
		VoterID:        voterID,
		CandidateIndex: types.CandidateIndex(candidateIndex),
	}
	if account != (common.Address{}) {
		req.Account = account.Bytes()
	}
	data, err := c.Request(ctx, http.MethodPost, req, api.VoteEndpoint)
	var apiErr *Error
	if err != nil && !errors.As(err, &apiErr) {
		return nil, err
	}
	resp := &api.VoteResponse{}
	if jerr := json.Unmarshal(data, resp); jerr != nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("could not decode vote response: %w", jerr)
	}
	return resp, err
}

// VoteCount returns the tally of a candidate.
func (c *HTTPclient) VoteCount(ctx context.Context, candidateIndex int) (uint64, error) {
	resp := &api.VoteCountResponse{}
	if err := c.getJSON(ctx, resp, api.EndpointWithParam(api.VoteCountEndpoint,
		api.CandidateIndexURLParam, strconv.Itoa(candidateIndex))); err != nil {
		return 0, err
	}
	return strconv.ParseUint(resp.Count, 10, 64)
}

// VoteRecord returns the vote recorded under digest.
func (c *HTTPclient) VoteRecord(ctx context.Context, digest types.Digest) (*types.VoteRecord, error) {
	record := &types.VoteRecord{}
	if err := c.getJSON(ctx, record, api.EndpointWithParam(api.VoteRecordEndpoint,
		api.DigestURLParam, digest.String())); err != nil {
		return nil, err
	}
	return record, nil
}

// Accounts returns the accounts the node can submit votes from.
func (c *HTTPclient) Accounts(ctx context.Context) ([]common.Address, error) {
	resp := &api.AccountsResponse{}
	if err := c.getJSON(ctx, resp, api.AccountsEndpoint); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// VerifyProof asks the node to check a serialized proof against the
// assertions of voterID.
func (c *HTTPclient) VerifyProof(ctx context.Context, voterID *types.VoterID, proof []byte) (*api.VerifyProofResponse, error) {
	data, err := c.Request(ctx, http.MethodPost, &api.VerifyProofRequest{
		VoterID: voterID,
		Proof:   proof,
	}, api.VerifyProofEndpoint)
	if err != nil {
		return nil, err
	}
	resp := &api.VerifyProofResponse{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("could not decode verify response: %w", err)
	}
	return resp, nil
}
