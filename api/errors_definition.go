//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// Error codes in the 40001-49999 range are the client's fault, 50001-59999
// are the server's. Never change or reuse a code; append new ones.
var (
	ErrResourceNotFound   = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody      = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam     = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedDigest    = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed proof digest")}
	ErrMalformedAddress   = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrMissingVoterID     = Error{Code: 40018, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("missing voter identifier")}
	ErrMalformedProof     = Error{Code: 40019, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed proof")}
	ErrInvalidCandidate   = Error{Code: 40020, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid candidate")}
	ErrDuplicateVote      = Error{Code: 40021, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("duplicate vote")}
	ErrRecordsUnsupported = Error{Code: 40022, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("vote records are not kept by this ledger")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrInvalidProof               = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("invalid proof")}
	ErrProofGenerationFailed      = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("proof generation failed")}
	ErrLedgerSubmissionFailed     = Error{Code: 50005, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("ledger submission failed")}
	ErrLedgerUnavailable          = Error{Code: 50006, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("ledger unavailable")}
)
