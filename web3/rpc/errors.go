package rpc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// permanentErrorPatterns match node responses that no retry can fix.
var permanentErrorPatterns = []string{
	"execution reverted",
	"already voted",
	"proof already used",
	"vm exception",
}

// IsPermanentError reports whether err is a contract level rejection that
// must not be retried on another endpoint.
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range permanentErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// RPCError is a JSON-RPC error with its code and revert data.
type RPCError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    hexutil.Bytes `json:"data"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code: %d, data: %s)", e.Message, e.Code, e.Data.String())
}

// ErrorCode implements gethrpc.Error.
func (e *RPCError) ErrorCode() int {
	return e.Code
}

// ErrorData implements gethrpc.DataError.
func (e *RPCError) ErrorData() any {
	return e.Data
}

// ParseError extracts the code and data of a JSON-RPC error. It returns nil
// for a nil error.
func ParseError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var out *RPCError
	if errors.As(err, &out) {
		return out
	}
	out = &RPCError{Message: err.Error()}

	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		out.Code = rpcErr.ErrorCode()
		out.Message = rpcErr.Error()
	}
	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		switch v := dataErr.ErrorData().(type) {
		case []byte:
			out.Data = hexutil.Bytes(v)
		case hexutil.Bytes:
			out.Data = v
		case string:
			if b, derr := hexutil.Decode(v); derr == nil {
				out.Data = b
			}
		}
	}
	return out
}
