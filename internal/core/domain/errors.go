package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration: missing or invalid credentials or parameters.
	// Fatal, surfaced immediately, never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrConnectivity: network or throttling failure. Retried a bounded
	// number of times; embeddings then fall back degraded, generation fails.
	ErrConnectivity = errors.New("connectivity error")
	// ErrMalformedResponse: unexpected backend response shape. Fatal,
	// not retried; indicates a protocol mismatch.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNoData: empty document set or empty index. Recoverable by the
	// caller re-supplying input.
	ErrNoData = errors.New("no data")
	// ErrQuery: failure while answering a single query. Isolated to that
	// query; never corrupts index state or other in-flight queries.
	ErrQuery = errors.New("query failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
