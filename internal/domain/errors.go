package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetworkTimeout is returned when a document fetch misses its deadline.
	ErrNetworkTimeout = errors.New("network timeout")
	// ErrNetworkFailure wraps any other fetch failure.
	ErrNetworkFailure = errors.New("network failure")
	// ErrMalformedLocalCache marks a persisted payload that could not be decoded.
	ErrMalformedLocalCache = errors.New("malformed local cache")
)

// PrecacheError lists the URLs that could not be stored during install.
// Install is not blocked by it.
type PrecacheError struct {
	Version string
	Failed  []string
	Err     error
}

func (e *PrecacheError) Error() string {
	return fmt.Sprintf("precache %s: %d url(s) failed (%s): %v", e.Version, len(e.Failed), strings.Join(e.Failed, ", "), e.Err)
}

func (e *PrecacheError) Unwrap() error { return e.Err }

// RemoteOp identifies the remote store call that failed.
type RemoteOp string

const (
	RemoteSelect RemoteOp = "select"
	RemoteUpsert RemoteOp = "upsert"
	RemoteUpdate RemoteOp = "update"
	RemoteDelete RemoteOp = "delete"
	RemoteInsert RemoteOp = "insert"
)

// RemoteError is returned by every remote store operation.
// NoRows marks "no matching row", which callers treat as absence.
type RemoteError struct {
	Op      RemoteOp
	Status  int
	Code    string
	Message string
	NoRows  bool
	Err     error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("remote ")
	b.WriteString(string(e.Op))
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Write reports whether the failed call was a write.
func (e *RemoteError) Write() bool {
	return e.Op != RemoteSelect
}

// IsNoRows reports whether err is a remote "no matching row" answer.
func IsNoRows(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.NoRows
}
