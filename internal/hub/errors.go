package hub

import (
	"fmt"
	"net/http"
)

// Kinds of TransportError.
const (
	KindAuth     = "auth"
	KindNotFound = "not_found"
	KindNetwork  = "network"
	KindRemote   = "remote"
)

// TransportError reports a failed exchange with the Hub.
type TransportError struct {
	Op         string
	Kind       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("hub %s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("hub %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindRemote
	}
}
