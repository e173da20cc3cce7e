// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrorKind classifies a failed model call for logs and metrics. Callers
// never branch on it: every kind yields the same error-status result.
type ErrorKind string

const (
	KindMissingAPIKey  ErrorKind = "MissingAPIKey"
	KindTimeout        ErrorKind = "Timeout"
	KindQuotaExceeded  ErrorKind = "QuotaExceeded"
	KindAccessDenied   ErrorKind = "AccessDenied"
	KindAuthentication ErrorKind = "Authentication"
	KindNetwork        ErrorKind = "Network"
	KindUnexpected     ErrorKind = "Unexpected"
)

// ErrMissingAPIKey is returned when a provider is selected without a key.
var ErrMissingAPIKey = eris.New("no API key configured for model provider")

// APIError is a non-200 response from a model provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, body)
}

// Classify maps err onto the taxonomy. Typed signals (deadline, HTTP
// status, net.Error) are checked before message keywords.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMissingAPIKey) {
		return KindMissingAPIKey
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return KindQuotaExceeded
		case http.StatusForbidden:
			return KindAccessDenied
		case http.StatusUnauthorized:
			return KindAuthentication
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return KindTimeout
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"):
		return KindQuotaExceeded
	case strings.Contains(msg, "permission"), strings.Contains(msg, "access"):
		return KindAccessDenied
	case strings.Contains(msg, "authentication"), strings.Contains(msg, "invalid"):
		return KindAuthentication
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection"):
		return KindNetwork
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	}
	return KindUnexpected
}

// retryable reports whether another attempt could succeed.
func retryable(kind ErrorKind) bool {
	switch kind {
	case KindMissingAPIKey, KindAuthentication, KindAccessDenied:
		return false
	}
	return true
}
