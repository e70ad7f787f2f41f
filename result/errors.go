package result

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorCategory buckets a failed fetch for logs, progress events and the
// summary breakdown.
type ErrorCategory string

const (
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryDNSFailure        ErrorCategory = "dns_failure"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	Category4xx               ErrorCategory = "4xx"
	Category5xx               ErrorCategory = "5xx"
	CategoryUnknown           ErrorCategory = "unknown"
)

// ClassifyError maps a fetch outcome to its category. An HTTP status takes
// precedence over the transport error, since a response that carried a
// status reached the server.
func ClassifyError(err error, statusCode int) ErrorCategory {
	switch {
	case statusCode >= 500:
		return Category5xx
	case statusCode >= 400:
		return Category4xx
	case err == nil:
		return CategoryUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryDNSFailure
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return CategoryTimeout
		}
		if opErr.Op == "dial" && strings.Contains(opErr.Error(), "connection refused") {
			return CategoryConnectionRefused
		}
	}

	return CategoryUnknown
}

// FormatCategory returns the human-readable label for a category.
func FormatCategory(cat ErrorCategory) string {
	switch cat {
	case CategoryTimeout:
		return "Timeouts"
	case CategoryDNSFailure:
		return "DNS Failures"
	case CategoryConnectionRefused:
		return "Connection Refused"
	case Category4xx:
		return "Client Errors (4xx)"
	case Category5xx:
		return "Server Errors (5xx)"
	default:
		return "Other Errors"
	}
}
