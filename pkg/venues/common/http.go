package common

import (
	"fmt"
	"strings"
)

// ClassifyHTTP maps a non-2xx venue response to an execution result. 5xx is a
// venue-side failure with no business meaning and classifies as transport
// (retryable); anything else is a business rejection carrying the server's
// body verbatim.
func ClassifyHTTP(venue Venue, status int, body []byte) ExecutionResult {
	if status >= 500 {
		return Transport(fmt.Errorf("%s status %d: %s", venue, status, strings.TrimSpace(string(body))))
	}
	reason := strings.TrimSpace(string(body))
	if reason == "" {
		reason = fmt.Sprintf("HTTP %d", status)
	}
	return Reject(reason)
}
