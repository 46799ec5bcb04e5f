package gateway

import "strings"

// Status is the normalized gateway payment state.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
	StatusUnknown Status = "UNKNOWN"
)

// The provider has shipped several response generations; these are the state
// tokens observed across all of them.
var (
	successTokens = map[string]bool{
		"COMPLETED":                true,
		"SUCCESS":                  true,
		"PAYMENT_SUCCESS":          true,
		"CHECKOUT_ORDER_COMPLETED": true,
	}
	failureTokens = map[string]bool{
		"FAILED":                true,
		"FAILURE":               true,
		"PAYMENT_ERROR":         true,
		"PAYMENT_DECLINED":      true,
		"TIMED_OUT":             true,
		"CHECKOUT_ORDER_FAILED": true,
	}
	pendingTokens = map[string]bool{
		"PENDING":         true,
		"PAYMENT_PENDING": true,
		"PROCESSING":      true,
		"IN_PROGRESS":     true,
		"INITIATED":       true,
	}
)

// statusPaths are the field locations a state token has been observed in,
// in priority order. Flat fields first, then the nested data object.
var statusPaths = [][]string{
	{"state"},
	{"status"},
	{"code"},
	{"data", "state"},
	{"data", "status"},
	{"data", "responseCode"},
}

// Classify normalizes a decoded gateway response body into a Status. Any
// recognized success token at any known location wins; any failure token
// classifies as FAILED; recognized in-flight tokens as PENDING. A bare
// `"success": true/false` flag is consulted last. Anything else is UNKNOWN
// and must be retried upstream, never treated as a terminal failure.
func Classify(raw map[string]interface{}) Status {
	var sawFailure, sawPending bool

	for _, path := range statusPaths {
		token, ok := lookupString(raw, path)
		if !ok {
			continue
		}
		token = strings.ToUpper(strings.TrimSpace(token))
		switch {
		case successTokens[token]:
			return StatusSuccess
		case failureTokens[token]:
			sawFailure = true
		case pendingTokens[token]:
			sawPending = true
		}
	}

	if sawFailure {
		return StatusFailed
	}
	if sawPending {
		return StatusPending
	}

	if flag, ok := raw["success"].(bool); ok {
		if flag {
			return StatusSuccess
		}
		return StatusFailed
	}

	return StatusUnknown
}

func lookupString(raw map[string]interface{}, path []string) (string, bool) {
	cur := raw
	for i, key := range path {
		val, ok := cur[key]
		if !ok {
			return "", false
		}
		if i == len(path)-1 {
			s, ok := val.(string)
			return s, ok
		}
		cur, ok = val.(map[string]interface{})
		if !ok {
			return "", false
		}
	}
	return "", false
}
