package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignPayload builds the X-VERIFY header value for legacy endpoints:
// hex(SHA256(base64Payload + endpointPath + saltKey)) + "###" + saltIndex.
// For GET status checks base64Payload is empty and only the path is signed.
func SignPayload(base64Payload, endpointPath, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(base64Payload + endpointPath + saltKey))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}

// VerifyWebhookSignature checks a webhook X-VERIFY header against the raw
// request body: the signature part must equal hex(SHA256(body + saltKey)).
func VerifyWebhookSignature(body []byte, header, saltKey string) bool {
	sig, _, found := strings.Cut(header, "###")
	if !found || sig == "" {
		return false
	}
	sum := sha256.Sum256(append(append([]byte{}, body...), []byte(saltKey)...))
	return sig == hex.EncodeToString(sum[:])
}
