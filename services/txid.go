package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateTransactionID builds the provider-facing correlation key:
// TXN_<unix-millis>_<8 random bytes hex>. The random suffix carries 64 bits
// of entropy, so collisions are negligible even within one millisecond; a
// uniqueness constraint on the payments table backstops it regardless.
func GenerateTransactionID() string {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand failing is unrecoverable for id generation
		panic(fmt.Sprintf("transaction id entropy unavailable: %v", err))
	}
	return fmt.Sprintf("TXN_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}
