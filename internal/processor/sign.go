package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	headerSignature = "X-Signature"
	headerTimestamp = "X-Timestamp"
)

// Sign computes the request signature the processor verifies: a hex encoded
// HMAC-SHA256 over the method, request URI, timestamp and body joined by newlines.
func Sign(secret []byte, method, requestURI, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(method + "\n" + requestURI + "\n" + timestamp + "\n"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
