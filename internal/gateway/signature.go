package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the webhook signature: hex HMAC-SHA256 over
// timestamp + "." + body, keyed with the shared secret. The timestamp is
// part of the signed payload so a captured body cannot be replayed under a
// fresh header.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the provided signature matches the one
// computed from the shared secret. Comparison is constant-time.
func (c *Client) VerifySignature(timestamp string, body []byte, signature string) bool {
	expected := Sign(c.keySecret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
