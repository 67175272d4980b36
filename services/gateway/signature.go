package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the vendor's HMAC-SHA256 signature over the
// raw request body. An empty secret disables verification; callers log
// those deliveries as unverified. The header value may carry a
// "sha256=" prefix.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(header)))
}
