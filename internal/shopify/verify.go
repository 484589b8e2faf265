package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifyWebhookSignature checks that body was signed with the shared app
// secret. The HMAC must be computed over the exact raw request bytes;
// re-serializing a parsed payload changes field order and whitespace and
// breaks the comparison. Missing or malformed input is simply invalid,
// never an error.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
