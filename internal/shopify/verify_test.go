package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "shpss_test_secret"
	body := []byte(`{"token":"abc123","total_price":"25.00"}`)

	assert.True(t, VerifyWebhookSignature(secret, body, sign(secret, body)))
}

func TestVerifyWebhookSignatureTamperedBody(t *testing.T) {
	secret := "shpss_test_secret"
	body := []byte(`{"token":"abc123","total_price":"25.00"}`)
	signature := sign(secret, body)

	tampered := []byte(`{"token":"abc123","total_price":"99.00"}`)
	assert.False(t, VerifyWebhookSignature(secret, tampered, signature))
}

func TestVerifyWebhookSignatureReserializedBody(t *testing.T) {
	secret := "shpss_test_secret"
	// Same JSON value, different byte layout. Only the original bytes verify.
	original := []byte(`{"a":1, "b":2}`)
	reserialized := []byte(`{"a":1,"b":2}`)
	signature := sign(secret, original)

	assert.True(t, VerifyWebhookSignature(secret, original, signature))
	assert.False(t, VerifyWebhookSignature(secret, reserialized, signature))
}

func TestVerifyWebhookSignatureMalformedInput(t *testing.T) {
	body := []byte(`{}`)

	assert.False(t, VerifyWebhookSignature("secret", body, ""))
	assert.False(t, VerifyWebhookSignature("", body, sign("secret", body)))
	assert.False(t, VerifyWebhookSignature("secret", body, "not-base64-%%%"))
	assert.False(t, VerifyWebhookSignature("secret", nil, "AAAA"))
}

func TestParsePrice(t *testing.T) {
	assert.Equal(t, 25.0, ParsePrice("25.00"))
	assert.Equal(t, 0.0, ParsePrice(""))
	assert.Equal(t, 0.0, ParsePrice("not-a-price"))
}

func TestFormatID(t *testing.T) {
	assert.Equal(t, "123456", FormatID(123456))
	assert.Equal(t, "", FormatID(0))
}
