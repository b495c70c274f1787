package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Razorpay signs the checkout confirmation as
// HMAC-SHA256("<order_id>|<payment_id>", key secret), hex encoded. Webhook
// deliveries are signed over the raw request body with a separate secret.
// Both are recomputed locally; the provider is never asked to validate.

func sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCheckoutSignature checks the signature a client presents after the
// hosted checkout completes.
func VerifyCheckoutSignature(secret, orderID, paymentID, signature string) bool {
	expected := sign(secret, []byte(orderID+"|"+paymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw webhook body.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	expected := sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
