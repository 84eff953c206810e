package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "gatewayOrderID|gatewayPaymentID"
// keyed by the merchant secret, the value the gateway hands the client.
func Sign(gatewayOrderID, gatewayPaymentID, secret string) string {
	return hex.EncodeToString(mac(gatewayOrderID, gatewayPaymentID, secret))
}

// VerifySignature is local and deterministic. The received signature must
// match the lowercase hex digest exactly; the comparison runs in constant
// time.
func VerifySignature(gatewayOrderID, gatewayPaymentID, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(gatewayOrderID, gatewayPaymentID, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func mac(gatewayOrderID, gatewayPaymentID, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return h.Sum(nil)
}
