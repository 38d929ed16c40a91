// Package signature verifies gateway HMAC signatures. Both checks are pure: no I/O, no state.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// sha256 hex digest length
const hexLen = sha256.Size * 2

// SignPayment returns the hex HMAC-SHA256 of "gatewayOrderID|gatewayPaymentID".
func SignPayment(secret, gatewayOrderID, gatewayPaymentID string) string {
	return sign(secret, []byte(gatewayOrderID+"|"+gatewayPaymentID))
}

// VerifyPayment reports whether sig was produced by the gateway for this
// (gatewayOrderID, gatewayPaymentID) pair.
func VerifyPayment(secret, gatewayOrderID, gatewayPaymentID, sig string) bool {
	if secret == "" || gatewayOrderID == "" || gatewayPaymentID == "" {
		return false
	}
	// the separator inside an id would make the signed message ambiguous
	if strings.Contains(gatewayOrderID, "|") || strings.Contains(gatewayPaymentID, "|") {
		return false
	}
	return verify(secret, []byte(gatewayOrderID+"|"+gatewayPaymentID), sig)
}

// SignPayload returns the hex HMAC-SHA256 of a raw webhook body.
func SignPayload(secret string, body []byte) string {
	return sign(secret, body)
}

// VerifyPayload checks the webhook body signature sent in the X-Signature header.
func VerifyPayload(secret string, body []byte, sig string) bool {
	if secret == "" || len(body) == 0 {
		return false
	}
	return verify(secret, body, sig)
}

func sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret string, msg []byte, sig string) bool {
	if len(sig) != hexLen {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hmac.Equal(mac.Sum(nil), got)
}
