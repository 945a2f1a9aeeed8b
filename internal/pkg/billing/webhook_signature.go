package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Paddle rejects replays older than this window.
const paddleSignatureMaxAge = 5 * time.Minute

// VerifyPaddleWebhookSignature validates the Paddle-Signature header,
// formatted as "ts=<unix>;h1=<hex hmac>". The HMAC-SHA256 is computed over
// "<ts>:<raw body>" with the webhook secret as key.
func VerifyPaddleWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	return verifyPaddleSignatureAt(payload, signatureHeader, webhookSecret, time.Now())
}

func verifyPaddleSignatureAt(payload []byte, signatureHeader, webhookSecret string, now time.Time) bool {
	secret := strings.TrimSpace(webhookSecret)
	header := strings.TrimSpace(signatureHeader)
	if secret == "" || header == "" {
		return false
	}

	var ts, h1 string
	for _, part := range strings.Split(header, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "h1":
			h1 = value
		}
	}
	if ts == "" || h1 == "" {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(tsUnix, 0))
	if age > paddleSignatureMaxAge || age < -paddleSignatureMaxAge {
		return false
	}

	expected, err := hex.DecodeString(strings.ToLower(h1))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
