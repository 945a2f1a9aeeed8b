package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func signPaddle(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:", ts)
	mac.Write(payload)
	return fmt.Sprintf("ts=%d;h1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyPaddleWebhookSignature(t *testing.T) {
	payload := []byte(`{"event_id":"evt_01","event_type":"subscription.created"}`)
	secret := "pdl_ntfset_secret"
	now := time.Unix(1_760_000_000, 0)

	header := signPaddle(payload, secret, now.Unix())
	if !verifyPaddleSignatureAt(payload, header, secret, now) {
		t.Fatalf("expected valid signature to verify")
	}

	if verifyPaddleSignatureAt([]byte(`{"tampered":true}`), header, secret, now) {
		t.Fatalf("expected tampered payload to fail")
	}
	if verifyPaddleSignatureAt(payload, header, "wrong-secret", now) {
		t.Fatalf("expected wrong secret to fail")
	}
	if verifyPaddleSignatureAt(payload, header, "", now) {
		t.Fatalf("expected empty secret to fail")
	}
	if verifyPaddleSignatureAt(payload, "", secret, now) {
		t.Fatalf("expected empty header to fail")
	}
}

func TestVerifyPaddleWebhookSignature_Timestamps(t *testing.T) {
	payload := []byte(`{}`)
	secret := "secret"
	now := time.Unix(1_760_000_000, 0)

	stale := signPaddle(payload, secret, now.Add(-6*time.Minute).Unix())
	if verifyPaddleSignatureAt(payload, stale, secret, now) {
		t.Fatalf("expected stale timestamp to fail")
	}

	future := signPaddle(payload, secret, now.Add(6*time.Minute).Unix())
	if verifyPaddleSignatureAt(payload, future, secret, now) {
		t.Fatalf("expected far-future timestamp to fail")
	}

	edge := signPaddle(payload, secret, now.Add(-4*time.Minute).Unix())
	if !verifyPaddleSignatureAt(payload, edge, secret, now) {
		t.Fatalf("expected timestamp inside the window to verify")
	}
}

func TestVerifyPaddleWebhookSignature_MalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	secret := "secret"
	now := time.Unix(1_760_000_000, 0)

	for _, header := range []string{
		"ts=abc;h1=00ff",
		"ts=1760000000",
		"h1=00ff",
		"ts=1760000000;h1=not-hex",
		"garbage",
	} {
		if verifyPaddleSignatureAt(payload, header, secret, now) {
			t.Fatalf("expected malformed header %q to fail", header)
		}
	}
}
