package signature

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

const testSecret = "test-secret"

func TestVerify_RoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		body := make([]byte, i*7)
		if _, err := rand.Read(body); err != nil {
			t.Fatalf("rand: %v", err)
		}

		sig := Sign(body, testSecret)
		if !Verify(body, sig, testSecret) {
			t.Fatalf("Verify rejected its own signature for body of length %d", len(body))
		}
	}
}

func TestVerify_RejectsAlteredBody(t *testing.T) {
	body := []byte(`{"transaction_id":"T1","amount":"1000"}`)
	sig := Sign(body, testSecret)

	variants := [][]byte{
		[]byte(`{"transaction_id":"T1","amount":"1001"}`),
		[]byte(`{"amount":"1000","transaction_id":"T1"}`),
		[]byte(`{"transaction_id": "T1", "amount": "1000"}`),
		append(bytes.Clone(body), '\n'),
		body[:len(body)-1],
		{},
	}

	for _, v := range variants {
		if Verify(v, sig, testSecret) {
			t.Errorf("Verify accepted altered body %q", v)
		}
	}
}

func TestVerify_RejectsWrongSecretOrEmptyInputs(t *testing.T) {
	body := []byte(`{"transaction_id":"T1"}`)
	sig := Sign(body, testSecret)

	if Verify(body, sig, "other-secret") {
		t.Error("Verify accepted signature under a different secret")
	}
	if Verify(body, sig, "") {
		t.Error("Verify accepted with an empty secret")
	}
	if Verify(body, "", testSecret) {
		t.Error("Verify accepted an empty signature")
	}
	if Verify(body, "zz-not-hex", testSecret) {
		t.Error("Verify accepted garbage")
	}
}

func TestVerify_AcceptsUppercaseHex(t *testing.T) {
	body := []byte(`{"transaction_id":"T1"}`)
	sig := strings.ToUpper(Sign(body, testSecret))

	if !Verify(body, sig, testSecret) {
		t.Error("Verify should accept uppercase hex digests")
	}
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewVerifier(""); !errors.Is(err, ErrSecretNotConfigured) {
		t.Errorf("Expected ErrSecretNotConfigured, got %v", err)
	}
}

func TestVerifier_Check(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	body := []byte(`{"transaction_id":"T1"}`)

	if err := v.Check(body, Sign(body, testSecret)); err != nil {
		t.Errorf("Expected valid signature, got %v", err)
	}
	if err := v.Check(body, "  "); !errors.Is(err, ErrMissingSignature) {
		t.Errorf("Expected ErrMissingSignature, got %v", err)
	}
	if err := v.Check(body, Sign(body, "nope")); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
}
