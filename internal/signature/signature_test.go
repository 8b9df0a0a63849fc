package signature

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		key  string
	}{
		{
			name: "basic payload",
			body: []byte(`{"eventType":"booking.created","data":{"id":"123"}}`),
			key:  "my-signing-key",
		},
		{
			name: "empty body",
			body: []byte(``),
			key:  "key",
		},
		{
			name: "empty key",
			body: []byte(`{"test":true}`),
			key:  "",
		},
		{
			name: "unicode payload",
			body: []byte(`{"name":"café","price":"€10"}`),
			key:  "unicode-key-日本語",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Sign(tt.body, tt.key)

			decoded, err := hex.DecodeString(sig)
			if err != nil {
				t.Fatalf("signature is not valid hex: %v", err)
			}
			if len(decoded) != 32 {
				t.Fatalf("expected 32 bytes, got %d", len(decoded))
			}

			if !Verify(tt.body, tt.key, sig) {
				t.Error("round-trip verification failed")
			}
		})
	}
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"eventType":"booking.created"}`)
	key := "secret-key"
	sig := Sign(body, key)

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		if Verify(tampered, key, sig) {
			t.Fatalf("verification passed with byte %d flipped", i)
		}
	}
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	body := []byte(`{"eventType":"resource.deleted"}`)
	key := "secret-key"
	sig := Sign(body, key)

	for i := range sig {
		flipped := []byte(sig)
		if flipped[i] == 'a' {
			flipped[i] = 'b'
		} else {
			flipped[i] = 'a'
		}
		if string(flipped) == sig {
			continue
		}
		if Verify(body, key, string(flipped)) {
			t.Fatalf("verification passed with signature char %d altered", i)
		}
	}
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	body := []byte(`{"subscriptionId":"sub-1"}`)
	sig := Sign(body, "key-one")

	if Verify(body, "key-two", sig) {
		t.Error("signature from a different key should not verify")
	}
}

func TestVerify_RejectsMalformedHex(t *testing.T) {
	body := []byte(`{}`)
	if Verify(body, "key", "not-hex-at-all") {
		t.Error("malformed hex should fail verification")
	}
	if Verify(body, "key", "") {
		t.Error("empty signature should fail verification")
	}
}

func TestNewSecret(t *testing.T) {
	s1, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	s2, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}

	if !strings.HasPrefix(s1, "whsec_") {
		t.Errorf("secret %q missing prefix", s1)
	}
	if len(s1) != len("whsec_")+64 {
		t.Errorf("unexpected secret length %d", len(s1))
	}
	if s1 == s2 {
		t.Error("two generated secrets should not collide")
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey("whsec_abc")
	k2 := DeriveKey("whsec_abc")
	if k1 != k2 {
		t.Error("key derivation should be deterministic")
	}
	if len(k1) != 64 {
		t.Errorf("derived key should be 64 hex chars, got %d", len(k1))
	}
	if DeriveKey("whsec_other") == k1 {
		t.Error("different secrets should derive different keys")
	}
}
