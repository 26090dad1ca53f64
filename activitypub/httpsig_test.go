package activitypub

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"strings"
	"testing"
	"time"
)

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	keyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: keyBytes,
	})
	return privateKey, string(publicPEM)
}

func privateKeyToPEM(key *rsa.PrivateKey) string {
	keyBytes := x509.MarshalPKCS1PrivateKey(key)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: keyBytes,
	})
	return string(keyPEM)
}

func TestParsePrivateKey(t *testing.T) {
	privateKey, _ := generateTestKeyPair(t)
	pemString := privateKeyToPEM(privateKey)

	parsed, err := ParsePrivateKey(pemString)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	if parsed.N.Cmp(privateKey.N) != 0 {
		t.Error("Parsed key doesn't match original")
	}
}

func TestParsePrivateKeyInvalidPEM(t *testing.T) {
	if _, err := ParsePrivateKey("not a valid PEM"); err == nil {
		t.Error("Expected error for invalid PEM")
	}
	if _, err := ParsePrivateKey(""); err == nil {
		t.Error("Expected error for empty string")
	}
}

func TestParsePublicKey(t *testing.T) {
	privateKey, publicPEM := generateTestKeyPair(t)

	parsed, err := ParsePublicKey(publicPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	if parsed.N.Cmp(privateKey.PublicKey.N) != 0 {
		t.Error("Parsed key doesn't match original")
	}
}

func TestParsePublicKeyInvalidPEM(t *testing.T) {
	if _, err := ParsePublicKey("not a valid PEM"); err == nil {
		t.Error("Expected error for invalid PEM")
	}
}

func TestDigest(t *testing.T) {
	digest := Digest([]byte(`{"type":"Create"}`))
	if !strings.HasPrefix(digest, "SHA-256=") {
		t.Errorf("Expected SHA-256 prefixed digest, got '%s'", digest)
	}

	// Same body, same digest
	if digest != Digest([]byte(`{"type":"Create"}`)) {
		t.Error("Expected digest to be deterministic")
	}
	if digest == Digest([]byte(`{"type":"Delete"}`)) {
		t.Error("Expected different bodies to produce different digests")
	}
}

func signedTestRequest(t *testing.T, privateKey *rsa.PrivateKey, keyId string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest("POST", "https://pangea.example/inbox", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", "pangea.example")
	req.Header.Set("Digest", Digest(body))

	if err := SignRequest(req, privateKey, keyId); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}

	// SignRequest consumes the body, rebuild the request for verification
	req2, err := http.NewRequest("POST", "https://pangea.example/inbox", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to recreate request: %v", err)
	}
	req2.Header = req.Header.Clone()
	return req2
}

func TestSignAndVerifyRequest(t *testing.T) {
	privateKey, publicPEM := generateTestKeyPair(t)

	body := []byte(`{"type":"Create"}`)
	keyId := "https://remote.example/@alice#main-key"
	req := signedTestRequest(t, privateKey, keyId, body)

	actorURI, err := VerifyRequest(req, publicPEM)
	if err != nil {
		t.Fatalf("VerifyRequest failed: %v", err)
	}
	if actorURI != "https://remote.example/@alice" {
		t.Errorf("Expected actor URI 'https://remote.example/@alice', got '%s'", actorURI)
	}
}

func TestVerifyRequestWrongKey(t *testing.T) {
	privateKey, _ := generateTestKeyPair(t)
	_, otherPublicPEM := generateTestKeyPair(t)

	body := []byte(`{"type":"Create"}`)
	req := signedTestRequest(t, privateKey, "https://remote.example/@alice#main-key", body)

	if _, err := VerifyRequest(req, otherPublicPEM); err == nil {
		t.Error("Expected verification with the wrong key to fail")
	}
}

func TestVerifyRequestUnsigned(t *testing.T) {
	_, publicPEM := generateTestKeyPair(t)

	req, err := http.NewRequest("POST", "https://pangea.example/inbox", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if _, err := VerifyRequest(req, publicPEM); err == nil {
		t.Error("Expected verification of unsigned request to fail")
	}
}
