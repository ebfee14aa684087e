package signer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// writeTestKey generates a key pair and stores the armored private key
func writeTestKey(t *testing.T, dir string) string {
	t.Helper()
	entity, err := openpgp.NewEntity("sdkgen test", "", "sdkgen@example.com", nil)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatalf("Failed to create armor writer: %v", err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		t.Fatalf("Failed to serialize key: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close armor writer: %v", err)
	}

	path := filepath.Join(dir, "key.asc")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatalf("Failed to write key: %v", err)
	}
	return path
}

func TestSignFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "sdkgen-signer-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := NewGPGSigner(writeTestKey(t, dir), "")
	if err != nil {
		t.Fatalf("NewGPGSigner failed: %v", err)
	}

	archive := filepath.Join(dir, "sdk.tar")
	content := []byte("archive bytes")
	if err := os.WriteFile(archive, content, 0644); err != nil {
		t.Fatalf("Failed to write archive: %v", err)
	}

	sigPath, err := SignFile(s, archive)
	if err != nil {
		t.Fatalf("SignFile failed: %v", err)
	}
	if sigPath != archive+".asc" {
		t.Errorf("Signature path = %s", sigPath)
	}

	pub, err := s.GetPublicKey()
	if err != nil {
		t.Fatalf("GetPublicKey failed: %v", err)
	}
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(pub))
	if err != nil {
		t.Fatalf("Failed to read public key: %v", err)
	}

	sig, err := os.ReadFile(sigPath)
	if err != nil {
		t.Fatalf("Failed to read signature: %v", err)
	}
	if _, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(content), bytes.NewReader(sig), nil); err != nil {
		t.Errorf("Signature does not verify: %v", err)
	}
	if _, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader([]byte("tampered")), bytes.NewReader(sig), nil); err == nil {
		t.Error("Signature verified tampered content")
	}
}

func TestNewGPGSignerErrors(t *testing.T) {
	if _, err := NewGPGSigner("", ""); err == nil {
		t.Error("Expected error for empty key path")
	}
	if _, err := NewGPGSigner("/nonexistent/key.asc", ""); err == nil {
		t.Error("Expected error for missing key file")
	}

	dir, err := os.MkdirTemp("", "sdkgen-signer-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	garbage := filepath.Join(dir, "garbage")
	if err := os.WriteFile(garbage, []byte("not a key"), 0600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := NewGPGSigner(garbage, ""); err == nil {
		t.Error("Expected error for invalid key file")
	}
}
