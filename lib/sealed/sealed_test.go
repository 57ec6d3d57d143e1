// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age/armor"
)

func testKeypair(t *testing.T) *Keypair {
	t.Helper()
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	t.Cleanup(func() { keypair.Close() })
	return keypair
}

func TestGenerateKeypair(t *testing.T) {
	keypair := testKeypair(t)

	if !strings.HasPrefix(keypair.PrivateKey.String(), identityPrefix) {
		t.Errorf("private key lacks %s prefix", identityPrefix)
	}
	if !strings.HasPrefix(keypair.PublicKey, "age1") {
		t.Errorf("PublicKey = %q, want age1 prefix", keypair.PublicKey)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keypair := testKeypair(t)
	plaintext := []byte("GITHUB_TOKEN@api.github.com=ghp_abc\n")

	ciphertext, err := Encrypt(plaintext, []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(ciphertext, []byte("ghp_abc")) {
		t.Fatal("ciphertext contains plaintext")
	}

	decrypted, err := Decrypt(ciphertext, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	defer decrypted.Close()

	if !bytes.Equal(decrypted.Bytes(), plaintext) {
		t.Errorf("Decrypt = %q, want %q", decrypted.Bytes(), plaintext)
	}
}

func TestDecryptArmored(t *testing.T) {
	keypair := testKeypair(t)
	ciphertext, err := Encrypt([]byte("A@b.example"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	var armored bytes.Buffer
	writer := armor.NewWriter(&armored)
	writer.Write(ciphertext)
	if err := writer.Close(); err != nil {
		t.Fatalf("armor close: %v", err)
	}

	decrypted, err := Decrypt(armored.Bytes(), keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt armored: %v", err)
	}
	defer decrypted.Close()
	if got := decrypted.String(); got != "A@b.example" {
		t.Errorf("Decrypt = %q, want %q", got, "A@b.example")
	}
}

func TestDecryptWrongIdentity(t *testing.T) {
	sender := testKeypair(t)
	other := testKeypair(t)

	ciphertext, err := Encrypt([]byte("x"), []string{sender.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(ciphertext, other.PrivateKey); err == nil {
		t.Fatal("Decrypt with wrong identity succeeded")
	}
}

func TestEncryptRequiresRecipient(t *testing.T) {
	if _, err := Encrypt([]byte("x"), nil); err == nil {
		t.Fatal("Encrypt with no recipients succeeded")
	}
}

func TestReadIdentityFileAndDecryptFile(t *testing.T) {
	keypair := testKeypair(t)
	directory := t.TempDir()

	identityPath := filepath.Join(directory, "identity.txt")
	identityContent := "# created: 2026-01-01T00:00:00Z\n# public key: " + keypair.PublicKey + "\n" + keypair.PrivateKey.String() + "\n"
	if err := os.WriteFile(identityPath, []byte(identityContent), 0o600); err != nil {
		t.Fatalf("writing identity: %v", err)
	}

	ciphertext, err := Encrypt([]byte("TOKEN@example.com"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	secretsPath := filepath.Join(directory, "secrets.age")
	if err := os.WriteFile(secretsPath, ciphertext, 0o600); err != nil {
		t.Fatalf("writing ciphertext: %v", err)
	}

	identity, err := ReadIdentityFile(identityPath)
	if err != nil {
		t.Fatalf("ReadIdentityFile: %v", err)
	}
	defer identity.Close()

	plaintext, err := DecryptFile(secretsPath, identity)
	if err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}
	defer plaintext.Close()
	if got := plaintext.String(); got != "TOKEN@example.com" {
		t.Errorf("DecryptFile = %q, want %q", got, "TOKEN@example.com")
	}
}

func TestReadIdentityFileMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.txt")
	if err := os.WriteFile(path, []byte("# only comments\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadIdentityFile(path); err == nil {
		t.Fatal("ReadIdentityFile succeeded on file with no identity")
	}
}
