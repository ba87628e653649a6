package oauth

import (
	"encoding/base64"
	"testing"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	key, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewTokenCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Enabled() {
		t.Fatal("cipher with a key should be enabled")
	}

	plaintext := "ya29.a0AfH6SMBx-access-token"
	encrypted, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if encrypted == plaintext {
		t.Error("ciphertext equals plaintext")
	}

	decrypted, err := c.Decrypt(encrypted)
	if err != nil {
		t.Fatal(err)
	}
	if decrypted != plaintext {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestTokenCipherDisabled(t *testing.T) {
	c, err := NewTokenCipher(nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Enabled() {
		t.Fatal("cipher without a key should be disabled")
	}
	out, err := c.Encrypt("plain")
	if err != nil || out != "plain" {
		t.Errorf("Encrypt() = %q, %v, want pass-through", out, err)
	}
	out, err = c.Decrypt("plain")
	if err != nil || out != "plain" {
		t.Errorf("Decrypt() = %q, %v, want pass-through", out, err)
	}
}

func TestTokenCipherRejectsBadKey(t *testing.T) {
	if _, err := NewTokenCipher([]byte("short")); err == nil {
		t.Error("expected an error for a short key")
	}
}

func TestTokenCipherRejectsTamperedCiphertext(t *testing.T) {
	key, _ := GenerateEncryptionKey()
	c, _ := NewTokenCipher(key)

	encrypted, err := c.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := base64.StdEncoding.DecodeString(encrypted)
	raw[len(raw)-1] ^= 0xff
	if _, err := c.Decrypt(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Error("expected decryption of tampered ciphertext to fail")
	}
}

func TestEncryptionKeyFromBase64(t *testing.T) {
	key, _ := GenerateEncryptionKey()
	encoded := base64.StdEncoding.EncodeToString(key)

	got, err := EncryptionKeyFromBase64(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 32 {
		t.Errorf("key length = %d, want 32", len(got))
	}

	if got, err := EncryptionKeyFromBase64(""); err != nil || got != nil {
		t.Errorf("empty input should yield a nil key, got %v, %v", got, err)
	}
	if _, err := EncryptionKeyFromBase64("not-base64!!"); err == nil {
		t.Error("expected an error for invalid base64")
	}
	if _, err := EncryptionKeyFromBase64(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("expected an error for a wrong-size key")
	}
}
