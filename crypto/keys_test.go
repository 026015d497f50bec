package crypto

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(HubPrefix, raw)
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(HubPrefix)+"1") {
		t.Fatalf("expected hub prefix, got %q", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != HubPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("round trip mismatch: %x != %x", decoded.Bytes(), raw)
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-an-address"); err == nil {
		t.Fatal("expected decode failure")
	}
	if _, err := DecodeAddress(""); err == nil {
		t.Fatal("expected decode failure for empty string")
	}
}

func TestPrivateKeyAddressDerivation(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if key.PubKey().Address().String() != restored.PubKey().Address().String() {
		t.Fatal("restored key must derive the same address")
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keystore.json")
	if err := SaveToKeystore(path, key, "passphrase"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "passphrase")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(loaded.Bytes(), key.Bytes()) {
		t.Fatal("keystore round trip mismatch")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatal("expected failure with wrong passphrase")
	}

	// Saving again replaces the file in place.
	replacement, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate replacement: %v", err)
	}
	if err := SaveToKeystore(path, replacement, "passphrase"); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	loaded, err = LoadFromKeystore(path, "passphrase")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !bytes.Equal(loaded.Bytes(), replacement.Bytes()) {
		t.Fatal("re-save did not replace keystore contents")
	}
}
