package cipher

import (
	"errors"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	messages := []string{
		"hello world",
		"a",
		"",
		"multi\nline\ttext",
		"ünïcødé ✓",
	}
	keys := []string{
		"k",
		"short",
		DeriveKey("alice"),
	}

	for _, key := range keys {
		for _, msg := range messages {
			got, err := Decrypt(Encrypt(msg, key), key)
			if err != nil {
				t.Fatalf("decrypt failed for %q with key %q: %v", msg, key, err)
			}
			if got != msg {
				t.Fatalf("round trip mismatch for %q with key %q: got %q", msg, key, got)
			}
		}
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	first := DeriveKey("alice")
	for i := 0; i < 10; i++ {
		if got := DeriveKey("alice"); got != first {
			t.Fatalf("derivation not stable: %q vs %q", got, first)
		}
	}
}

func TestDeriveKeyShape(t *testing.T) {
	key := DeriveKey("bob")
	if len(key) != keyLength {
		t.Fatalf("expected %d byte key, got %d", keyLength, len(key))
	}
	for _, c := range key {
		if !strings.ContainsRune(keyAlphabet, c) {
			t.Fatalf("key byte %q outside alphabet", c)
		}
	}
}

func TestDeriveKeyDistinguishesUsers(t *testing.T) {
	if DeriveKey("alice") == DeriveKey("bob") {
		t.Fatal("expected different keys for different usernames")
	}
}

func TestDecryptMalformedInput(t *testing.T) {
	if _, err := Decrypt("!!! not base64 !!!", "key"); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
