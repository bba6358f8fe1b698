// Package cipher implements the optional client-side message obfuscation.
//
// This is NOT cryptography. The key is a pure function of the username, so
// anyone who knows a username can derive the key and read every message; the
// transform itself is a repeating-key XOR. It exists only so casual readers of
// the wire don't see plaintext, and it is kept byte-compatible with the
// deterministic variant deployed in existing clients (an older variant used a
// process-random key, which made peers unable to decrypt each other; that
// variant is intentionally not supported).
package cipher

import (
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	keyLength   = 32
)

// ErrDecode is returned for transport-encoded input that cannot be decoded.
var ErrDecode = errors.New("malformed ciphertext")

// DeriveKey maps a username to its fixed-length obfuscation key. Same
// username, same key, always — across calls and across client instances.
// The rolling hash mirrors the deployed derivation exactly: 32-bit
// h = h*31 + char, then alphabet[abs((h + i*13) mod 62)] per key byte.
func DeriveKey(username string) string {
	var hash int32
	for _, r := range username {
		hash = (hash << 5) - hash + int32(r)
	}

	key := make([]byte, keyLength)
	for i := range key {
		idx := (int64(hash) + int64(i)*13) % int64(len(keyAlphabet))
		if idx < 0 {
			idx = -idx
		}
		key[i] = keyAlphabet[idx]
	}
	return string(key)
}

// Encrypt XORs plaintext against the repeating key and base64-encodes the
// result for transport. An empty key applies no transform.
func Encrypt(plaintext, key string) string {
	return base64.StdEncoding.EncodeToString(xorBytes([]byte(plaintext), key))
}

// Decrypt reverses Encrypt: Decrypt(Encrypt(m, k), k) == m for every m and
// every k of length >= 1. Malformed transport encoding yields ErrDecode.
func Decrypt(ciphertext, key string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(xorBytes(data, key)), nil
}

func xorBytes(data []byte, key string) []byte {
	if key == "" {
		return data
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
