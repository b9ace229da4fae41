// Package shared provides helpers for generating random secrets and wiping
// sensitive material from memory.
package shared

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// MakeRandBytes returns size bytes read from crypto/rand.
func MakeRandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MakeRandHexString generates size random bytes and returns them hex encoded,
// so the result is twice as long as size.
func MakeRandHexString(size int) (string, error) {
	b, err := MakeRandBytes(size)
	if err != nil {
		return "", err
	}
	defer WipeByteArray(b)
	return hex.EncodeToString(b), nil
}

// MakeRandBase64String generates size random bytes and returns them in
// standard padded base64, the encoding used for signing secrets.
func MakeRandBase64String(size int) (string, error) {
	b, err := MakeRandBytes(size)
	if err != nil {
		return "", err
	}
	defer WipeByteArray(b)
	return base64.StdEncoding.EncodeToString(b), nil
}

// WipeByteArray overwrites b with zeros. A nil slice is ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
