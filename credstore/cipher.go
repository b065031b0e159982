package credstore

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Cipher is the reversible transform applied to records before they reach a
// [Medium]. Open(Seal(x)) must equal x for any input. Implementations are
// deliberately replaceable; nothing in the store assumes the output is
// actually confidential.
type Cipher interface {
	Seal(data []byte) ([]byte, error)
	Open(data []byte) ([]byte, error)
}

// Base64Cipher is the default transform. It is obfuscation only, kept for
// compatibility with records written by earlier releases.
type Base64Cipher struct{}

func (Base64Cipher) Seal(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out, nil
}

func (Base64Cipher) Open(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return out[:n], nil
}

// XORCipher applies a repeating-key XOR over the record. Like Base64Cipher it
// is not cryptographically meaningful; it exists to exercise cipher
// substitution end to end.
type XORCipher struct {
	Key []byte
}

func NewXORCipher(key []byte) (*XORCipher, error) {
	if len(key) == 0 {
		return nil, errors.New("xor cipher requires a non-empty key")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &XORCipher{Key: k}, nil
}

func (c *XORCipher) Seal(data []byte) ([]byte, error) { return c.apply(data), nil }

func (c *XORCipher) Open(data []byte) ([]byte, error) { return c.apply(data), nil }

func (c *XORCipher) apply(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ c.Key[i%len(c.Key)]
	}
	return out
}
