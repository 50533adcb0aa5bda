package save

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

// Key material shipped with the game client. Every cloud save member is
// AES-256-CBC encrypted under this fixed key and IV with PKCS#7 padding.
const (
	DefaultKeyBase64 = "6Jaa0qVAJZuXkZCLiOa/Ax5tIZVu+taKUN1V1nqwkks="
	DefaultIVBase64  = "Kk/wisgNYwcAV8WVGMgyUw=="
)

// Cipher performs the save's symmetric transform. It is a pure in-memory
// transformation and safe for concurrent use.
type Cipher struct {
	key []byte
	iv  []byte
}

// NewCipher builds a Cipher from base64-encoded key and IV material.
func NewCipher(keyBase64, ivBase64 string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad key material: %v", ErrDecryption, err)
	}
	iv, err := base64.StdEncoding.DecodeString(ivBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv material: %v", ErrDecryption, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes, got %d", ErrDecryption, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrDecryption, aes.BlockSize, len(iv))
	}
	return &Cipher{key: key, iv: iv}, nil
}

// DefaultCipher returns a Cipher using the game's shipped key material.
func DefaultCipher() *Cipher {
	c, err := NewCipher(DefaultKeyBase64, DefaultIVBase64)
	if err != nil {
		// The constants are compiled in; failing to decode them is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return c
}

// Decrypt reverses AES-256-CBC and validates PKCS#7 padding.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d", ErrDecryption, len(data), aes.BlockSize)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(plain, data)
	return stripPadding(plain)
}

// Encrypt applies PKCS#7 padding and AES-256-CBC. It is the exact inverse of
// Decrypt and exists for fixture generation and round-trip tests.
func (c *Cipher) Encrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	pad := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return out, nil
}

func stripPadding(plain []byte) ([]byte, error) {
	n := int(plain[len(plain)-1])
	if n == 0 || n > aes.BlockSize || n > len(plain) {
		return nil, fmt.Errorf("%w: invalid padding length %d", ErrDecryption, n)
	}
	for _, b := range plain[len(plain)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrDecryption)
		}
	}
	return plain[:len(plain)-n], nil
}
