package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// sealedPrefix marks payloads written by Seal with a key configured.
var sealedPrefix = []byte("sc1:")

var (
	ErrKeyRequired = errors.New("payload is encrypted but no DATA_ENCRYPTION_KEY is configured")
	ErrCorrupt     = errors.New("encrypted payload is corrupt")
)

// Box seals cache payloads with AES-256-GCM. Without a key it passes data
// through unchanged.
type Box struct {
	aead cipher.AEAD
}

func New(key string) (*Box, error) {
	if key == "" {
		return &Box{}, nil
	}
	decoded, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be 32 bytes after decoding")
	}
	block, err := aes.NewCipher(decoded)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

func (b *Box) Configured() bool {
	return b != nil && b.aead != nil
}

func (b *Box) Seal(plain []byte) ([]byte, error) {
	if !b.Configured() {
		return plain, nil
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sealedPrefix)+len(nonce)+len(plain)+b.aead.Overhead())
	out = append(out, sealedPrefix...)
	out = append(out, nonce...)
	return b.aead.Seal(out, nonce, plain, nil), nil
}

// Open reverses Seal. Payloads without the sealed prefix are returned as they
// are, so a cache written before a key was set stays readable.
func (b *Box) Open(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, sealedPrefix) {
		return data, nil
	}
	if !b.Configured() {
		return nil, ErrKeyRequired
	}
	data = data[len(sealedPrefix):]
	if len(data) < b.aead.NonceSize() {
		return nil, ErrCorrupt
	}
	nonce, ciphertext := data[:b.aead.NonceSize()], data[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return plain, nil
}

func decodeKey(raw string) ([]byte, error) {
	if len(raw) == 64 {
		decoded, err := hex.DecodeString(raw)
		if err == nil {
			return decoded, nil
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	return []byte(raw), nil
}
