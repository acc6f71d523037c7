package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	keySize = 32 // AES-256
	ivSize  = aes.BlockSize
)

// Codec encrypts API payloads with AES-256-CBC. Key and IV are normalized
// to the required lengths so deployments with short secrets keep working;
// the kiosk clients apply the same normalization.
type Codec struct {
	key []byte
	iv  []byte
}

// NewCodec creates a codec from raw key and IV material
func NewCodec(key, iv string) (*Codec, error) {
	if key == "" {
		return nil, errors.New("encryption key must not be empty")
	}
	if iv == "" {
		return nil, errors.New("encryption IV must not be empty")
	}

	return &Codec{
		key: normalize([]byte(key), keySize),
		iv:  normalize([]byte(iv), ivSize),
	}, nil
}

// Encrypt returns the base64-encoded AES-256-CBC ciphertext of plaintext
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))

	mode := cipher.NewCBCEncrypter(block, c.iv)
	mode.CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt
func (c *Codec) Decrypt(encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, c.iv)
	mode.CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext, aes.BlockSize)
}

// normalize pads material with zero bytes or truncates it to size
func normalize(material []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, material)
	return out
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded data length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
