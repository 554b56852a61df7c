package pan

import (
	"crypto/aes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrCodec classifies encryption and decryption failures. Create and
// activate paths treat it as fatal; masking never surfaces it.
var ErrCodec = errors.New("pan codec failure")

const maskedPlaceholder = "****"

// Codec encrypts card numbers for storage and derives masked display
// forms. Encryption is deterministic (AES-ECB over a SHA-256-derived key)
// so identical PANs map to identical ciphertext, which lets the store
// enforce uniqueness on the encrypted column without ever comparing
// cleartext.
type Codec struct {
	key []byte
}

func NewCodec(secret string) *Codec {
	sum := sha256.Sum256([]byte(secret))
	return &Codec{key: sum[:16]}
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: empty plaintext", ErrCodec)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodec, err)
	}
	padded := padPKCS7([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(ciphertext[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (c *Codec) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", fmt.Errorf("%w: empty ciphertext", ErrCodec)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d", ErrCodec, len(ciphertext))
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodec, err)
	}
	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += aes.BlockSize {
		block.Decrypt(plaintext[i:i+aes.BlockSize], ciphertext[i:i+aes.BlockSize])
	}
	unpadded, err := unpadPKCS7(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

// Mask renders the stored form as "**** **** **** 1234". Masking is for
// display only and never fails: anything that cannot be decrypted or holds
// fewer than four digits comes back as the fixed placeholder.
func (c *Codec) Mask(encrypted string) string {
	digits, ok := c.decryptDigits(encrypted)
	if !ok || len(digits) < 4 {
		return maskedPlaceholder
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

// MaskPrivileged reveals the first six and last four digits
// ("1234 56** **** 7890") for elevated callers. Numbers too short for a
// partial reveal fall back to the regular mask.
func (c *Codec) MaskPrivileged(encrypted string) string {
	digits, ok := c.decryptDigits(encrypted)
	if !ok || len(digits) < 4 {
		return maskedPlaceholder
	}
	if len(digits) < 10 {
		return "**** **** **** " + digits[len(digits)-4:]
	}
	return fmt.Sprintf("%s %s** **** %s", digits[:4], digits[4:6], digits[len(digits)-4:])
}

func (c *Codec) decryptDigits(encrypted string) (string, bool) {
	if encrypted == "" {
		return "", false
	}
	plaintext, err := c.Decrypt(encrypted)
	if err != nil {
		return "", false
	}
	return stripNonDigits(plaintext), true
}

func stripNonDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func padPKCS7(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty padded data", ErrCodec)
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("%w: invalid padding %d", ErrCodec, padding)
	}
	for i := len(data) - padding; i < len(data); i++ {
		if int(data[i]) != padding {
			return nil, fmt.Errorf("%w: corrupt padding", ErrCodec)
		}
	}
	return data[:len(data)-padding], nil
}
