// Package cryptoutil holds the fixed-contract primitives the session needs:
// an RSA key pair whose public half goes to the server, RSA-OAEP unwrapping
// of the delivered AES key, and AES-CBC file encryption.
package cryptoutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultKeyBits matches the key size the server unwraps with.
	DefaultKeyBits = 1024
	AESKeySize     = 16
)

var (
	ErrKeyLength      = errors.New("cryptoutil: key length must be 16 bytes")
	ErrPrivateKey     = errors.New("cryptoutil: malformed private key")
	ErrDecrypt        = errors.New("cryptoutil: asymmetric decrypt failed")
	ErrNotRSAKey      = errors.New("cryptoutil: key is not RSA")
	ErrShortCipher    = errors.New("cryptoutil: ciphertext too short")
	ErrInvalidPadding = errors.New("cryptoutil: invalid padding")
)

// Suite implements the client's crypto collaborator.
type Suite struct {
	KeyBits int
	Rand    io.Reader
}

func NewSuite() Suite {
	return Suite{KeyBits: DefaultKeyBits, Rand: rand.Reader}
}

func (s Suite) random() io.Reader {
	if s.Rand == nil {
		return rand.Reader
	}
	return s.Rand
}

// GenerateKeyPair returns the public key as DER SubjectPublicKeyInfo and the
// private key as DER PKCS#1.
func (s Suite) GenerateKeyPair() ([]byte, []byte, error) {
	bits := s.KeyBits
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(s.random(), bits)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: generate rsa key: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: marshal public key: %w", err)
	}
	return pub, x509.MarshalPKCS1PrivateKey(key), nil
}

// DecryptAsymmetric unwraps ciphertext with RSA-OAEP (SHA-1).
func (s Suite) DecryptAsymmetric(ciphertext, privateKey []byte) ([]byte, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	plain, err := rsa.DecryptOAEP(sha1.New(), s.random(), key, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plain, nil
}

// EncryptSymmetric encrypts plaintext with AES-128-CBC and PKCS#7 padding and
// prefixes the random IV.
func (s Suite) EncryptSymmetric(plaintext, key []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: aes cipher: %w", err)
	}
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(s.random(), iv); err != nil {
		return nil, fmt.Errorf("cryptoutil: iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// DecryptSymmetric reverses EncryptSymmetric.
func (s Suite) DecryptSymmetric(ciphertext, key []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeyLength, len(key))
	}
	if len(ciphertext) < 2*aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortCipher, len(ciphertext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: aes cipher: %w", err)
	}
	iv := ciphertext[:aes.BlockSize]
	plain := make([]byte, len(ciphertext)-aes.BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext[aes.BlockSize:])
	return unpad(plain, aes.BlockSize)
}

// EncryptAsymmetric wraps plaintext for the holder of the DER public key.
func (s Suite) EncryptAsymmetric(plaintext, publicKey []byte) ([]byte, error) {
	parsed, err := x509.ParsePKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return rsa.EncryptOAEP(sha1.New(), s.random(), pub, plaintext, nil)
}

// ParsePrivateKey accepts PKCS#1 or PKCS#8 DER.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrivateKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return key, nil
}

func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrInvalidPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrInvalidPadding
		}
	}
	return b[:len(b)-n], nil
}
