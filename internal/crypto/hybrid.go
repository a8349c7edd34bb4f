package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecryption is returned whenever a ciphertext cannot be opened: bad
// padding, truncated envelope, failed auth tag, malformed key. Decryption
// fails closed; partially decrypted data is never returned.
var ErrDecryption = errors.New("decryption failed")

const nonceLength = 12

// envelope is the symmetric wire format: every field base64, the JSON itself
// base64-encoded again before storage. The GCM auth tag is carried separately
// from the ciphertext.
type envelope struct {
	IV      string `json:"iv"`
	Content string `json:"content"`
	AuthTag string `json:"authTag"`
}

// EncryptAsymmetric encrypts plaintext for the holder of the matching private
// key using RSA-OAEP with SHA-256. The result is base64-encoded.
func EncryptAsymmetric(plaintext, publicKey string) (string, error) {
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("asymmetric encryption: %w", err)
	}
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("asymmetric encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptAsymmetric reverses EncryptAsymmetric with the recipient's private key.
func DecryptAsymmetric(encrypted, privateKey string) (string, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plaintext), nil
}

// EncryptSymmetric encrypts plaintext under a 256-bit key derived by hashing
// keyMaterial with SHA-256. Typically keyMaterial is the sender's own private
// key, so only the sender can later reopen their sent copy. A fresh 12-byte
// nonce is drawn per call and the result is an AES-256-GCM envelope.
func EncryptSymmetric(plaintext, keyMaterial string) (string, error) {
	gcm, err := deriveAEAD(keyMaterial)
	if err != nil {
		return "", fmt.Errorf("symmetric encryption: %w", err)
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("symmetric encryption: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - gcm.Overhead()

	env := envelope{
		IV:      base64.StdEncoding.EncodeToString(nonce),
		Content: base64.StdEncoding.EncodeToString(sealed[:tagStart]),
		AuthTag: base64.StdEncoding.EncodeToString(sealed[tagStart:]),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("symmetric encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecryptSymmetric re-derives the key from keyMaterial, parses the envelope
// and verifies the auth tag. Any structural defect or tag mismatch yields
// ErrDecryption.
func DecryptSymmetric(encrypted, keyMaterial string) (string, error) {
	gcm, err := deriveAEAD(keyMaterial)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if len(nonce) != nonceLength {
		return "", fmt.Errorf("%w: bad nonce length %d", ErrDecryption, len(nonce))
	}
	content, err := base64.StdEncoding.DecodeString(env.Content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if len(tag) != gcm.Overhead() {
		return "", fmt.Errorf("%w: bad auth tag length %d", ErrDecryption, len(tag))
	}

	plaintext, err := gcm.Open(nil, nonce, append(content, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plaintext), nil
}

// deriveAEAD hashes the formatted key material into an AES-256-GCM instance.
// Formatting first keeps raw and PEM-wrapped key material interchangeable.
func deriveAEAD(keyMaterial string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(FormatPrivateKey(keyMaterial)))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
