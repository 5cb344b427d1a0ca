package envreg

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// EncryptedMarker is the fixed prefix that flags a settings file body as
// ciphertext, per §6: "PWENC:" + base64(RSA-OAEP-SHA256(key||iv)) + "::" +
// base64(AES-256-CBC(ciphertext)).
const EncryptedMarker = "PWENC:"

// IsEncrypted reports whether body is a PWENC-wrapped settings file.
func IsEncrypted(body []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(body)), EncryptedMarker)
}

// Decryptor holds the RSA private key used to unwrap the AES key+IV
// envelope. A nil Decryptor means no private key is configured; decrypting
// then fails with SettingsDecryptionUnavailable at the call site.
type Decryptor struct {
	priv *rsa.PrivateKey
}

// NewDecryptor parses a PEM-encoded PKCS#1 or PKCS#8 RSA private key, as
// supplied via PORTWAY_ENCRYPTION_KEY.
func NewDecryptor(pemBytes []byte) (*Decryptor, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("envreg: no PEM block found in encryption key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &Decryptor{priv: key}, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("envreg: parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("envreg: private key is not RSA")
	}
	return &Decryptor{priv: key}, nil
}

// Decrypt unwraps a PWENC-marked body into its plaintext settings JSON.
//
// This is deliberately implemented on crypto/rsa + crypto/aes + crypto/cipher
// rather than one of the pack's higher-level encryption libraries
// (filippo.io/age, github.com/ecies/go/v2): those implement different
// envelope schemes (X25519/ChaCha20-Poly1305, secp256k1 ECIES) and would
// silently change the wire format. §6 pins the envelope's exact shape —
// RSA-OAEP-SHA256 wrapping a raw AES-256-CBC key+IV pair — so the stdlib
// primitives that shape is built from are the only faithful choice.
func (d *Decryptor) Decrypt(body []byte) ([]byte, error) {
	if d == nil || d.priv == nil {
		return nil, fmt.Errorf("envreg: no decryption key configured")
	}
	trimmed := strings.TrimSpace(string(body))
	rest := strings.TrimPrefix(trimmed, EncryptedMarker)
	parts := strings.SplitN(rest, "::", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("envreg: malformed encrypted settings body")
	}
	wrappedKeyB64, cipherB64 := parts[0], parts[1]

	wrappedKey, err := base64.StdEncoding.DecodeString(wrappedKeyB64)
	if err != nil {
		return nil, fmt.Errorf("envreg: decode key envelope: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(cipherB64)
	if err != nil {
		return nil, fmt.Errorf("envreg: decode ciphertext: %w", err)
	}

	keyAndIV, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, d.priv, wrappedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("envreg: unwrap aes key: %w", err)
	}
	if len(keyAndIV) != 32+16 {
		return nil, fmt.Errorf("envreg: unwrapped key material has wrong length %d", len(keyAndIV))
	}
	key, iv := keyAndIV[:32], keyAndIV[32:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envreg: build aes cipher: %w", err)
	}
	if len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("envreg: ciphertext is not a multiple of the block size")
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, fmt.Errorf("envreg: empty plaintext")
	}
	pad := int(data[n-1])
	if pad == 0 || pad > n || pad > aes.BlockSize {
		return nil, fmt.Errorf("envreg: invalid pkcs7 padding")
	}
	return data[:n-pad], nil
}
