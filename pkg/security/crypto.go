package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Key derivation parameters
	pbkdfIterations = 100000
	saltLength      = 32
	keyLength       = 32

	tokenIssuer = "crosschain_bridge"
)

// SignatureScheme identifies the curve a signature was produced with
type SignatureScheme string

const (
	SchemeSECP256K1 SignatureScheme = "SECP256K1"
	SchemeED25519   SignatureScheme = "ED25519"
	SchemeECDSA     SignatureScheme = "ECDSA"
)

// expected hex-encoded signature lengths per scheme
var schemeSignatureHexLen = map[SignatureScheme]int{
	SchemeSECP256K1: 130, // 65 bytes: r || s || v
	SchemeED25519:   128, // 64 bytes
	SchemeECDSA:     128, // 64 bytes: r || s
}

// SignatureVerifier checks the structural validity of a signature for a
// given scheme. The cryptographic curve arithmetic itself is a trusted
// external concern; this collaborator gates format, length, and hash
// computability only.
type SignatureVerifier struct{}

// NewSignatureVerifier creates a SignatureVerifier
func NewSignatureVerifier() *SignatureVerifier {
	return &SignatureVerifier{}
}

// Verify reports whether the signature is structurally valid for the scheme
func (v *SignatureVerifier) Verify(data, signature string, scheme SignatureScheme) bool {
	if data == "" || signature == "" {
		return false
	}

	wantLen, known := schemeSignatureHexLen[scheme]
	if !known {
		return false
	}
	if len(signature) != wantLen {
		return false
	}
	if _, err := hex.DecodeString(signature); err != nil {
		return false
	}

	// The message digest must be computable for the signed data
	return v.Hash(data) != ""
}

// Hash returns the hex-encoded SHA-256 digest of data
func (v *SignatureVerifier) Hash(data string) string {
	digest := sha256.Sum256([]byte(data))
	return hex.EncodeToString(digest[:])
}

// KeyPair represents a validator's signing key pair
type KeyPair struct {
	PublicKey  []byte    `json:"public_key"`
	PrivateKey []byte    `json:"private_key"`
	Algorithm  string    `json:"algorithm"`
	Created    time.Time `json:"created"`
}

// GenerateKeyPair creates a new Ed25519 key pair
func GenerateKeyPair() (*KeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	return &KeyPair{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Algorithm:  "Ed25519",
		Created:    time.Now(),
	}, nil
}

// CryptoManager manages signing, token issuance, and key storage for a
// bridge node
type CryptoManager struct {
	activeKeyPair *KeyPair
	jwtSecret     []byte
}

// NewCryptoManager creates a new cryptographic manager
func NewCryptoManager(keyPair *KeyPair, jwtSecret []byte) *CryptoManager {
	return &CryptoManager{
		activeKeyPair: keyPair,
		jwtSecret:     jwtSecret,
	}
}

// Sign creates a digital signature for data
func (cm *CryptoManager) Sign(data []byte) ([]byte, error) {
	if len(cm.activeKeyPair.PrivateKey) == 0 {
		return nil, fmt.Errorf("private key not available")
	}

	return ed25519.Sign(cm.activeKeyPair.PrivateKey, data), nil
}

// Verify checks a digital signature against a public key
func (cm *CryptoManager) Verify(data, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, data, signature)
}

// PublicKeyHex returns the node's public key as a hex string
func (cm *CryptoManager) PublicKeyHex() string {
	return hex.EncodeToString(cm.activeKeyPair.PublicKey)
}

// GenerateSessionToken issues a short-lived JWT identifying this node on
// the validator network
func (cm *CryptoManager) GenerateSessionToken(nodeID string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   nodeID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(cm.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateSessionToken validates a session token and returns the node id
// it was issued to
func (cm *CryptoManager) ValidateSessionToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cm.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid || claims.Issuer != tokenIssuer {
		return "", fmt.Errorf("invalid token")
	}

	return claims.Subject, nil
}

// HashData creates a hex-encoded SHA-256 hash of data
func (cm *CryptoManager) HashData(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// encryptedKeyFile is the on-disk format of an encrypted key pair
type encryptedKeyFile struct {
	Salt       []byte `json:"salt"`
	Ciphertext []byte `json:"ciphertext"`
}

// SaveKeyPair writes the key pair to path, encrypted with a key derived
// from the passphrase
func (cm *CryptoManager) SaveKeyPair(path string, passphrase []byte) error {
	salt, err := generateSalt()
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(cm.activeKeyPair)
	if err != nil {
		return fmt.Errorf("encoding key pair: %w", err)
	}

	aead, err := newAEAD(deriveKey(passphrase, salt))
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	file := encryptedKeyFile{
		Salt:       salt,
		Ciphertext: aead.Seal(nonce, nonce, plaintext, nil),
	}

	encoded, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encoding key file: %w", err)
	}

	if err := os.WriteFile(path, encoded, 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// LoadKeyPair reads and decrypts a key pair from path
func LoadKeyPair(path string, passphrase []byte) (*KeyPair, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	var file encryptedKeyFile
	if err := json.Unmarshal(encoded, &file); err != nil {
		return nil, fmt.Errorf("decoding key file: %w", err)
	}

	aead, err := newAEAD(deriveKey(passphrase, file.Salt))
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(file.Ciphertext) < nonceSize {
		return nil, fmt.Errorf("key file ciphertext too short")
	}

	nonce := file.Ciphertext[:nonceSize]
	plaintext, err := aead.Open(nil, nonce, file.Ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting key file: %w", err)
	}

	keyPair := &KeyPair{}
	if err := json.Unmarshal(plaintext, keyPair); err != nil {
		return nil, fmt.Errorf("decoding key pair: %w", err)
	}
	return keyPair, nil
}

// Helper functions

func deriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, pbkdfIterations, keyLength, sha256.New)
}

func generateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
