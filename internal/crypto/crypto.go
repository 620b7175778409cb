package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen     = 16
	pbkdf2Iters = 210_000
	keyLen      = 32
)

// idAlphabet is URL-safe and unambiguous enough for referral codes.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Hash returns the SHA-256 digest of msg.
func Hash(msg []byte) []byte {
	sum := sha256.Sum256(msg)
	return sum[:]
}

// HashPassword derives a salted digest from password and returns the
// persisted record in the form "hexdigest:hexsalt". The raw password is
// never stored or logged.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest := deriveKey(password, salt)
	return hex.EncodeToString(digest) + ":" + hex.EncodeToString(salt), nil
}

// VerifyPassword recomputes the digest from the record's salt and compares
// in constant time. Malformed records verify as false, never as an error,
// so callers cannot distinguish them from a wrong password.
func VerifyPassword(password, record string) bool {
	digestHex, saltHex, ok := strings.Cut(record, ":")
	if !ok {
		return false
	}
	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	computed := deriveKey(password, salt)
	return subtle.ConstantTimeCompare(computed, digest) == 1
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iters, keyLen, sha256.New)
}

// Sign returns the HMAC-SHA256 signature of msg under secret.
func Sign(msg, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	return mac.Sum(nil)
}

// VerifySignature recomputes the HMAC and compares in constant time.
func VerifySignature(msg, sig, secret []byte) bool {
	return hmac.Equal(Sign(msg, secret), sig)
}

// RandomID returns an n-character identifier drawn from crypto/rand.
// Used for nonces and referral codes; never math/rand.
func RandomID(n int) (string, error) {
	max := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b[i] = idAlphabet[idx.Int64()]
	}
	return string(b), nil
}
