// Package claims builds and verifies signed, replay-protected task-claim
// envelopes. The signing secret lives only in this process; clients submit
// raw task outcomes which are countersigned here before entering the reward
// pipeline.
package claims

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/crypto"
	"github.com/taskrewards/server/internal/model"
)

// MaxAge is the freshness window: claims older (or further in the future)
// than this are rejected outright.
const MaxAge = 5 * time.Minute

const nonceLength = 24

var (
	ErrBadSignature  = errors.New("claim signature mismatch")
	ErrClaimExpired  = errors.New("claim outside freshness window")
	ErrNonceReplayed = errors.New("claim nonce already consumed")
)

// Envelope is a signed task claim. The signature covers the full field set
// including the nonce.
type Envelope struct {
	UserID    uuid.UUID         `json:"user_id"`
	TaskType  model.TaskType    `json:"task_type"`
	Payload   map[string]string `json:"payload,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Nonce     string            `json:"nonce"`
	Signature string            `json:"signature"` // hex HMAC-SHA256
}

// canonical serializes the envelope's signed field set order-independently:
// fixed fields plus payload keys in sorted order, joined as k=v pairs. The
// signature must never depend on JSON key order.
func canonical(env Envelope) []byte {
	pairs := []string{
		"nonce=" + env.Nonce,
		"task=" + string(env.TaskType),
		"ts=" + strconv.FormatInt(env.Timestamp.UnixMilli(), 10),
		"user=" + env.UserID.String(),
	}
	keys := make([]string, 0, len(env.Payload))
	for k := range env.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, "p."+k+"="+env.Payload[k])
	}
	return []byte(strings.Join(pairs, "&"))
}

// Signer constructs envelopes under the claim secret. It must only ever run
// in the trusted process; the secret is distinct from the session-token
// secret and is never serialized.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer. now may be nil for the real clock.
func NewSigner(secret string, now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{secret: []byte(secret), now: now}
}

// Build countersigns a raw task outcome into a fresh envelope with a new
// nonce and the current server time.
func (s *Signer) Build(userID uuid.UUID, t model.TaskType, payload map[string]string) (Envelope, error) {
	nonce, err := crypto.RandomID(nonceLength)
	if err != nil {
		return Envelope{}, fmt.Errorf("generate nonce: %w", err)
	}
	env := Envelope{
		UserID:    userID,
		TaskType:  t,
		Payload:   payload,
		Timestamp: s.now(),
		Nonce:     nonce,
	}
	env.Signature = hex.EncodeToString(crypto.Sign(canonical(env), s.secret))
	return env, nil
}

// Verifier checks envelope signatures, freshness and nonce uniqueness
// within the freshness window. Replaying a signature-valid claim inside the
// window is rejected, not re-honored.
type Verifier struct {
	secret []byte
	maxAge time.Duration
	nonces *nonceCache
	now    func() time.Time
}

// NewVerifier creates a Verifier. now may be nil for the real clock.
func NewVerifier(secret string, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		secret: []byte(secret),
		maxAge: MaxAge,
		nonces: newNonceCache(now),
		now:    now,
	}
}

// Verify checks the envelope and, on success, consumes its nonce.
func (v *Verifier) Verify(env Envelope) error {
	sig, err := hex.DecodeString(env.Signature)
	if err != nil {
		return ErrBadSignature
	}
	if !crypto.VerifySignature(canonical(env), sig, v.secret) {
		return ErrBadSignature
	}

	age := v.now().Sub(env.Timestamp)
	if age < 0 {
		age = -age
	}
	if age > v.maxAge {
		return ErrClaimExpired
	}

	if !v.nonces.consume(env.Nonce, env.Timestamp.Add(v.maxAge)) {
		return ErrNonceReplayed
	}
	return nil
}
