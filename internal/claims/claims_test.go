package claims

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/model"
)

const testSecret = "claim-secret-for-tests"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSignAndVerify(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	signer := NewSigner(testSecret, fixedClock(now))
	verifier := NewVerifier(testSecret, fixedClock(now))

	env, err := signer.Build(uuid.New(), model.TaskQuiz, map[string]string{"correctAnswers": "4"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := verifier.Verify(env); err != nil {
		t.Fatalf("fresh envelope should verify: %v", err)
	}
}

func TestVerify_alteredFieldFails(t *testing.T) {
	now := time.Now()
	signer := NewSigner(testSecret, fixedClock(now))
	verifier := NewVerifier(testSecret, fixedClock(now))

	env, err := signer.Build(uuid.New(), model.TaskQuiz, map[string]string{"correctAnswers": "2"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tampered := env
	tampered.Payload = map[string]string{"correctAnswers": "5"}
	if err := verifier.Verify(tampered); !errors.Is(err, ErrBadSignature) {
		t.Errorf("altered payload should fail with ErrBadSignature, got %v", err)
	}

	tampered = env
	tampered.TaskType = model.TaskSpin
	if err := verifier.Verify(tampered); !errors.Is(err, ErrBadSignature) {
		t.Errorf("altered task type should fail with ErrBadSignature, got %v", err)
	}

	tampered = env
	tampered.UserID = uuid.New()
	if err := verifier.Verify(tampered); !errors.Is(err, ErrBadSignature) {
		t.Errorf("altered user should fail with ErrBadSignature, got %v", err)
	}
}

func TestVerify_wrongSecret(t *testing.T) {
	now := time.Now()
	signer := NewSigner("one-secret", fixedClock(now))
	verifier := NewVerifier("another-secret", fixedClock(now))

	env, _ := signer.Build(uuid.New(), model.TaskAd, map[string]string{"adWatchDuration": "6000"})
	if err := verifier.Verify(env); !errors.Is(err, ErrBadSignature) {
		t.Errorf("cross-secret envelope should fail with ErrBadSignature, got %v", err)
	}
}

func TestVerify_staleClaim(t *testing.T) {
	signedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	signer := NewSigner(testSecret, fixedClock(signedAt))
	env, _ := signer.Build(uuid.New(), model.TaskDailyLogin, nil)

	// 6 minutes later the signature is still valid but the claim is stale.
	verifier := NewVerifier(testSecret, fixedClock(signedAt.Add(6*time.Minute)))
	if err := verifier.Verify(env); !errors.Is(err, ErrClaimExpired) {
		t.Errorf("6-minute-old claim should fail with ErrClaimExpired, got %v", err)
	}

	// A claim from the future is just as suspect.
	verifier = NewVerifier(testSecret, fixedClock(signedAt.Add(-6*time.Minute)))
	if err := verifier.Verify(env); !errors.Is(err, ErrClaimExpired) {
		t.Errorf("future claim should fail with ErrClaimExpired, got %v", err)
	}
}

func TestVerify_replayRejected(t *testing.T) {
	now := time.Now()
	signer := NewSigner(testSecret, fixedClock(now))
	verifier := NewVerifier(testSecret, fixedClock(now))

	env, _ := signer.Build(uuid.New(), model.TaskSpin, nil)
	if err := verifier.Verify(env); err != nil {
		t.Fatalf("first presentation should verify: %v", err)
	}
	if err := verifier.Verify(env); !errors.Is(err, ErrNonceReplayed) {
		t.Errorf("replay within the window should fail with ErrNonceReplayed, got %v", err)
	}
}

func TestCanonical_orderIndependent(t *testing.T) {
	env := Envelope{
		UserID:    uuid.New(),
		TaskType:  model.TaskQuiz,
		Timestamp: time.Now(),
		Nonce:     "abc",
	}
	a := env
	a.Payload = map[string]string{"x": "1", "y": "2", "z": "3"}
	b := env
	b.Payload = map[string]string{"z": "3", "y": "2", "x": "1"}
	if string(canonical(a)) != string(canonical(b)) {
		t.Error("canonical form must not depend on payload insertion order")
	}
}

func TestNonceCache_expiredNonceReusable(t *testing.T) {
	current := time.Now()
	cache := newNonceCache(func() time.Time { return current })

	if !cache.consume("n1", current.Add(time.Minute)) {
		t.Fatal("fresh nonce should be consumable")
	}
	if cache.consume("n1", current.Add(time.Minute)) {
		t.Fatal("unexpired nonce must not be consumable twice")
	}
	current = current.Add(2 * time.Minute)
	if !cache.consume("n1", current.Add(time.Minute)) {
		t.Error("expired nonce entry should not block consumption")
	}
}
