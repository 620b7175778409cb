package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
	StatusBanned    AccountStatus = "banned"
)

// TaskType identifies a rewardable micro-task.
type TaskType string

const (
	TaskDailyLogin TaskType = "daily_login"
	TaskSpin       TaskType = "spin"
	TaskScratch    TaskType = "scratch"
	TaskQuiz       TaskType = "quiz"
	TaskAd         TaskType = "ad"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskDailyLogin, TaskSpin, TaskScratch, TaskQuiz, TaskAd:
		return true
	}
	return false
}

// ViolationType classifies an abuse signal. External anti-abuse
// collaborators report the last four; the engine itself reports the rest.
type ViolationType string

const (
	ViolationInvalidSignature ViolationType = "invalid_signature"
	ViolationSelfReferral     ViolationType = "self_referral_attempt"
	ViolationDeviceReuse      ViolationType = "device_reuse"
	ViolationRapidClicking    ViolationType = "rapid_clicking"
	ViolationDevTools         ViolationType = "devtools_detected"
	ViolationIframeEmbed      ViolationType = "iframe_embed"
	ViolationTamper           ViolationType = "tamper_detected"
)

// User represents a user account. Monetary amounts are integer cents.
// Invariant: BalanceCents <= TotalEarnedCents at all times.
type User struct {
	ID               uuid.UUID
	Email            string
	PasswordRecord   string // digest:salt, see internal/crypto
	Fingerprint      string
	BalanceCents     int64
	TotalEarnedCents int64
	ReferralCode     string
	ReferredBy       string // referral code supplied at signup, empty if none
	Status           AccountStatus
	CompletedTasks   int
	SuspiciousFlags  int
	SuspensionReason string
	CreatedAt        time.Time
	LastLoginAt      time.Time
}

// TaskRecord is one completed, rewarded task in a user's per-day ledger.
type TaskRecord struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Type        TaskType
	RewardCents int64
	Day         string // calendar date of the server clock, "2006-01-02" in UTC
	CreatedAt   time.Time
}

// ReferralStatus is the state of a referral edge.
type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "pending"
	ReferralApproved ReferralStatus = "approved"
)

// Referral is a directional edge from referrer to referred user.
// The pending -> approved transition is one-way.
type Referral struct {
	ID             uuid.UUID
	ReferrerID     uuid.UUID
	ReferredUserID uuid.UUID
	Status         ReferralStatus
	JoinedAt       time.Time
	ApprovedAt     *time.Time
}

// Violation is one recorded abuse signal. Append-only.
type Violation struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      ViolationType
	Detail    string
	Context   string // reporting component or collaborator
	CreatedAt time.Time
}

// AdminLogEntry is one entry in the admin action audit trail.
// Every privileged invocation is appended, failed attempts included.
type AdminLogEntry struct {
	ID           uuid.UUID
	Action       string
	TargetUserID uuid.UUID
	Params       string
	Success      bool
	CreatedAt    time.Time
}
