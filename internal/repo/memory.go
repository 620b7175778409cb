package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/model"
)

// Memory is an in-memory implementation of all repo interfaces, exposed as
// per-interface views (Users, Tasks, ...). It backs the unit and e2e test
// suites and the dev-mode server; production uses the Postgres
// implementations. A single mutex guards all state, which also gives the
// ApplyReward and Approve transactions their atomicity.
type Memory struct {
	mu         sync.Mutex
	users      map[uuid.UUID]model.User
	tasks      map[uuid.UUID][]model.TaskRecord
	referrals  map[uuid.UUID]model.Referral
	violations []model.Violation
	adminLog   []model.AdminLogEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[uuid.UUID]model.User),
		tasks:     make(map[uuid.UUID][]model.TaskRecord),
		referrals: make(map[uuid.UUID]model.Referral),
	}
}

func (m *Memory) Users() UserRepo           { return memoryUsers{m} }
func (m *Memory) Tasks() TaskRepo           { return memoryTasks{m} }
func (m *Memory) Referrals() ReferralRepo   { return memoryReferrals{m} }
func (m *Memory) Violations() ViolationRepo { return memoryViolations{m} }
func (m *Memory) AdminLogs() AdminLogRepo   { return memoryAdminLog{m} }

// AdminLogEntries returns a copy of the audit trail, for tests.
func (m *Memory) AdminLogEntries() []model.AdminLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AdminLogEntry, len(m.adminLog))
	copy(out, m.adminLog)
	return out
}

type memoryUsers struct{ m *Memory }

func (r memoryUsers) Create(ctx context.Context, u model.User) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.ReferralCode == u.ReferralCode {
			return ErrDuplicate
		}
		if u.Fingerprint != "" && existing.Fingerprint == u.Fingerprint {
			return ErrDuplicate
		}
	}
	m.users[u.ID] = u
	return nil
}

func (r memoryUsers) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r memoryUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r memoryUsers) GetByReferralCode(ctx context.Context, code string) (model.User, error) {
	return r.find(func(u model.User) bool { return u.ReferralCode == code })
}

func (r memoryUsers) GetByFingerprint(ctx context.Context, fingerprint string) (model.User, error) {
	if fingerprint == "" {
		return model.User{}, ErrNotFound
	}
	return r.find(func(u model.User) bool { return u.Fingerprint == fingerprint })
}

func (r memoryUsers) find(match func(model.User) bool) (model.User, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (r memoryUsers) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(u *model.User) { u.LastLoginAt = at })
}

func (r memoryUsers) SetStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus, reason string) error {
	return r.update(id, func(u *model.User) {
		u.Status = status
		u.SuspensionReason = reason
	})
}

func (r memoryUsers) Suspend(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, ErrNotFound
	}
	if u.Status != model.StatusActive {
		return false, nil
	}
	u.Status = model.StatusSuspended
	u.SuspensionReason = reason
	m.users[id] = u
	return true, nil
}

func (r memoryUsers) AddSuspiciousFlag(ctx context.Context, id uuid.UUID) (int, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	u.SuspiciousFlags++
	m.users[id] = u
	return u.SuspiciousFlags, nil
}

func (r memoryUsers) SetBalance(ctx context.Context, id uuid.UUID, cents int64) error {
	return r.update(id, func(u *model.User) { u.BalanceCents = cents })
}

func (r memoryUsers) AdjustBalance(ctx context.Context, id uuid.UUID, deltaCents int64) (int64, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	u.BalanceCents += deltaCents
	if deltaCents > 0 {
		u.TotalEarnedCents += deltaCents
	}
	if u.BalanceCents < 0 {
		u.BalanceCents = 0
	}
	m.users[id] = u
	return u.BalanceCents, nil
}

func (r memoryUsers) update(id uuid.UUID, mutate func(*model.User)) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	mutate(&u)
	m.users[id] = u
	return nil
}

type memoryTasks struct{ m *Memory }

func (r memoryTasks) ApplyReward(ctx context.Context, userID uuid.UUID, t model.TaskType, rewardCents int64, day string, at time.Time) (model.User, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return model.User{}, ErrNotFound
	}
	u.BalanceCents += rewardCents
	u.TotalEarnedCents += rewardCents
	u.CompletedTasks++
	m.users[userID] = u
	m.tasks[userID] = append(m.tasks[userID], model.TaskRecord{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        t,
		RewardCents: rewardCents,
		Day:         day,
		CreatedAt:   at,
	})
	return u, nil
}

func (r memoryTasks) CountsForDay(ctx context.Context, userID uuid.UUID, day string) (int, map[model.TaskType]int, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	perType := make(map[model.TaskType]int)
	total := 0
	for _, rec := range m.tasks[userID] {
		if rec.Day != day {
			continue
		}
		total++
		perType[rec.Type]++
	}
	return total, perType, nil
}

func (r memoryTasks) LastAdAt(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var last time.Time
	found := false
	for _, rec := range m.tasks[userID] {
		if rec.Type == model.TaskAd && rec.CreatedAt.After(last) {
			last = rec.CreatedAt
			found = true
		}
	}
	return last, found, nil
}

type memoryReferrals struct{ m *Memory }

func (r memoryReferrals) Create(ctx context.Context, ref model.Referral) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referrals[ref.ID] = ref
	return nil
}

func (r memoryReferrals) GetByReferredUser(ctx context.Context, referredUserID uuid.UUID) (model.Referral, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ref := range m.referrals {
		if ref.ReferredUserID == referredUserID {
			return ref, nil
		}
	}
	return model.Referral{}, ErrNotFound
}

func (r memoryReferrals) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]model.Referral, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Referral
	for _, ref := range m.referrals {
		if ref.ReferrerID == referrerID {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r memoryReferrals) Approve(ctx context.Context, id uuid.UUID, bonusCents int64, at time.Time) (bool, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.referrals[id]
	if !ok {
		return false, ErrNotFound
	}
	if ref.Status != model.ReferralPending {
		return false, nil
	}
	ref.Status = model.ReferralApproved
	approvedAt := at
	ref.ApprovedAt = &approvedAt
	m.referrals[id] = ref
	for _, userID := range []uuid.UUID{ref.ReferrerID, ref.ReferredUserID} {
		u, ok := m.users[userID]
		if !ok {
			continue
		}
		u.BalanceCents += bonusCents
		u.TotalEarnedCents += bonusCents
		m.users[userID] = u
	}
	return true, nil
}

type memoryViolations struct{ m *Memory }

func (r memoryViolations) Append(ctx context.Context, v model.Violation) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations = append(m.violations, v)
	return nil
}

func (r memoryViolations) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Violation, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Violation
	for _, v := range m.violations {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

type memoryAdminLog struct{ m *Memory }

func (r memoryAdminLog) Append(ctx context.Context, e model.AdminLogEntry) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminLog = append(m.adminLog, e)
	return nil
}
