package ledger

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLocks_mutualExclusion(t *testing.T) {
	locks := NewUserLocks()
	userID := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(userID)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestUserLocks_entriesDroppedAfterUnlock(t *testing.T) {
	locks := NewUserLocks()

	unlockA := locks.Lock(uuid.New())
	unlockB := locks.Lock(uuid.New())
	require.Equal(t, 2, locks.size())

	unlockA()
	assert.Equal(t, 1, locks.size())
	unlockB()
	assert.Equal(t, 0, locks.size(), "idle entries must not accumulate")
}

func TestUserLocks_entrySurvivesWhileContended(t *testing.T) {
	locks := NewUserLocks()
	userID := uuid.New()

	unlock := locks.Lock(userID)

	acquired := make(chan struct{})
	go func() {
		second := locks.Lock(userID)
		second()
		close(acquired)
	}()

	// The waiting goroutine keeps the entry alive across the first unlock.
	unlock()
	<-acquired
	assert.Equal(t, 0, locks.size())
}
