package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_StartsAtBase(t *testing.T) {
	clock := NewDeterministicClock(1000, 10)
	assert.Equal(t, uint64(1000), clock.Current())
}

func TestDeterministicClock_NowAdvancesByStep(t *testing.T) {
	clock := NewDeterministicClock(1000, 10)

	assert.Equal(t, uint64(1010), clock.Now())
	assert.Equal(t, uint64(1020), clock.Now())
	assert.Equal(t, uint64(1020), clock.Current())
}

func TestDeterministicClock_ZeroStep(t *testing.T) {
	clock := NewDeterministicClock(0, 0)
	assert.Equal(t, uint64(1), clock.Now())
	assert.Equal(t, uint64(2), clock.Now())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(5, 1)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, uint64(5), clock.Current())
	assert.Equal(t, uint64(6), clock.Now())
}

func TestDeterministicClock_ConcurrentNowIsUnique(t *testing.T) {
	clock := NewDeterministicClock(0, 1)

	const n = 100
	seen := make(chan uint64, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- clock.Now()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for ts := range seen {
		assert.False(t, unique[ts], "duplicate timestamp %d", ts)
		unique[ts] = true
	}
	assert.Len(t, unique, n)
	assert.Equal(t, uint64(n), clock.Current())
}
