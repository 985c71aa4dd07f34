package state

import (
	"sync"
	"testing"
)

func TestFairMutexExclusion(t *testing.T) {
	m := newFairMutex()
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			defer m.Unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestFairMutexLockUnlockSequence(t *testing.T) {
	m := newFairMutex()
	m.Lock()
	m.Unlock()
	m.Lock()
	m.Unlock()
}
