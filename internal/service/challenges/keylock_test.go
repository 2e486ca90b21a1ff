package challenges

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock(1, 1)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("Expected counter 100, got %d", counter)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.lock(1, 1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := k.lock(2, 1)
		unlockB()
		close(done)
	}()
	<-done
}

func TestKeyedMutex_CleansUpIdleEntries(t *testing.T) {
	k := newKeyedMutex()

	unlock := k.lock(1, 1)
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.locks) != 0 {
		t.Errorf("Expected empty lock table, got %d entries", len(k.locks))
	}
}
