package challenges

import "sync"

// keyedMutex serializes mutations per (user, challenge). The store has no
// cross-request locking of its own, so two concurrent completions for the
// same enrollment would otherwise both read the same pre-state and dispatch
// the challenge bonus twice.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[lockKey]*lockEntry
}

type lockKey struct {
	userID      uint
	challengeID uint
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[lockKey]*lockEntry)}
}

// lock acquires the mutex for (userID, challengeID) and returns the release
// function. Entries are reference counted and removed once idle.
func (k *keyedMutex) lock(userID, challengeID uint) func() {
	key := lockKey{userID: userID, challengeID: challengeID}

	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
