package service

import "sync"

type memberKey struct {
	guildID int64
	userID  int64
}

type memberLockEntry struct {
	mu   sync.Mutex
	refs int
}

// memberLocks serializes work per guild member. Entries are dropped once no goroutine holds or waits on them.
type memberLocks struct {
	mu      sync.Mutex
	entries map[memberKey]*memberLockEntry
}

func newMemberLocks() *memberLocks {
	return &memberLocks{entries: make(map[memberKey]*memberLockEntry)}
}

// Lock blocks until the member's lock is held and returns its release function
func (l *memberLocks) Lock(guildID, userID int64) func() {
	key := memberKey{guildID: guildID, userID: userID}

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &memberLockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

func (l *memberLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
