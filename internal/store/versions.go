package store

import "sync"

// viewVersions hands out the per-session view version. Versions start at 1
// and only grow until the session is forgotten.
type viewVersions struct {
	mu      sync.Mutex
	current map[string]int64
}

func newViewVersions() *viewVersions {
	return &viewVersions{current: make(map[string]int64)}
}

func (v *viewVersions) next(sessionID string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current[sessionID]++
	return v.current[sessionID]
}

func (v *viewVersions) forget(sessionID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.current, sessionID)
}
