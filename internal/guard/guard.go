// Package guard provides scoped mutual-exclusion locks that prevent two
// concurrent calls from processing the same etching request or the same
// reconciliation pass at once. Each guard returns a release function the
// caller defers immediately, mirroring the acquire/drop-guard pattern a
// canister uses to protect state across await points.
package guard

import (
	"fmt"
	"sync"

	"github.com/Fantasim/runeidx/internal/config"
)

// KeyedGuard tracks in-flight keys, rejecting a second Acquire for a key
// that is already held.
type KeyedGuard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// NewKeyedGuard returns an empty guard.
func NewKeyedGuard() *KeyedGuard {
	return &KeyedGuard{busy: make(map[string]struct{})}
}

// Acquire marks key as in-flight and returns a release function. Acquire
// fails with config.ErrGuardBusy if key is already held.
func (g *KeyedGuard) Acquire(key string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.busy[key]; held {
		return nil, fmt.Errorf("%w: key %q", config.ErrGuardBusy, key)
	}

	g.busy[key] = struct{}{}
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.busy, key)
	}, nil
}

// Held reports whether key currently has an outstanding guard.
func (g *KeyedGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[key]
	return ok
}

// RequestEtchingGuard serializes request_etching calls process-wide: the
// entry point is one-in-flight for the whole process, not per rune name,
// so a second call for any name while the first is still in flight fails
// immediately with config.ErrGuardBusy rather than queueing.
type RequestEtchingGuard struct {
	*KeyedGuard
}

// NewRequestEtchingGuard returns a guard with a single fixed key.
func NewRequestEtchingGuard() *RequestEtchingGuard {
	return &RequestEtchingGuard{KeyedGuard: NewKeyedGuard()}
}

// ProcessEtchingMsgGuard serializes the reconciliation pass so overlapping
// timer ticks never advance the same EtchingState concurrently.
type ProcessEtchingMsgGuard struct {
	*KeyedGuard
}

// NewProcessEtchingMsgGuard returns a guard keyed by etching request txid.
func NewProcessEtchingMsgGuard() *ProcessEtchingMsgGuard {
	return &ProcessEtchingMsgGuard{KeyedGuard: NewKeyedGuard()}
}
