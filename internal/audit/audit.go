// Package audit keeps the bounded in-memory history of control decisions.
// The log is an append-only FIFO owned by the control loop; consumers get
// copies, never views into the ring.
package audit

import (
	"sync"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// DefaultCapacity is the number of decisions retained when none is configured.
const DefaultCapacity = 50

// Log is a bounded FIFO of the most recent decisions. Oldest entries are
// evicted on overflow and are never deleted by consumers.
type Log struct {
	mu      sync.RWMutex
	entries []types.Decision
	next    int
	full    bool
}

// NewLog creates a decision log holding at most capacity entries.
// Non-positive capacities fall back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{entries: make([]types.Decision, capacity)}
}

// Append records one decision, evicting the oldest when the ring is full.
func (l *Log) Append(d types.Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = d
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Len reports how many decisions are currently retained.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Snapshot returns the retained decisions, newest first.
func (l *Log) Snapshot() []types.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = len(l.entries)
	}

	out := make([]types.Decision, 0, n)
	for i := 0; i < n; i++ {
		idx := l.next - 1 - i
		if idx < 0 {
			idx += len(l.entries)
		}
		out = append(out, l.entries[idx])
	}
	return out
}

// Latest returns the most recent decision, if any.
func (l *Log) Latest() (types.Decision, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.next == 0 && !l.full {
		return types.Decision{}, false
	}
	idx := l.next - 1
	if idx < 0 {
		idx += len(l.entries)
	}
	return l.entries[idx], true
}
