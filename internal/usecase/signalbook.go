package usecase

import (
	"time"

	"CryptoAssist/internal/domain/models"
)

const (
	DefaultSignalCapacity  = 500
	DefaultSignalRetention = 24 * time.Hour
)

type bookEntry struct {
	signal  models.TradingSignal
	addedAt time.Time
}

// SignalBook is a fixed-capacity ring of active signals in approval order.
// Appending to a full book overwrites the oldest entry; entries older than
// the retention window are pruned from the front.
//
// Not safe for concurrent use; the orchestrator goroutine owns it and
// readers get copies through the published session snapshot.
type SignalBook struct {
	entries   []bookEntry
	start     int
	count     int
	retention time.Duration
	total     uint64
	now       func() time.Time
}

func NewSignalBook(capacity int, retention time.Duration) *SignalBook {
	if capacity <= 0 {
		capacity = DefaultSignalCapacity
	}
	if retention <= 0 {
		retention = DefaultSignalRetention
	}
	return &SignalBook{
		entries:   make([]bookEntry, capacity),
		retention: retention,
		now:       time.Now,
	}
}

// Append adds signals in order and returns how many old entries were overwritten.
func (b *SignalBook) Append(signals ...models.TradingSignal) int {
	overwritten := 0
	now := b.now()
	capacity := len(b.entries)
	for _, s := range signals {
		pos := (b.start + b.count) % capacity
		b.entries[pos] = bookEntry{signal: s, addedAt: now}
		if b.count == capacity {
			b.start = (b.start + 1) % capacity
			overwritten++
		} else {
			b.count++
		}
		b.total++
	}
	return overwritten
}

// Prune drops entries older than the retention window and returns how many were dropped.
func (b *SignalBook) Prune() int {
	cutoff := b.now().Add(-b.retention)
	dropped := 0
	for b.count > 0 && b.entries[b.start].addedAt.Before(cutoff) {
		b.entries[b.start] = bookEntry{}
		b.start = (b.start + 1) % len(b.entries)
		b.count--
		dropped++
	}
	return dropped
}

// Snapshot returns a copy of the retained signals, oldest first.
func (b *SignalBook) Snapshot() []models.TradingSignal {
	out := make([]models.TradingSignal, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+i)%len(b.entries)].signal
	}
	return out
}

func (b *SignalBook) Len() int { return b.count }

// Total is the number of signals ever appended.
func (b *SignalBook) Total() uint64 { return b.total }
