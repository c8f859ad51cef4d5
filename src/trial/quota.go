// Package trial meters token usage for anonymous trial clients. State lives
// in process memory for the process lifetime; there is no persistence and no
// eviction, only monotonic accumulation per trial id.
package trial

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config is the server-side trial mode arrangement.
type Config struct {
	Enabled    bool
	Provider   string
	APIKey     string
	TokenLimit int
}

// Snapshot is the quota state observed at a single linearization point.
type Snapshot struct {
	LimitTokens     int
	UsedTokens      int
	RemainingTokens int
	Exhausted       bool
}

// QuotaError reports that the trial token quota did not cover a request.
type QuotaError struct {
	LimitTokens int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("trial quota exceeded (%d tokens)", e.LimitTokens)
}

// Meter tracks cumulative usage per trial id. Entries hold atomic counters
// so concurrent requests for different ids never contend, and concurrent
// charges for the same id are linearized by compare-and-swap rather than a
// meter-wide lock.
type Meter struct {
	cfg   Config
	usage sync.Map // trial id -> *usageEntry
}

type usageEntry struct {
	used    atomic.Int64
	updated atomic.Int64 // unix nanoseconds of the last charge
}

func NewMeter(cfg Config) *Meter {
	return &Meter{cfg: cfg}
}

// Enabled reports whether trial mode is configured at all.
func (m *Meter) Enabled() bool {
	return m.cfg.Enabled && strings.TrimSpace(m.cfg.APIKey) != ""
}

// EnabledFor reports whether trial mode covers the given provider.
func (m *Meter) EnabledFor(provider string) bool {
	return m.Enabled() &&
		strings.EqualFold(strings.TrimSpace(m.cfg.Provider), strings.TrimSpace(provider))
}

// APIKey returns the server-configured trial key, or empty when absent.
func (m *Meter) APIKey() string {
	return strings.TrimSpace(m.cfg.APIKey)
}

// Limit is the configured token quota, never below one.
func (m *Meter) Limit() int {
	if m.cfg.TokenLimit < 1 {
		return 1
	}
	return m.cfg.TokenLimit
}

// Snapshot reads the current state for a trial id. A blank id is reported
// as exhausted so it can never borrow the trial key.
func (m *Meter) Snapshot(trialID string) Snapshot {
	limit := m.Limit()
	id := strings.TrimSpace(trialID)
	if id == "" {
		return Snapshot{LimitTokens: limit, RemainingTokens: limit, Exhausted: true}
	}

	used := 0
	if v, ok := m.usage.Load(id); ok {
		used = int(v.(*usageEntry).used.Load())
	}
	return snapshotFor(limit, used)
}

// EnsureCanUse is the pre-flight check: it fails once no tokens remain for
// the id. Ids never seen before pass with the full quota remaining.
func (m *Meter) EnsureCanUse(trialID string) error {
	snap := m.Snapshot(trialID)
	if snap.Exhausted {
		return &QuotaError{LimitTokens: snap.LimitTokens}
	}
	return nil
}

// Charge atomically adds tokens to the id's usage and returns the post-update
// snapshot. When the charge pushes usage past the limit the spend is still
// recorded (usage stays monotonic and the id stays exhausted) but a
// *QuotaError is returned, so of two racing charges that together overrun the
// quota exactly one is rejected.
func (m *Meter) Charge(trialID string, tokens int) (Snapshot, error) {
	id := strings.TrimSpace(trialID)
	if id == "" {
		return m.Snapshot(trialID), nil
	}
	if tokens < 0 {
		tokens = 0
	}

	limit := m.Limit()
	v, _ := m.usage.LoadOrStore(id, &usageEntry{})
	entry := v.(*usageEntry)

	for {
		current := entry.used.Load()
		next := current + int64(tokens)
		if !entry.used.CompareAndSwap(current, next) {
			continue
		}
		entry.updated.Store(time.Now().UnixNano())

		snap := snapshotFor(limit, int(next))
		if next > int64(limit) && tokens > 0 {
			return snap, &QuotaError{LimitTokens: limit}
		}
		return snap, nil
	}
}

func snapshotFor(limit, used int) Snapshot {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		LimitTokens:     limit,
		UsedTokens:      used,
		RemainingTokens: remaining,
		Exhausted:       remaining <= 0,
	}
}
