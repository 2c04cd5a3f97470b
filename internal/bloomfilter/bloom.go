// Package bloomfilter implements a counting bloom filter over entity
// names, persisted to a sidecar file next to the main database. The
// filter is a superset of committed names: contains() never returns
// false for a name that exists, though it may false-positive on a name
// that does not (spec invariant P3).
package bloomfilter

import (
	"math"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// counterMax bounds each slot to a small saturating counter. 8 bits keeps
// the sidecar compact while tolerating heavy churn before saturating.
const counterMax = 255

// Filter is a thread-safe counting bloom filter.
type Filter struct {
	mu       sync.Mutex
	counters []uint8
	numHash  uint32
	seed     uint64
}

// Stats summarizes filter occupancy for get_stats (C9).
type Stats struct {
	Size            uint32
	NumHashes       uint32
	NonZeroCounters uint32
	SaturatedSlots  uint32
	Load            float64
}

// New sizes a filter from the expected item count and target false
// positive rate, per the standard bloom-filter sizing formulas:
//
//	m = ceil(-n*ln(p) / (ln(2)^2))
//	k = round(m/n * ln(2))
func New(expectedItems int, falsePositiveRate float64) *Filter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	n := float64(expectedItems)
	m := math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	k := math.Round((m / n) * math.Ln2)
	if k < 1 {
		k = 1
	}

	return &Filter{
		counters: make([]uint8, uint32(m)),
		numHash:  uint32(k),
		seed:     0x9e3779b97f4a7c15,
	}
}

// newFromParams reconstructs a Filter from sidecar header fields, used by
// sidecar.Load.
func newFromParams(size, numHash uint32, seed uint64, counters []uint8) *Filter {
	return &Filter{counters: counters, numHash: numHash, seed: seed}
}

func (f *Filter) slots(key string) []uint32 {
	key = strings.ToLower(key)
	h := xxhash.Sum64String(key)
	h1 := uint32(h)
	h2 := uint32(h >> 32)
	if h2 == 0 {
		h2 = 1 // avoid a degenerate all-zero stride
	}

	m := uint32(len(f.counters))
	out := make([]uint32, f.numHash)
	for i := uint32(0); i < f.numHash; i++ {
		out[i] = (h1 + i*h2) % m
	}
	return out
}

// Add increments every slot hashed from key, saturating at counterMax.
func (f *Filter) Add(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots(key) {
		if f.counters[s] < counterMax {
			f.counters[s]++
		}
	}
}

// Remove decrements every slot hashed from key. Saturated counters
// (at counterMax) are left alone — removal is best-effort, and a
// saturated slot is treated as "unknown, assume present" so the filter
// never drops below superset of the true membership.
func (f *Filter) Remove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots(key) {
		if f.counters[s] == 0 || f.counters[s] == counterMax {
			continue
		}
		f.counters[s]--
	}
}

// Contains reports whether key is possibly present. A saturated counter
// is treated as non-zero (present), preserving the superset guarantee
// even though its true count is unknown.
func (f *Filter) Contains(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots(key) {
		if f.counters[s] == 0 {
			return false
		}
	}
	return true
}

// Stats reports current occupancy.
func (f *Filter) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	var nonZero, saturated uint32
	for _, c := range f.counters {
		if c > 0 {
			nonZero++
		}
		if c == counterMax {
			saturated++
		}
	}

	return Stats{
		Size:            uint32(len(f.counters)),
		NumHashes:       f.numHash,
		NonZeroCounters: nonZero,
		SaturatedSlots:  saturated,
		Load:            float64(nonZero) / float64(len(f.counters)),
	}
}

// Reset clears every counter back to zero, used before a full rebuild
// from the entities table (C10 maintenance).
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.counters {
		f.counters[i] = 0
	}
}
