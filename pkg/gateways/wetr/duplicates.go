package wetr

import (
	"sync"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
)

// duplicateFilter suppresses a snapshot identical to the one delivered just
// before it. The filter only ever holds the last delivered snapshot: it is
// cleared whenever the reading changes, so an earlier value coming back is
// delivered again.
type duplicateFilter struct {
	mu            sync.Mutex
	filter        *bloomFilter.BloomFilter
	lastDelivered entities.TelemetryReading
	hasDelivered  bool
}

func newDuplicateFilter(conf entities.DuplicateFilter) *duplicateFilter {
	if !conf.Enabled {
		return nil
	}
	return &duplicateFilter{
		filter: bloomFilter.NewWithEstimates(conf.Capacity, conf.FalsePositiveRate),
	}
}

func (f *duplicateFilter) seen(reading entities.TelemetryReading) bool {
	key := FormatReading(reading)

	f.mu.Lock()
	defer f.mu.Unlock()
	// a bloom hit can be a false positive, so confirm against the exact value
	if f.hasDelivered && f.filter.Test(key) && f.lastDelivered == reading {
		return true
	}
	f.filter.ClearAll()
	f.filter.Add(key)
	f.lastDelivered, f.hasDelivered = reading, true
	return false
}
