package governkit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// AllocationMetrics provides capacity-allocation performance and outcome
// statistics for the database-backed ledger.
type AllocationMetrics struct {
	TotalAdmissions      int64         `json:"total_admissions"`
	CommittedAdmissions  int64         `json:"committed_admissions"`
	WaitlistedAdmissions int64         `json:"waitlisted_admissions"`
	OverbookedAdmissions int64         `json:"overbooked_admissions"`
	ReplayedAdmissions   int64         `json:"replayed_admissions"`
	TotalReleases        int64         `json:"total_releases"`
	TotalTransactions    int64         `json:"total_transactions"`
	FailedOperations     int64         `json:"failed_operations"`
	AverageDuration      time.Duration `json:"average_duration"`
	MaxDuration          time.Duration `json:"max_duration"`
	MinDuration          time.Duration `json:"min_duration"`
	LastReset            time.Time     `json:"last_reset"`
}

// allocationMonitor holds the internal allocation monitoring state
type allocationMonitor struct {
	admissionCount  int64
	committedCount  int64
	waitlistedCount int64
	overbookedCount int64
	replayedCount   int64
	releaseCount    int64
	txCount         int64
	failureCount    int64
	totalDuration   int64 // nanoseconds
	maxDuration     int64 // nanoseconds
	minDuration     int64 // nanoseconds
	lastReset       time.Time
	mu              sync.RWMutex
}

// newAllocationMonitor creates a new allocation monitor
func newAllocationMonitor() *allocationMonitor {
	return &allocationMonitor{
		minDuration: int64(time.Hour), // Initialize to a large value
		lastReset:   time.Now(),
	}
}

// recordAdmission records an Admit or ReserveOverbook completion with its
// outcome, duration and success status
func (am *allocationMonitor) recordAdmission(admission Admission, duration time.Duration, success bool) {
	am.mu.Lock()
	defer am.mu.Unlock()

	atomic.AddInt64(&am.admissionCount, 1)
	if !success {
		atomic.AddInt64(&am.failureCount, 1)
		am.recordDuration(duration)
		return
	}

	switch admission.Outcome {
	case AdmissionCommitted:
		atomic.AddInt64(&am.committedCount, 1)
	case AdmissionWaitlisted:
		atomic.AddInt64(&am.waitlistedCount, 1)
	}
	if admission.Overbooked {
		atomic.AddInt64(&am.overbookedCount, 1)
	}
	if admission.Replayed {
		atomic.AddInt64(&am.replayedCount, 1)
	}

	am.recordDuration(duration)
}

// recordRelease records a Release completion with its duration and success status
func (am *allocationMonitor) recordRelease(duration time.Duration, success bool) {
	am.mu.Lock()
	defer am.mu.Unlock()

	atomic.AddInt64(&am.releaseCount, 1)
	if !success {
		atomic.AddInt64(&am.failureCount, 1)
	}
	am.recordDuration(duration)
}

// recordTransaction records a service-level transaction completion
func (am *allocationMonitor) recordTransaction(duration time.Duration, success bool) {
	am.mu.Lock()
	defer am.mu.Unlock()

	atomic.AddInt64(&am.txCount, 1)
	if !success {
		atomic.AddInt64(&am.failureCount, 1)
	}
	am.recordDuration(duration)
}

// recordDuration updates the aggregate duration counters. Callers hold am.mu.
func (am *allocationMonitor) recordDuration(duration time.Duration) {
	durationNs := int64(duration)
	atomic.AddInt64(&am.totalDuration, durationNs)

	// Update max duration
	for {
		current := atomic.LoadInt64(&am.maxDuration)
		if durationNs <= current || atomic.CompareAndSwapInt64(&am.maxDuration, current, durationNs) {
			break
		}
	}

	// Update min duration
	for {
		current := atomic.LoadInt64(&am.minDuration)
		if durationNs >= current || atomic.CompareAndSwapInt64(&am.minDuration, current, durationNs) {
			break
		}
	}
}

// getMetrics returns the current allocation metrics
func (am *allocationMonitor) getMetrics() AllocationMetrics {
	am.mu.RLock()
	defer am.mu.RUnlock()

	admissions := atomic.LoadInt64(&am.admissionCount)
	releases := atomic.LoadInt64(&am.releaseCount)
	txs := atomic.LoadInt64(&am.txCount)
	totalDur := atomic.LoadInt64(&am.totalDuration)

	var avgDuration time.Duration
	if ops := admissions + releases + txs; ops > 0 {
		avgDuration = time.Duration(totalDur / ops)
	}

	return AllocationMetrics{
		TotalAdmissions:      admissions,
		CommittedAdmissions:  atomic.LoadInt64(&am.committedCount),
		WaitlistedAdmissions: atomic.LoadInt64(&am.waitlistedCount),
		OverbookedAdmissions: atomic.LoadInt64(&am.overbookedCount),
		ReplayedAdmissions:   atomic.LoadInt64(&am.replayedCount),
		TotalReleases:        releases,
		TotalTransactions:    txs,
		FailedOperations:     atomic.LoadInt64(&am.failureCount),
		AverageDuration:      avgDuration,
		MaxDuration:          time.Duration(atomic.LoadInt64(&am.maxDuration)),
		MinDuration:          time.Duration(atomic.LoadInt64(&am.minDuration)),
		LastReset:            am.lastReset,
	}
}

// reset resets all metrics
func (am *allocationMonitor) reset() {
	am.mu.Lock()
	defer am.mu.Unlock()

	atomic.StoreInt64(&am.admissionCount, 0)
	atomic.StoreInt64(&am.committedCount, 0)
	atomic.StoreInt64(&am.waitlistedCount, 0)
	atomic.StoreInt64(&am.overbookedCount, 0)
	atomic.StoreInt64(&am.replayedCount, 0)
	atomic.StoreInt64(&am.releaseCount, 0)
	atomic.StoreInt64(&am.txCount, 0)
	atomic.StoreInt64(&am.failureCount, 0)
	atomic.StoreInt64(&am.totalDuration, 0)
	atomic.StoreInt64(&am.maxDuration, 0)
	atomic.StoreInt64(&am.minDuration, int64(time.Hour))
	am.lastReset = time.Now()
}

// GetAllocationMetrics returns capacity-allocation statistics since service
// creation or the last reset.
//
// Example:
//
//	metrics := service.GetAllocationMetrics(ctx)
//	log.Printf("Committed %d of %d admissions (%d waitlisted)",
//	    metrics.CommittedAdmissions, metrics.TotalAdmissions, metrics.WaitlistedAdmissions)
func (s *Service) GetAllocationMetrics(ctx context.Context) AllocationMetrics {
	return s.monitor.getMetrics()
}

// ResetAllocationMetrics resets all allocation metrics to zero.
func (s *Service) ResetAllocationMetrics(ctx context.Context) {
	s.monitor.reset()
}
