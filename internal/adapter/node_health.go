package adapter

import (
	"sync"
	"time"
)

// NodeHealth represents the health status of the node API as seen by this process
type NodeHealth struct {
	BaseURL          string        `json:"baseUrl"`
	TotalRequests    int64         `json:"totalRequests"`
	SuccessfulReqs   int64         `json:"successfulRequests"`
	FailedReqs       int64         `json:"failedRequests"`
	SuccessRate      float64       `json:"successRate"`
	AverageLatency   time.Duration `json:"averageLatency"`
	LastSuccess      time.Time     `json:"lastSuccess"`
	LastFailure      time.Time     `json:"lastFailure"`
	LastError        string        `json:"lastError,omitempty"`
	ConsecutiveFails int           `json:"consecutiveFails"`
	IsHealthy        bool          `json:"isHealthy"`
	Cache            CacheStats    `json:"cache"`
}

// healthTracker records request outcomes for the node API
type healthTracker struct {
	mu sync.RWMutex

	baseURL string

	totalRequests    int64
	successfulReqs   int64
	failedReqs       int64
	totalLatency     time.Duration
	lastSuccess      time.Time
	lastFailure      time.Time
	lastError        string
	consecutiveFails int

	// Health thresholds
	maxConsecutiveFails int     // Max consecutive failures before marking unhealthy
	minSuccessRate      float64 // Minimum success rate to be considered healthy
}

func newHealthTracker(baseURL string) *healthTracker {
	return &healthTracker{
		baseURL:             baseURL,
		maxConsecutiveFails: 5,
		minSuccessRate:      0.5,
	}
}

// RecordSuccess records a request the node answered
func (h *healthTracker) RecordSuccess(duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.successfulReqs++
	h.totalLatency += duration
	h.lastSuccess = time.Now()
	h.consecutiveFails = 0
}

// RecordFailure records a request that did not reach the node or got a server error
func (h *healthTracker) RecordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.failedReqs++
	h.lastFailure = time.Now()
	if err != nil {
		h.lastError = err.Error()
	}
	h.consecutiveFails++
}

// Snapshot returns the current health status
func (h *healthTracker) Snapshot() NodeHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var successRate float64
	if h.totalRequests > 0 {
		successRate = float64(h.successfulReqs) / float64(h.totalRequests)
	}

	var avgLatency time.Duration
	if h.successfulReqs > 0 {
		avgLatency = h.totalLatency / time.Duration(h.successfulReqs)
	}

	return NodeHealth{
		BaseURL:          h.baseURL,
		TotalRequests:    h.totalRequests,
		SuccessfulReqs:   h.successfulReqs,
		FailedReqs:       h.failedReqs,
		SuccessRate:      successRate,
		AverageLatency:   avgLatency,
		LastSuccess:      h.lastSuccess,
		LastFailure:      h.lastFailure,
		LastError:        h.lastError,
		ConsecutiveFails: h.consecutiveFails,
		IsHealthy:        h.isHealthyLocked(),
	}
}

// isHealthyLocked checks health status (must be called with lock held)
func (h *healthTracker) isHealthyLocked() bool {
	if h.consecutiveFails >= h.maxConsecutiveFails {
		return false
	}

	// Check success rate (only if we have enough data)
	if h.totalRequests >= 10 {
		successRate := float64(h.successfulReqs) / float64(h.totalRequests)
		if successRate < h.minSuccessRate {
			return false
		}
	}

	return true
}
