package stats

import "time"

// Provider defines the interface for components that provide statistics
type Provider interface {
	// GetStats returns all statistics
	GetStats() map[string]interface{}

	// GetStatsFiltered returns statistics filtered by prefix
	GetStatsFiltered(prefix string) map[string]interface{}
}

// Collector interface defines methods for collecting statistics
type Collector interface {
	Provider

	// TrackOperation records a single operation
	TrackOperation(op OperationType)

	// TrackOperationWithLatency records an operation with its latency
	TrackOperationWithLatency(op OperationType, latencyNs uint64)

	// TrackError increments the counter for the specified error type
	TrackError(errorType string)

	// TrackBytes adds the specified number of bytes to the read or write counter
	TrackBytes(isWrite bool, bytes uint64)

	// TrackLiveArrays records the current number of live arrays
	TrackLiveArrays(count uint64)

	// TrackSessionWrite increments the session write counter
	TrackSessionWrite()

	// TrackSessionPurge increments the session purge counter
	TrackSessionPurge()

	// StartRestore initializes session restore statistics
	StartRestore() time.Time

	// FinishRestore completes session restore statistics
	FinishRestore(startTime time.Time, filesScanned, sessionsRestored, corruptedSessions uint64)
}

// Ensure AtomicCollector implements the Collector interface
var _ Collector = (*AtomicCollector)(nil)
