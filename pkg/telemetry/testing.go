// ABOUTME: Disabled telemetry constructors for tests and telemetry-off runtime configurations
// ABOUTME: Returns no-op instances so array and session components run unchanged without an exporter

package telemetry

// NewForTesting returns a no-op telemetry instance for tests. Components
// under test keep their instrumentation calls; nothing is recorded.
func NewForTesting() Telemetry {
	return NewNoop()
}

// NewDisabled returns the no-op instance for configurations that turn
// telemetry off explicitly rather than for testing.
func NewDisabled() Telemetry {
	return NewNoop()
}
