package orchestrator

import "time"

// defaultMaxConcurrency bounds parallel agent execution when no option is given.
const defaultMaxConcurrency = 4

// defaultEventBuffer is the emitter channel capacity.
const defaultEventBuffer = 100

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	maxConcurrency int
	taskTimeout    time.Duration
	eventBuffer    int
	logger         *DebugLogger
}

// WithMaxConcurrency sets the maximum number of agents running at once.
// Values <= 1 force strictly sequential execution.
func WithMaxConcurrency(n int) Option {
	return func(o *orchestratorOptions) { o.maxConcurrency = n }
}

// WithTaskTimeout applies a deadline to each dispatched task.
// Zero means no per-task deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.taskTimeout = d }
}

// WithEventBuffer sets the emitter channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}
