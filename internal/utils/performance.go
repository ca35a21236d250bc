package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowOperationThreshold is the duration above which an operation is logged as slow
const slowOperationThreshold = 10 * time.Second

// Timer is a simple performance timer for measuring operation duration
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
	}
}

// Stop stops the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	logDuration(t.log, t.name, duration)
	return duration
}

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func MyFunction() {
//	    defer utils.OperationTimer("my_function", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()
	return func() {
		logDuration(log, operation, time.Since(start))
	}
}

func logDuration(log zerolog.Logger, operation string, duration time.Duration) {
	log.Debug().
		Str("operation", operation).
		Dur("duration_ms", duration).
		Float64("duration_seconds", duration.Seconds()).
		Msg("Performance measurement")

	if duration > slowOperationThreshold {
		log.Warn().
			Str("operation", operation).
			Dur("duration", duration).
			Msg("Slow operation detected (>10s)")
	}
}
