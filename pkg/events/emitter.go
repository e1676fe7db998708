// oreon/sentinel · watchthelight <wtl>

package events

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Emitter writes completed events through slog, sampling the routine
// ones. Failures, slow operations and threat detections always reach
// the log regardless of the sample rate.
type Emitter struct {
	logger     *slog.Logger
	sampleRate float64 // share of routine successful events kept
	slowThresh time.Duration
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithSampleRate sets the sampling rate for routine events, clamped to
// [0, 1]. Errors, slow operations and threat detections ignore it.
func WithSampleRate(rate float64) EmitterOption {
	return func(e *Emitter) {
		if rate < 0 {
			rate = 0
		}
		if rate > 1 {
			rate = 1
		}
		e.sampleRate = rate
	}
}

// WithSlowThreshold sets the duration past which an operation is
// considered slow and emitted unconditionally.
func WithSlowThreshold(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		e.slowThresh = d
	}
}

// WithLogger sets a custom slog.Logger for output.
func WithLogger(logger *slog.Logger) EmitterOption {
	return func(e *Emitter) {
		e.logger = logger
	}
}

// NewEmitter creates an Emitter. Defaults: keep everything, 1s slow
// threshold, the default slog logger.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{
		logger:     slog.Default(),
		sampleRate: 1.0,
		slowThresh: time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit outputs an event if it passes the sampling rules.
func (e *Emitter) Emit(evt Event) {
	if !e.shouldEmit(evt) {
		return
	}
	e.log(evt)
}

func (e *Emitter) shouldEmit(evt Event) bool {
	if !evt.Success {
		return true
	}
	// A detection is the point of the whole system; it is never
	// sampled out.
	if evt.Type == EventTypeThreat {
		return true
	}
	if evt.Duration >= e.slowThresh {
		return true
	}
	if e.sampleRate >= 1.0 {
		return true
	}
	if e.sampleRate <= 0 {
		return false
	}
	return rand.Float64() < e.sampleRate
}

func (e *Emitter) log(evt Event) {
	attrs := []any{
		slog.String("event_type", string(evt.Type)),
		slog.String("operation_id", evt.OperationID),
		slog.String("component", evt.Component),
		slog.Int64("duration_ms", evt.DurationMs),
		slog.Bool("success", evt.Success),
	}

	if evt.Error != "" {
		attrs = append(attrs, slog.String("error", evt.Error))
	}

	for k, v := range evt.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}

	level := slog.LevelInfo
	if !evt.Success {
		level = slog.LevelError
	}

	e.logger.Log(context.Background(), level, string(evt.Type), attrs...)
}
