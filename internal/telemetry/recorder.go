package telemetry

import (
	"log/slog"
	"time"
)

// Recorder centralises telemetry for the relay. It only emits structured
// logs via slog.
type Recorder struct {
	logger *slog.Logger
}

// NewRecorder constructs a telemetry recorder using the provided slog.Logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger.With("component", "telemetry")}
}

// Synthesis describes one completed provider synthesis call.
type Synthesis struct {
	VoiceID           string
	Format            string
	Rate              string
	TextLength        int
	RequestCharacters int
	AudioBytes        int
	Duration          time.Duration
}

// RecordSynthesis logs a completed synthesis.
func (r *Recorder) RecordSynthesis(s Synthesis) {
	r.logger.Info("synthesis completed",
		"voice_id", s.VoiceID,
		"format", s.Format,
		"rate", s.Rate,
		"text_length", s.TextLength,
		"request_characters", s.RequestCharacters,
		"audio_bytes", s.AudioBytes,
		"duration_sec", s.Duration.Seconds(),
	)
}

// RecordVoiceCatalog logs a catalog fetch and how much of it survived filtering.
func (r *Recorder) RecordVoiceCatalog(total, kept int, d time.Duration) {
	r.logger.Info("voice catalog fetched",
		"total", total,
		"kept", kept,
		"duration_sec", d.Seconds(),
	)
}

// RecordProviderFailure logs a provider call that failed.
func (r *Recorder) RecordProviderFailure(operation, code string, err error) {
	r.logger.Error("provider call failed",
		"operation", operation,
		"error_code", code,
		"error", err,
	)
}
