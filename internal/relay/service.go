package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/nupi-ai/tts-relay-polly/internal/config"
	"github.com/nupi-ai/tts-relay-polly/internal/polly"
	"github.com/nupi-ai/tts-relay-polly/internal/telemetry"
)

// SpeakRequest is the caller-supplied synthesis request.
type SpeakRequest struct {
	Text    string   `json:"text"`
	VoiceID string   `json:"voiceId"`
	Format  string   `json:"format"`
	Speed   Speed    `json:"speed"`
}

// Speech is a fully buffered synthesis result.
type Speech struct {
	Audio             []byte
	ContentType       string
	Filename          string
	Format            string
	RequestCharacters int
}

// Service relays voice listing and speech synthesis to a Polly provider.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	cfg      config.Config
	log      *slog.Logger
	provider polly.Provider
	metrics  *telemetry.Recorder
}

// New returns a new Service instance.
func New(cfg config.Config, logger *slog.Logger, provider polly.Provider, metrics *telemetry.Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		panic("relay: provider must not be nil")
	}
	if metrics == nil {
		metrics = telemetry.NewRecorder(logger)
	}
	if cfg.DefaultVoiceID == "" {
		cfg.DefaultVoiceID = config.DefaultVoiceID
	}
	return &Service{
		cfg:      cfg,
		log:      logger.With("component", "relay"),
		provider: provider,
		metrics:  metrics,
	}
}

// ListVoices returns the voices that support the neural engine, in provider order.
func (s *Service) ListVoices(ctx context.Context) ([]polly.Voice, error) {
	ctx, cancel := s.providerContext(ctx)
	defer cancel()

	start := time.Now()
	voices, err := s.provider.DescribeVoices(ctx)
	if err != nil {
		s.metrics.RecordProviderFailure("DescribeVoices", polly.ErrorCode(err), err)
		return nil, fmt.Errorf("%w: %w", ErrVoicesUnavailable, err)
	}

	neural := FilterByEngine(voices, polly.EngineNeural)
	s.metrics.RecordVoiceCatalog(len(voices), len(neural), time.Since(start))
	return neural, nil
}

// Synthesize validates req, renders it through the provider and buffers the audio.
func (s *Service) Synthesize(ctx context.Context, req SpeakRequest) (*Speech, error) {
	textLength := utf16Length(req.Text)
	logEntry := s.log.With("text_length", textLength)

	if strings.TrimSpace(req.Text) == "" {
		logEntry.Warn("empty text in synthesis request")
		return nil, ErrTextRequired
	}
	if textLength > MaxTextLength {
		logEntry.Warn("text exceeds character limit", "limit", MaxTextLength)
		return nil, ErrTextTooLong
	}

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoiceID
	}
	format := req.Format
	if format == "" {
		format = polly.DefaultOutputFormat
	}
	rate := RatePercent(req.Speed.Or(DefaultSpeed))

	logEntry = logEntry.With("voice_id", voiceID, "format", format, "rate", rate)
	logEntry.Debug("synthesis request received")

	ctx, cancel := s.providerContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.provider.SynthesizeSpeech(ctx, polly.SynthesizeRequest{
		Text:         BuildSSML(req.Text, rate),
		TextType:     polly.TextTypeSSML,
		VoiceID:      voiceID,
		OutputFormat: format,
		Engine:       polly.EngineNeural,
	})
	if err != nil {
		s.metrics.RecordProviderFailure("SynthesizeSpeech", polly.ErrorCode(err), err)
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	if res == nil || res.AudioStream == nil {
		logEntry.Error("provider returned no audio stream")
		return nil, ErrInvalidAudioStream
	}
	defer res.AudioStream.Close()

	audio, err := io.ReadAll(res.AudioStream)
	if err != nil {
		s.metrics.RecordProviderFailure("SynthesizeSpeech", polly.ErrorCode(err), err)
		return nil, fmt.Errorf("%w: read audio stream: %w", ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		logEntry.Error("provider returned an empty audio stream")
		return nil, ErrInvalidAudioStream
	}

	speech := &Speech{
		Audio:             audio,
		ContentType:       res.ContentType,
		Filename:          "speech.mp3",
		Format:            format,
		RequestCharacters: res.RequestCharacters,
	}
	if f, ok := polly.LookupOutputFormat(format); ok {
		speech.Filename = "speech." + f.Extension
		if speech.ContentType == "" {
			speech.ContentType = f.ContentType
		}
	}
	if speech.ContentType == "" {
		speech.ContentType = "audio/mpeg"
	}

	s.metrics.RecordSynthesis(telemetry.Synthesis{
		VoiceID:           voiceID,
		Format:            format,
		Rate:              rate,
		TextLength:        textLength,
		RequestCharacters: res.RequestCharacters,
		AudioBytes:        len(audio),
		Duration:          time.Since(start),
	})
	return speech, nil
}

// FilterByEngine returns the voices that support engine. The result is never nil.
func FilterByEngine(voices []polly.Voice, engine string) []polly.Voice {
	out := make([]polly.Voice, 0, len(voices))
	for _, v := range voices {
		if v.Supports(engine) {
			out = append(out, v)
		}
	}
	return out
}

// utf16Length counts UTF-16 code units, so characters outside the Basic
// Multilingual Plane count twice.
func utf16Length(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}

func (s *Service) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProviderTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	}
	return ctx, func() {}
}
