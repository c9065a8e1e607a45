package polly

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
)

// stubBytesPerChar sizes the silent payload returned by StubProvider.
const stubBytesPerChar = 64

var stubCatalog = []Voice{
	{Gender: "Female", ID: "Joanna", LanguageCode: "en-US", LanguageName: "US English", Name: "Joanna", SupportedEngines: []string{"neural", "standard"}},
	{Gender: "Male", ID: "Matthew", LanguageCode: "en-US", LanguageName: "US English", Name: "Matthew", SupportedEngines: []string{"generative", "neural", "standard"}},
	{Gender: "Female", ID: "Amy", LanguageCode: "en-GB", LanguageName: "British English", Name: "Amy", SupportedEngines: []string{"neural", "standard"}},
	{Gender: "Female", ID: "Raveena", LanguageCode: "en-IN", LanguageName: "Indian English", Name: "Raveena", SupportedEngines: []string{"standard"}},
	{Gender: "Female", ID: "Carmen", LanguageCode: "ro-RO", LanguageName: "Romanian", Name: "Carmen", SupportedEngines: []string{"standard"}},
}

// StubProvider implements Provider with a fixed voice catalog and
// deterministic silent audio. It is intended for CI and local runs where AWS
// credentials are unavailable.
type StubProvider struct {
	log *slog.Logger
}

// NewStubProvider returns a stub provider.
func NewStubProvider(logger *slog.Logger) *StubProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubProvider{log: logger}
}

// DescribeVoices returns a copy of the stub catalog.
func (s *StubProvider) DescribeVoices(_ context.Context) ([]Voice, error) {
	out := make([]Voice, len(stubCatalog))
	copy(out, stubCatalog)
	return out, nil
}

// SynthesizeSpeech returns len(text)*64 zero bytes. Unknown voices, output
// formats and unsupported engines are rejected the way the service would.
func (s *StubProvider) SynthesizeSpeech(_ context.Context, req SynthesizeRequest) (*SynthesizeResult, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("polly: text is required")
	}
	voice, ok := findVoice(req.VoiceID)
	if !ok {
		return nil, fmt.Errorf("polly: stub: voice %q not found", req.VoiceID)
	}
	if req.Engine != "" && !voice.Supports(req.Engine) {
		return nil, fmt.Errorf("polly: stub: voice %q does not support engine %q", req.VoiceID, req.Engine)
	}
	format, ok := LookupOutputFormat(req.OutputFormat)
	if !ok {
		return nil, fmt.Errorf("polly: stub: unsupported output format %q", req.OutputFormat)
	}

	size := len(req.Text) * stubBytesPerChar
	s.log.Info("stub synthesis",
		"text_length", len(req.Text),
		"voice_id", req.VoiceID,
		"format", format.Name,
		"bytes", size,
	)

	return &SynthesizeResult{
		AudioStream:       io.NopCloser(bytes.NewReader(make([]byte, size))),
		ContentType:       format.ContentType,
		RequestCharacters: len(req.Text),
	}, nil
}

func findVoice(id string) (Voice, bool) {
	for _, v := range stubCatalog {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}
