package polly

import (
	"context"
	"io"
)

const (
	// EngineNeural is the engine the relay always synthesizes with.
	EngineNeural = "neural"
	// TextTypeSSML marks request text as speech markup.
	TextTypeSSML = "ssml"
)

// Provider abstracts the Polly API so that the relay can be tested with a
// mock implementation.
type Provider interface {
	// DescribeVoices returns the full voice catalog, following pagination.
	DescribeVoices(ctx context.Context) ([]Voice, error)
	SynthesizeSpeech(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, error)
}

// Voice describes a synthetic voice. Field names follow the Polly API casing
// so the catalog can be returned to callers as-is.
type Voice struct {
	Gender                  string   `json:"Gender,omitempty"`
	ID                      string   `json:"Id"`
	LanguageCode            string   `json:"LanguageCode,omitempty"`
	LanguageName            string   `json:"LanguageName,omitempty"`
	Name                    string   `json:"Name,omitempty"`
	AdditionalLanguageCodes []string `json:"AdditionalLanguageCodes,omitempty"`
	SupportedEngines        []string `json:"SupportedEngines"`
}

// Supports reports whether the voice can be rendered by engine.
func (v Voice) Supports(engine string) bool {
	for _, e := range v.SupportedEngines {
		if e == engine {
			return true
		}
	}
	return false
}

// SynthesizeRequest describes a single SynthesizeSpeech call.
type SynthesizeRequest struct {
	Text         string
	TextType     string
	VoiceID      string
	OutputFormat string
	Engine       string
}

// SynthesizeResult carries the provider response. AudioStream may be nil when
// the provider returned no payload; callers must close it otherwise.
type SynthesizeResult struct {
	AudioStream       io.ReadCloser
	ContentType       string
	RequestCharacters int
}
