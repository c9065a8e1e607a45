package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nupi-ai/tts-relay-polly/internal/config"
	"github.com/nupi-ai/tts-relay-polly/internal/polly"
	"github.com/nupi-ai/tts-relay-polly/internal/relay"
)

// mockProvider implements polly.Provider for testing.
type mockProvider struct {
	voices   []polly.Voice
	voiceErr error
	audio    []byte
	noAudio  bool
	err      error

	synthCalls int
	req        polly.SynthesizeRequest
}

func (m *mockProvider) DescribeVoices(context.Context) ([]polly.Voice, error) {
	if m.voiceErr != nil {
		return nil, m.voiceErr
	}
	return m.voices, nil
}

func (m *mockProvider) SynthesizeSpeech(_ context.Context, req polly.SynthesizeRequest) (*polly.SynthesizeResult, error) {
	m.synthCalls++
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	if m.noAudio {
		return &polly.SynthesizeResult{}, nil
	}
	return &polly.SynthesizeResult{
		AudioStream: io.NopCloser(bytes.NewReader(m.audio)),
		ContentType: "audio/mpeg",
	}, nil
}

func testConfig() config.Config {
	return config.Config{
		ListenAddr:       ":0",
		LogLevel:         "error",
		CORSAllowOrigins: "*",
		DefaultVoiceID:   config.DefaultVoiceID,
	}
}

func setup(t *testing.T, provider polly.Provider) *Server {
	t.Helper()
	cfg := testConfig()
	srv := New(cfg, slog.Default())
	if provider != nil {
		srv.SetService(relay.New(cfg, slog.Default(), provider, nil))
	}
	return srv
}

func do(t *testing.T, srv *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func speakRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/speak", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, body []byte) string {
	t.Helper()
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return payload.Error
}

func TestRootLiveness(t *testing.T) {
	srv := setup(t, nil)
	resp, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "✅ Polly TTS API is running" {
		t.Errorf("body = %q", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestSpeakSuccess(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x64}
	mock := &mockProvider{audio: audio}
	srv := setup(t, mock)

	resp, body := do(t, srv, speakRequest(`{"text":"Hello"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", resp.StatusCode, body)
	}
	if !bytes.Equal(body, audio) {
		t.Errorf("body = %v, want %v", body, audio)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `inline; filename="speech.mp3"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if mock.req.VoiceID != "Joanna" {
		t.Errorf("VoiceID = %q, want Joanna", mock.req.VoiceID)
	}
	if !strings.Contains(mock.req.Text, `rate="100%"`) {
		t.Errorf("Text = %q, want rate 100%%", mock.req.Text)
	}
}

func TestSpeakEmptyText(t *testing.T) {
	mock := &mockProvider{audio: []byte{1}}
	srv := setup(t, mock)

	for _, body := range []string{`{"text":""}`, `{"text":"   "}`, `{}`, `null`} {
		resp, raw := do(t, srv, speakRequest(body))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
		if msg := decodeError(t, raw); msg != "Text is required for speech synthesis" {
			t.Errorf("body %s: error = %q", body, msg)
		}
	}
	if mock.synthCalls != 0 {
		t.Errorf("provider called %d times, want 0", mock.synthCalls)
	}
}

func TestSpeakNonJSONBodyTreatedAsEmpty(t *testing.T) {
	mock := &mockProvider{audio: []byte{1}}
	srv := setup(t, mock)

	req := httptest.NewRequest(http.MethodPost, "/speak", strings.NewReader(`{"text":"Hello"}`))
	req.Header.Set("Content-Type", "text/plain")
	resp, raw := do(t, srv, req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if msg := decodeError(t, raw); msg != "Text is required for speech synthesis" {
		t.Errorf("error = %q", msg)
	}
}

func TestSpeakTextTooLong(t *testing.T) {
	mock := &mockProvider{audio: []byte{1}}
	srv := setup(t, mock)

	payload, _ := json.Marshal(map[string]string{"text": strings.Repeat("a", 3001)})
	resp, raw := do(t, srv, speakRequest(string(payload)))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if msg := decodeError(t, raw); msg != "Text exceeds AWS Polly 3000 character limit" {
		t.Errorf("error = %q", msg)
	}
	if mock.synthCalls != 0 {
		t.Errorf("provider called %d times, want 0", mock.synthCalls)
	}
}

func TestSpeakSpeedClamped(t *testing.T) {
	mock := &mockProvider{audio: []byte{1}}
	srv := setup(t, mock)

	resp, _ := do(t, srv, speakRequest(`{"text":"Hi","speed":5}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(mock.req.Text, `rate="200%"`) {
		t.Errorf("Text = %q, want rate 200%%", mock.req.Text)
	}
}

func TestSpeakSpeedCoercion(t *testing.T) {
	cases := map[string]string{
		`{"text":"Hi","speed":"1.5"}`: `rate="150%"`,
		`{"text":"Hi","speed":null}`:  `rate="50%"`,
		`{"text":"Hi","speed":"0.2"}`: `rate="50%"`,
	}
	for body, rate := range cases {
		mock := &mockProvider{audio: []byte{1}}
		srv := setup(t, mock)

		resp, raw := do(t, srv, speakRequest(body))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("body %s: status = %d, want 200 (body %q)", body, resp.StatusCode, raw)
		}
		if !strings.Contains(mock.req.Text, rate) {
			t.Errorf("body %s: Text = %q, want %s", body, mock.req.Text, rate)
		}
	}
}

func TestSpeakTextLimitCountsUTF16Units(t *testing.T) {
	mock := &mockProvider{audio: []byte{1}}
	srv := setup(t, mock)

	payload, _ := json.Marshal(map[string]string{"text": strings.Repeat("😀", 1600)})
	resp, raw := do(t, srv, speakRequest(string(payload)))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if msg := decodeError(t, raw); msg != "Text exceeds AWS Polly 3000 character limit" {
		t.Errorf("error = %q", msg)
	}
	if mock.synthCalls != 0 {
		t.Errorf("provider called %d times, want 0", mock.synthCalls)
	}

	payload, _ = json.Marshal(map[string]string{"text": strings.Repeat("😀", 1500)})
	if resp, raw = do(t, srv, speakRequest(string(payload))); resp.StatusCode != http.StatusOK {
		t.Fatalf("1500 emoji: status = %d, want 200 (body %q)", resp.StatusCode, raw)
	}
}

func TestSpeakMalformedJSON(t *testing.T) {
	mock := &mockProvider{audio: []byte{1}}
	srv := setup(t, mock)

	for _, body := range []string{`{"text":`, `{"text":42}`, `{"text":"Hi","speed":}`} {
		resp, raw := do(t, srv, speakRequest(body))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
		if msg := decodeError(t, raw); msg != "Invalid request body" {
			t.Errorf("body %s: error = %q", body, msg)
		}
	}
}

func TestSpeakMissingAudio(t *testing.T) {
	srv := setup(t, &mockProvider{noAudio: true})

	resp, raw := do(t, srv, speakRequest(`{"text":"Hi"}`))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if msg := decodeError(t, raw); msg != "Invalid audio stream received" {
		t.Errorf("error = %q", msg)
	}
}

func TestSpeakProviderErrorIsNotLeaked(t *testing.T) {
	srv := setup(t, &mockProvider{err: errors.New("InvalidSignatureException: secret mismatch")})

	resp, raw := do(t, srv, speakRequest(`{"text":"Hi"}`))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if msg := decodeError(t, raw); msg != "Failed to synthesize speech" {
		t.Errorf("error = %q", msg)
	}
	if strings.Contains(string(raw), "secret") {
		t.Errorf("response leaks provider cause: %s", raw)
	}
}

func TestVoicesFiltersNeural(t *testing.T) {
	srv := setup(t, &mockProvider{voices: []polly.Voice{
		{ID: "Joanna", Gender: "Female", LanguageCode: "en-US", SupportedEngines: []string{"neural", "standard"}},
		{ID: "Raveena", SupportedEngines: []string{"standard"}},
	}})

	resp, raw := do(t, srv, httptest.NewRequest(http.MethodGet, "/voices", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var voices []map[string]any
	if err := json.Unmarshal(raw, &voices); err != nil {
		t.Fatalf("decode voices: %v", err)
	}
	if len(voices) != 1 {
		t.Fatalf("got %d voices, want 1: %s", len(voices), raw)
	}
	if voices[0]["Id"] != "Joanna" {
		t.Errorf("Id = %v, want Joanna", voices[0]["Id"])
	}
	if voices[0]["Gender"] != "Female" {
		t.Errorf("Gender = %v, want Female", voices[0]["Gender"])
	}
}

func TestVoicesEmptyCatalogIsArray(t *testing.T) {
	srv := setup(t, &mockProvider{})

	_, raw := do(t, srv, httptest.NewRequest(http.MethodGet, "/voices", nil))
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Errorf("body = %q, want []", raw)
	}
}

func TestVoicesProviderError(t *testing.T) {
	srv := setup(t, &mockProvider{voiceErr: errors.New("throttled")})

	resp, raw := do(t, srv, httptest.NewRequest(http.MethodGet, "/voices", nil))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if msg := decodeError(t, raw); msg != "Failed to fetch voices" {
		t.Errorf("error = %q", msg)
	}
}

func TestRelayRoutesUnavailableUntilReady(t *testing.T) {
	srv := setup(t, nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/voices", nil),
		speakRequest(`{"text":"Hi"}`),
	} {
		resp, raw := do(t, srv, req)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("%s: status = %d, want 503", req.URL.Path, resp.StatusCode)
		}
		if msg := decodeError(t, raw); msg != "Service is initializing" {
			t.Errorf("%s: error = %q", req.URL.Path, msg)
		}
	}

	srv.SetService(relay.New(testConfig(), slog.Default(), &mockProvider{audio: []byte{1}}, nil))
	resp, _ := do(t, srv, speakRequest(`{"text":"Hi"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status after SetService = %d, want 200", resp.StatusCode)
	}
}

func TestUnknownRouteReturnsJSONError(t *testing.T) {
	srv := setup(t, nil)

	resp, raw := do(t, srv, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if msg := decodeError(t, raw); msg == "" {
		t.Error("empty error message")
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := setup(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://example.com")
	resp, _ := do(t, srv, req)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestStubProviderEndToEnd(t *testing.T) {
	srv := setup(t, polly.NewStubProvider(slog.Default()))

	resp, body := do(t, srv, speakRequest(`{"text":"Hello","voiceId":"Matthew","speed":1.2}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", resp.StatusCode, body)
	}
	if len(body) == 0 {
		t.Error("empty audio body")
	}

	// Standard-only voices are rejected by the provider and surface generically.
	resp, raw := do(t, srv, speakRequest(`{"text":"Hello","voiceId":"Raveena"}`))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if msg := decodeError(t, raw); msg != "Failed to synthesize speech" {
		t.Errorf("error = %q", msg)
	}

	_, raw = do(t, srv, httptest.NewRequest(http.MethodGet, "/voices", nil))
	var voices []polly.Voice
	if err := json.Unmarshal(raw, &voices); err != nil {
		t.Fatalf("decode voices: %v", err)
	}
	for _, v := range voices {
		if !v.Supports(polly.EngineNeural) {
			t.Errorf("voice %s without neural support returned", v.ID)
		}
	}
}
