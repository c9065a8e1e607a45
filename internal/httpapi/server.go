package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"github.com/nupi-ai/tts-relay-polly/internal/config"
	"github.com/nupi-ai/tts-relay-polly/internal/relay"
	"github.com/nupi-ai/tts-relay-polly/internal/serviceinfo"
)

// Client-facing error messages. Provider causes are never included.
const (
	msgTextRequired   = "Text is required for speech synthesis"
	msgTextTooLong    = "Text exceeds AWS Polly 3000 character limit"
	msgInvalidBody    = "Invalid request body"
	msgInvalidAudio   = "Invalid audio stream received"
	msgSynthesisFail  = "Failed to synthesize speech"
	msgVoicesFail     = "Failed to fetch voices"
	msgInitializing   = "Service is initializing"
	msgInternalServer = "Internal Server Error"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes the relay over HTTP. The relay service is installed with
// SetService once the provider is ready; until then relay routes answer 503.
type Server struct {
	app     *fiber.App
	log     *slog.Logger
	service atomic.Pointer[relay.Service]
}

// New builds the fiber app and registers routes and middleware.
func New(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log: logger.With("component", "http"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               serviceinfo.Info.Name,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: func() string { return xid.New().String() },
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
	}))
	s.app.Use(s.accessLog)

	s.app.Get("/", s.handleRoot)
	s.app.Get("/voices", s.handleVoices)
	s.app.Post("/speak", s.handleSpeak)

	return s
}

// SetService activates the relay routes.
func (s *Server) SetService(svc *relay.Service) {
	s.service.Store(svc)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve accepts connections on lis until Shutdown is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.app.Listener(lis)
}

// Shutdown gracefully stops the server, waiting at most timeout for
// in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.SendString(serviceinfo.Banner())
}

func (s *Server) handleVoices(c *fiber.Ctx) error {
	svc := s.service.Load()
	if svc == nil {
		return writeError(c, fiber.StatusServiceUnavailable, msgInitializing)
	}

	voices, err := svc.ListVoices(c.UserContext())
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, msgVoicesFail)
	}
	return c.JSON(voices)
}

func (s *Server) handleSpeak(c *fiber.Ctx) error {
	svc := s.service.Load()
	if svc == nil {
		return writeError(c, fiber.StatusServiceUnavailable, msgInitializing)
	}

	// Bodies that are not JSON are treated as empty, which fails text validation.
	var req relay.SpeakRequest
	if body := c.Body(); len(body) > 0 && c.Is("json") {
		if err := json.Unmarshal(body, &req); err != nil {
			s.log.Debug("invalid request body", "error", err)
			return writeError(c, fiber.StatusBadRequest, msgInvalidBody)
		}
	}

	speech, err := svc.Synthesize(c.UserContext(), req)
	if err != nil {
		status, msg := speakFailure(err)
		return writeError(c, status, msg)
	}

	c.Set(fiber.HeaderContentType, speech.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", speech.Filename))
	return c.Send(speech.Audio)
}

func speakFailure(err error) (int, string) {
	switch {
	case errors.Is(err, relay.ErrTextRequired):
		return fiber.StatusBadRequest, msgTextRequired
	case errors.Is(err, relay.ErrTextTooLong):
		return fiber.StatusBadRequest, msgTextTooLong
	case errors.Is(err, relay.ErrInvalidAudioStream):
		return fiber.StatusInternalServerError, msgInvalidAudio
	default:
		return fiber.StatusInternalServerError, msgSynthesisFail
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := msgInternalServer
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		s.log.Error("unhandled request error", "path", c.Path(), "error", err)
	}
	return writeError(c, code, msg)
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	s.log.Info("request handled",
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(errorResponse{Error: msg})
}
