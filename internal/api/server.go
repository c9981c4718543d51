// Package api exposes one inference session over a small REST surface.
// Requests are serialized by the session lock; concurrent callers queue.
package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/hearth/internal/logger"
	"github.com/samcharles93/hearth/internal/session"
)

// Defaults fill in sampling fields the request omits.
type Defaults struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
}

// Server handles the REST surface over one session.
type Server struct {
	session  *session.Session
	defaults Defaults
	log      logger.Logger
}

func NewServer(s *session.Session, defaults Defaults, log logger.Logger) *Server {
	if defaults.MaxNewTokens <= 0 {
		defaults.MaxNewTokens = 256
	}
	if defaults.TopP <= 0 || defaults.TopP > 1 {
		defaults.TopP = 0.95
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		session:  s,
		defaults: defaults,
		log:      log.With("component", "api"),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/generate", s.handleGenerate)
	e.GET("/v1/info", s.handleInfo)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return writeBadRequest(c, "prompt is required")
	}

	genReq := session.Request{
		Prompt:       req.Prompt,
		MaxNewTokens: s.defaults.MaxNewTokens,
		Temperature:  s.defaults.Temperature,
		TopP:         s.defaults.TopP,
	}
	if req.MaxNewTokens != nil && *req.MaxNewTokens > 0 {
		genReq.MaxNewTokens = *req.MaxNewTokens
	}
	if req.Temperature != nil {
		genReq.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		genReq.TopP = *req.TopP
	}
	if req.Seed != nil {
		genReq.Seed = *req.Seed
	}

	id := "gen_" + uuid.NewString()
	res := s.session.Generate(genReq, nil)

	switch res.Reason {
	case session.ReasonNotLoaded:
		return writeError(c, http.StatusConflict, "no_model", "no model loaded")
	case session.ReasonContextError:
		return writeError(c, http.StatusInternalServerError, "server_error", "context allocation failed")
	case session.ReasonTokenizeError:
		return writeError(c, http.StatusInternalServerError, "server_error", "prompt tokenization failed")
	case session.ReasonPromptTooLong:
		return writeError(c, http.StatusBadRequest, "invalid_request_error", res.Text)
	}

	s.log.Debug("generation served",
		"id", id,
		"reason", res.Reason.String(),
		"new_tokens", res.Stats.TokensGenerated,
	)
	return writeJSON(c, http.StatusOK, GenerateResponse{
		ID:     id,
		Text:   res.Text,
		Reason: res.Reason.String(),
		Usage: GenerateUsage{
			PromptTokens:     res.Stats.PromptTokens,
			CompletionTokens: res.Stats.TokensGenerated,
			DurationMS:       res.Stats.Duration.Milliseconds(),
			TokensPerSecond:  res.Stats.TPS,
		},
	})
}

func (s *Server) handleInfo(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, InfoResponse{
		Loaded: s.session.IsLoaded(),
		Model:  s.session.ModelPath(),
		Info:   s.session.Info(),
	})
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(c *echo.Context, status int, v any) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.Response().WriteHeader(status)
	return encodeJSON(c.Response(), v)
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return writeJSON(c, status, errorBody{Error: apiError{Message: msg, Type: errType}})
}
