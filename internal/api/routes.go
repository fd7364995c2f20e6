package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/auth"
	"github.com/satriahrh/supermom/internal/codec"
	"github.com/satriahrh/supermom/internal/metrics"
	"github.com/satriahrh/supermom/internal/websocket"
)

const serviceName = "supermom-devserver"

// Recognizer transcribes base64 PCM16 for the one-shot endpoint
type Recognizer interface {
	Recognize(ctx context.Context, payload string) (string, error)
}

// Dependencies are the collaborators the routes need. Tokens may be nil,
// in which case the channel accepts unauthenticated clients and no tokens
// are issued.
type Dependencies struct {
	Hub        *websocket.Hub
	Recognizer Recognizer
	TimerAudio TimerAudioSource
	Tokens     *auth.TokenIssuer
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: serviceName,
			Clients: deps.Hub.ClientCount(),
		})
	})
	e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))

	api := e.Group("/api")
	api.POST("/asr", func(c echo.Context) error {
		return recognize(c, deps.Recognizer, deps.Metrics, logger)
	})
	api.GET("/pomodoro-audio", func(c echo.Context) error {
		return timerAudio(c, deps.TimerAudio, deps.Metrics, logger)
	})
	if deps.Tokens != nil {
		api.POST("/token", func(c echo.Context) error {
			return issueToken(c, deps.Tokens, logger)
		})
	}

	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(deps.Hub, deps.Tokens, c, logger)
	})
}

func recognize(c echo.Context, recognizer Recognizer, m *metrics.Metrics, logger *zap.Logger) error {
	var req domain.ASRRequest
	if err := c.Bind(&req); err != nil {
		m.ASRRequests.WithLabelValues("bad_request").Inc()
		return c.JSON(http.StatusBadRequest, domain.ASRResponse{Error: true, Message: "invalid request body"})
	}
	if strings.TrimSpace(req.Audio) == "" {
		m.ASRRequests.WithLabelValues("bad_request").Inc()
		return c.JSON(http.StatusBadRequest, domain.ASRResponse{Error: true, Message: "missing audio data"})
	}

	text, err := recognizer.Recognize(c.Request().Context(), req.Audio)
	if err != nil {
		var codecErr *codec.Error
		if errors.As(err, &codecErr) || errors.Is(err, audio.ErrEmptyRecording) {
			m.ASRRequests.WithLabelValues("bad_request").Inc()
			return c.JSON(http.StatusBadRequest, domain.ASRResponse{Error: true, Message: err.Error()})
		}
		logger.Error("One-shot recognition failed", zap.Error(err))
		m.ASRRequests.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, domain.ASRResponse{
			Error:   true,
			Message: "speech recognition failed: " + err.Error(),
		})
	}

	m.ASRRequests.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, domain.ASRResponse{Text: text})
}

func timerAudio(c echo.Context, source TimerAudioSource, m *metrics.Metrics, logger *zap.Logger) error {
	clip, err := source.Load(c.Request().Context())
	if errors.Is(err, ErrTimerAudioNotFound) {
		m.TimerAudioRequests.WithLabelValues("not_found").Inc()
		return c.JSON(http.StatusNotFound, domain.TimerAudioResponse{Error: true, Message: err.Error()})
	}
	if err != nil {
		logger.Error("Failed to load pomodoro audio", zap.Error(err))
		m.TimerAudioRequests.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, domain.TimerAudioResponse{Error: true, Message: err.Error()})
	}

	m.TimerAudioRequests.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, domain.TimerAudioResponse{
		Audio:       codec.Encode(clip.Data),
		RepeatTimes: clip.RepeatTimes,
		Format:      clip.Format,
	})
}

func issueToken(c echo.Context, tokens *auth.TokenIssuer, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: true, Message: "invalid request body"})
	}
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}

	token, expiresAt, err := tokens.Issue(req.ClientID)
	if err != nil {
		logger.Error("Failed to issue token", zap.String("clientID", req.ClientID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: true, Message: "failed to generate token"})
	}

	logger.Info("Token issued", zap.String("clientID", req.ClientID))
	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ClientID:  req.ClientID,
	})
}

// websocketWithAuth checks the bearer token, from the Authorization header
// or the token query parameter, before upgrading
func websocketWithAuth(hub *websocket.Hub, tokens *auth.TokenIssuer, c echo.Context, logger *zap.Logger) error {
	if tokens == nil {
		return websocket.HandleWebSocket(hub, c, "")
	}

	token, err := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		token = c.QueryParam("token")
	}
	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: true, Message: auth.ErrMissingToken.Error()})
	}

	claims, err := tokens.Validate(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: true, Message: auth.ErrInvalidToken.Error()})
	}

	logger.Info("WebSocket connection authenticated", zap.String("clientID", claims.ClientID))
	return websocket.HandleWebSocket(hub, c, claims.ClientID)
}
