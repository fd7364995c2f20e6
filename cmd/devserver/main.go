package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/supermom/adapters/llm"
	"github.com/satriahrh/supermom/adapters/speech"
	"github.com/satriahrh/supermom/adapters/stt"
	"github.com/satriahrh/supermom/adapters/tts"
	"github.com/satriahrh/supermom/domain/repositories"
	"github.com/satriahrh/supermom/internal/api"
	"github.com/satriahrh/supermom/internal/auth"
	"github.com/satriahrh/supermom/internal/codec"
	"github.com/satriahrh/supermom/internal/config"
	"github.com/satriahrh/supermom/internal/logger"
	"github.com/satriahrh/supermom/internal/metrics"
	"github.com/satriahrh/supermom/internal/websocket"
	"github.com/satriahrh/supermom/usecase"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	speechToText, closeSTT, err := newSpeechToText(ctx, cfg.Server, log)
	if err != nil {
		log.Fatal("Failed to initialize speech-to-text", zap.Error(err))
	}
	defer closeSTT()

	languageModel, err := newLanguageModel(ctx, cfg.Server, log)
	if err != nil {
		log.Fatal("Failed to initialize language model", zap.Error(err))
	}

	textToSpeech, err := newTextToSpeech(cfg.Server, log)
	if err != nil {
		log.Fatal("Failed to initialize text-to-speech", zap.Error(err))
	}

	var tokens *auth.TokenIssuer
	if cfg.Server.AuthEnabled() {
		tokens, err = auth.NewTokenIssuer(cfg.Server.JWTSecret, auth.DefaultTokenTTL)
		if err != nil {
			log.Fatal("Failed to initialize token issuer", zap.Error(err))
		}
	}

	// Initialize usecase services
	encoder := codec.NewEncoder(cfg.Client.ChunkSize)
	assistant := usecase.NewAssistantService(speechToText, languageModel, textToSpeech, encoder, cfg.Server.STTLanguage, log)

	m := metrics.NewMetrics()
	hub := websocket.NewHub(assistant, m, log)
	go hub.Run(ctx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.SonicSerializer{}

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Dependencies{
		Hub:        hub,
		Recognizer: assistant,
		TimerAudio: api.NewFileTimerAudio(cfg.Server.PomodoroAudioPath, cfg.Server.PomodoroRepeatTimes, log),
		Tokens:     tokens,
		Metrics:    m,
		Logger:     log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	log.Info("Devserver started",
		zap.String("addr", addr),
		zap.Bool("auth", tokens != nil),
		zap.String("ttsProvider", cfg.Server.TTSProvider))

	<-ctx.Done()
	log.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func newSpeechToText(ctx context.Context, cfg config.ServerConfig, log *zap.Logger) (repositories.SpeechToText, func(), error) {
	if !cfg.GoogleSTTEnabled {
		log.Info("Using mock speech-to-text")
		return stt.NewMockSpeechToText(log), func() {}, nil
	}

	google, err := stt.NewGoogleSpeechToText(ctx, log)
	if err != nil {
		return nil, nil, err
	}
	return google, func() {
		if err := google.Close(); err != nil {
			log.Warn("Failed to close speech client", zap.Error(err))
		}
	}, nil
}

func newLanguageModel(ctx context.Context, cfg config.ServerConfig, log *zap.Logger) (repositories.LargeLanguageModel, error) {
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set, using mock language model")
		return llm.NewMockLLM(), nil
	}
	return llm.NewGeminiLLM(ctx, llm.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, log)
}

func newTextToSpeech(cfg config.ServerConfig, log *zap.Logger) (repositories.TextToSpeech, error) {
	switch cfg.TTSProvider {
	case "elevenlabs":
		return tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), log)
	default:
		log.Info("Using mock text-to-speech")
		return speech.NewMockTextToSpeech(log), nil
	}
}
