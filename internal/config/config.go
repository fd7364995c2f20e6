package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/supermom/domain"
)

// Banner durations accepted by the memo surface
const (
	MinBannerDuration = 3 * time.Second
	MaxBannerDuration = 4 * time.Second
)

// Config is the configuration shared by the client and the devserver
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig configures cmd/supermom
type ClientConfig struct {
	ChannelURL        string        `yaml:"channel_url"`
	APIURL            string        `yaml:"api_url"`
	Surface           string        `yaml:"surface"`
	Token             string        `yaml:"token"`
	ChunkSize         int           `yaml:"chunk_size"` // bytes per base64 window
	BannerDuration    time.Duration `yaml:"banner_duration"`
	OutputSampleRate  int           `yaml:"output_sample_rate"`
	MaxRecordingBytes int           `yaml:"max_recording_bytes"`
}

// ServerConfig configures cmd/devserver
type ServerConfig struct {
	Port                int    `yaml:"port"`
	JWTSecret           string `yaml:"jwt_secret"` // auth is off when empty
	GeminiAPIKey        string `yaml:"gemini_api_key"`
	GeminiModel         string `yaml:"gemini_model"`
	GoogleSTTEnabled    bool   `yaml:"google_stt_enabled"`
	STTLanguage         string `yaml:"stt_language"`
	TTSProvider         string `yaml:"tts_provider"` // "mock" or "elevenlabs"
	PomodoroAudioPath   string `yaml:"pomodoro_audio_path"`
	PomodoroRepeatTimes int    `yaml:"pomodoro_repeat_times"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Default returns a configuration that talks to a local devserver
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			ChannelURL:        "ws://localhost:8080/ws",
			APIURL:            "http://localhost:8080",
			Surface:           string(domain.SurfaceFood),
			ChunkSize:         8192,
			BannerDuration:    MinBannerDuration,
			OutputSampleRate:  48000,
			MaxRecordingBytes: 64 << 20,
		},
		Server: ServerConfig{
			Port:                8080,
			GeminiModel:         "gemini-2.0-flash",
			STTLanguage:         "zh-CN",
			TTSProvider:         "mock",
			PomodoroRepeatTimes: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and the environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("SUPERMOM_CHANNEL_URL", &c.Client.ChannelURL)
	envString("SUPERMOM_API_URL", &c.Client.APIURL)
	envString("SUPERMOM_SURFACE", &c.Client.Surface)
	envString("SUPERMOM_TOKEN", &c.Client.Token)
	envString("LOG_LEVEL", &c.Logging.Level)
	envString("LOG_FORMAT", &c.Logging.Format)
	envString("JWT_SECRET", &c.Server.JWTSecret)
	envString("GEMINI_API_KEY", &c.Server.GeminiAPIKey)
	envString("GEMINI_MODEL", &c.Server.GeminiModel)
	envString("STT_LANGUAGE", &c.Server.STTLanguage)
	envString("TTS_PROVIDER", &c.Server.TTSProvider)
	envString("POMODORO_AUDIO_PATH", &c.Server.PomodoroAudioPath)

	ints := []struct {
		key string
		dst *int
	}{
		{"SUPERMOM_CHUNK_SIZE", &c.Client.ChunkSize},
		{"SUPERMOM_OUTPUT_SAMPLE_RATE", &c.Client.OutputSampleRate},
		{"SUPERMOM_MAX_RECORDING_BYTES", &c.Client.MaxRecordingBytes},
		{"PORT", &c.Server.Port},
		{"POMODORO_REPEAT_TIMES", &c.Server.PomodoroRepeatTimes},
	}
	for _, v := range ints {
		if err := envInt(v.key, v.dst); err != nil {
			return err
		}
	}

	if err := envDuration("SUPERMOM_BANNER_DURATION", &c.Client.BannerDuration); err != nil {
		return err
	}
	return envBool("GOOGLE_STT_ENABLED", &c.Server.GoogleSTTEnabled)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates client configuration
func (c *ClientConfig) Validate() error {
	if err := validateURL(c.ChannelURL, "ws", "wss"); err != nil {
		return fmt.Errorf("channel_url: %w", err)
	}
	if err := validateURL(c.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("api_url: %w", err)
	}
	if _, err := domain.ParseSurface(c.Surface); err != nil {
		return fmt.Errorf("surface: %w", err)
	}
	if c.ChunkSize < 3 {
		return fmt.Errorf("chunk_size must be at least 3 bytes, got %d", c.ChunkSize)
	}
	if c.BannerDuration < MinBannerDuration || c.BannerDuration > MaxBannerDuration {
		return fmt.Errorf("banner_duration must be between %s and %s, got %s",
			MinBannerDuration, MaxBannerDuration, c.BannerDuration)
	}
	if c.OutputSampleRate < 8000 || c.OutputSampleRate > 192000 {
		return fmt.Errorf("output_sample_rate must be between 8000 and 192000, got %d", c.OutputSampleRate)
	}
	if c.MaxRecordingBytes < 1 {
		return fmt.Errorf("max_recording_bytes must be positive, got %d", c.MaxRecordingBytes)
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.PomodoroRepeatTimes < 1 {
		return fmt.Errorf("pomodoro_repeat_times must be at least 1, got %d", s.PomodoroRepeatTimes)
	}
	switch s.TTSProvider {
	case "mock", "elevenlabs":
	default:
		return fmt.Errorf("tts_provider must be 'mock' or 'elevenlabs', got %q", s.TTSProvider)
	}
	if s.STTLanguage == "" {
		return fmt.Errorf("stt_language cannot be empty")
	}
	return nil
}

// AuthEnabled reports whether the devserver requires bearer tokens
func (s *ServerConfig) AuthEnabled() bool {
	return s.JWTSecret != ""
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("format must be 'json' or 'console', got %q", l.Format)
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %v, got %q", schemes, u.Scheme)
}
