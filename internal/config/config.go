package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the interview service.
type Config struct {
	Env                      string
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	PauseThreshold time.Duration
	// Bootstrap is "greeting" (fixed local first line) or "model".
	Bootstrap         string
	InterviewDuration time.Duration
	ReplyMaxChars     int
	Fillers           []string

	// FillerIgnorePunctuation also treats "Okay." as the filler "okay".
	FillerIgnorePunctuation bool

	LLMProvider    string
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMMaxRetries  int

	VoiceProvider     string
	VoiceFallbackMock bool
	TTSModel          string
	TTSVoice          string
	TTSFormat         string
	STTModel          string
	STTLanguage       string

	ProblemsPath string
	DatabaseURL  string
}

const (
	BootstrapGreeting = "greeting"
	BootstrapModel    = "model"
)

const lemonFoxBaseURL = "https://api.lemonfox.ai/v1"

// Load reads a .env file if present, then environment variables, and applies
// safe defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	apiKey := stringsTrimSpace("LLM_API_KEY")
	if apiKey == "" {
		apiKey = stringsTrimSpace("LEMONFOX_API_KEY")
	}

	cfg := Config{
		Env:                      envOrDefault("APP_ENV", "development"),
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "mockinterview"),
		AllowAnyOrigin:           false,
		Bootstrap:                strings.ToLower(envOrDefault("INTERVIEW_BOOTSTRAP", BootstrapGreeting)),
		ReplyMaxChars:            140,
		LLMProvider:              strings.ToLower(envOrDefault("LLM_PROVIDER", "auto")),
		LLMBaseURL:               envOrDefault("LLM_BASE_URL", lemonFoxBaseURL),
		LLMAPIKey:                apiKey,
		LLMModel:                 envOrDefault("LLM_MODEL", "llama-8b-chat"),
		LLMTemperature:           0.2,
		LLMMaxRetries:            2,
		VoiceProvider:            strings.ToLower(envOrDefault("VOICE_PROVIDER", "auto")),
		TTSModel:                 envOrDefault("TTS_MODEL", "tts-1"),
		TTSVoice:                 envOrDefault("TTS_VOICE", "sarah"),
		TTSFormat:                envOrDefault("TTS_FORMAT", "mp3"),
		STTModel:                 envOrDefault("STT_MODEL", "whisper-1"),
		STTLanguage:              envOrDefault("STT_LANGUAGE", "english"),
		ProblemsPath:             stringsTrimSpace("PROBLEMS_PATH"),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		PauseThreshold:           5 * time.Second,
		InterviewDuration:        30 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.PauseThreshold, err = durationFromEnv("INTERVIEW_PAUSE_THRESHOLD", cfg.PauseThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.InterviewDuration, err = durationFromEnv("INTERVIEW_DURATION", cfg.InterviewDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyMaxChars, err = intFromEnv("INTERVIEW_REPLY_MAX_CHARS", cfg.ReplyMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.Fillers = listFromEnv("INTERVIEW_FILLERS")
	cfg.FillerIgnorePunctuation, err = boolFromEnv("INTERVIEW_FILLER_IGNORE_PUNCTUATION", cfg.FillerIgnorePunctuation)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTemperature, err = floatFromEnv("LLM_TEMPERATURE", cfg.LLMTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMMaxRetries, err = intFromEnv("LLM_MAX_RETRIES", cfg.LLMMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceFallbackMock, err = boolFromEnv("VOICE_FALLBACK_MOCK", cfg.VoiceFallbackMock)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.PauseThreshold < 0 {
		return Config{}, fmt.Errorf("INTERVIEW_PAUSE_THRESHOLD must be >= 0")
	}
	if cfg.InterviewDuration < 0 {
		return Config{}, fmt.Errorf("INTERVIEW_DURATION must be >= 0")
	}
	if cfg.ReplyMaxChars <= 0 {
		return Config{}, fmt.Errorf("INTERVIEW_REPLY_MAX_CHARS must be positive")
	}
	if cfg.LLMMaxRetries < 0 {
		return Config{}, fmt.Errorf("LLM_MAX_RETRIES must be >= 0")
	}
	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return Config{}, fmt.Errorf("LLM_TEMPERATURE must be within [0, 2]")
	}
	switch cfg.Bootstrap {
	case BootstrapGreeting, BootstrapModel:
	default:
		return Config{}, fmt.Errorf("INTERVIEW_BOOTSTRAP must be %q or %q", BootstrapGreeting, BootstrapModel)
	}
	switch cfg.LLMProvider {
	case "auto", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("LLM_PROVIDER must be auto, openai or mock")
	}
	switch cfg.VoiceProvider {
	case "auto", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("VOICE_PROVIDER must be auto, openai or mock")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

// listFromEnv splits a comma-separated value, dropping blanks. Unset yields nil.
func listFromEnv(key string) []string {
	v := stringsTrimSpace(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
