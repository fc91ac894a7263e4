package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var ErrEmptyAudio = errors.New("empty audio")

// OpenAIConfig configures an OpenAI-compatible audio backend (LemonFox,
// OpenAI).
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	TTSModel    string
	TTSVoice    string
	TTSFormat   string
	STTModel    string
	STTLanguage string
}

type OpenAIProvider struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.TTSFormat == "" {
		cfg.TTSFormat = "mp3"
	}
	if cfg.STTModel == "" {
		cfg.STTModel = openai.Whisper1
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string) (Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Clip{}, fmt.Errorf("tts: nothing speakable")
	}
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(p.cfg.TTSVoice),
		ResponseFormat: openai.SpeechResponseFormat(p.cfg.TTSFormat),
	})
	if err != nil {
		return Clip{}, fmt.Errorf("tts: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return Clip{}, fmt.Errorf("tts read: %w", err)
	}
	if len(audio) == 0 {
		return Clip{}, fmt.Errorf("tts: %w", ErrEmptyAudio)
	}
	return Clip{Audio: audio, Format: p.cfg.TTSFormat}, nil
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("stt: %w", ErrEmptyAudio)
	}
	format = strings.TrimPrefix(strings.TrimSpace(format), ".")
	if format == "" {
		format = "webm"
	}
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.cfg.STTModel,
		FilePath: "audio." + format,
		Reader:   bytes.NewReader(audio),
		Language: p.cfg.STTLanguage,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("stt: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
