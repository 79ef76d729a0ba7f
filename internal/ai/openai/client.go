// Package openai serves text generation, transcription and speech synthesis
// from the OpenAI API or any compatible endpoint.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/logger"
	"github.com/spigell/prepmate/internal/utils"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultTTSModel   = "tts-1"
	defaultVoice      = "alloy"
	defaultSTTModel   = goopenai.Whisper1
	defaultMaxRetries = 3
	defaultMaxTokens  = 600
	defaultSystem     = "You are a professional interviewer helping candidates practice for job interviews."

	retryBase = time.Second
	retryMax  = 16 * time.Second
)

var wait = utils.WaitFor

type api interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
	CreateTranscription(ctx context.Context, req goopenai.AudioRequest) (goopenai.AudioResponse, error)
	CreateSpeech(ctx context.Context, req goopenai.CreateSpeechRequest) (goopenai.RawResponse, error)
}

// Options configure a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	System     string
	MaxRetries int
	TTSModel   string
	Voice      string
	STTModel   string
}

// Client implements the text generator and both speech collaborators.
type Client struct {
	api        api
	model      string
	system     string
	maxRetries int
	ttsModel   string
	voice      string
	sttModel   string
	logger     *zap.Logger
}

func New(opts Options, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = base
	}

	c := newClient(goopenai.NewClientWithConfig(cfg), opts)
	c.logger = logger.WithProvider(log, "openai", c.model)
	return c, nil
}

func newClient(a api, opts Options) *Client {
	c := &Client{
		api:        a,
		model:      orDefault(opts.Model, defaultModel),
		system:     orDefault(opts.System, defaultSystem),
		maxRetries: opts.MaxRetries,
		ttsModel:   orDefault(opts.TTSModel, defaultTTSModel),
		voice:      orDefault(opts.Voice, defaultVoice),
		sttModel:   orDefault(opts.STTModel, defaultSTTModel),
		logger:     zap.NewNop(),
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	return c
}

func (c *Client) Model() string {
	return c.model
}

// GenerateContent sends prompt as a single user message.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: c.system},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.7,
	}

	var output string
	err := c.retry(ctx, "chat completion", func() error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("openai api returned no choices")
		}
		output = strings.TrimSpace(resp.Choices[0].Message.Content)
		if output == "" {
			return errors.New("openai api returned empty response")
		}
		return nil
	})

	return output, err
}

// Transcribe converts recorded speech to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("audio must not be empty")
	}

	resp, err := c.api.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    c.sttModel,
		FilePath: "response" + audioExtension(audio),
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// Synthesize renders text as mp3 audio.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	resp, err := c.api.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(c.ttsModel),
		Input:          text,
		Voice:          goopenai.SpeechVoice(c.voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}

	return audio, nil
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == c.maxRetries-1 {
			break
		}

		delay := utils.Backoff(attempt, retryBase, retryMax)
		c.logger.Warn("openai request failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: %w", op, lastErr)
}

func retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	return false
}

func audioExtension(audio []byte) string {
	switch http.DetectContentType(audio) {
	case "audio/mpeg":
		return ".mp3"
	case "application/ogg":
		return ".ogg"
	default:
		return ".wav"
	}
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
