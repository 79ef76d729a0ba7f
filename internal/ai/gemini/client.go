package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/prepmate/internal/logger"
	"github.com/spigell/prepmate/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	defaultSystem     = "You are a professional interviewer helping candidates practice for job interviews."

	transcribeInstruction = "Transcribe the speech in this audio verbatim. Reply with the transcript only."

	retryBase     = time.Second
	retryMax      = 16 * time.Second
	maxQuotaDelay = 20 * time.Second
)

var (
	wait = utils.WaitFor

	retryAfter = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*(?:s\b|sec|second)`)
)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Options configure a Generator.
type Options struct {
	APIKey     string
	Model      string
	System     string
	MaxRetries int
}

// Generator talks to Gemini through single-turn chats. It serves both text
// generation and audio transcription.
type Generator struct {
	chats      chatCreator
	model      string
	system     string
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, opts Options, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	system := strings.TrimSpace(opts.System)
	if system == "" {
		system = defaultSystem
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Generator{
		chats:      genaiChats{chats: client.Chats},
		model:      model,
		system:     system,
		maxRetries: retries,
		logger:     logger.WithProvider(log, "gemini", model),
	}, nil
}

// GenerateContent sends prompt under the default system instruction.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return g.Generate(ctx, g.system, prompt)
}

// Generate sends message with an explicit system instruction and returns the
// concatenated text of the reply.
func (g *Generator) Generate(ctx context.Context, system, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("prompt must not be empty")
	}
	return g.send(ctx, system, genai.Part{Text: message})
}

// Transcribe converts recorded speech to text.
func (g *Generator) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("audio must not be empty")
	}
	return g.send(ctx, g.system, *genai.NewPartFromBytes(audio, audioMIME(audio)), genai.Part{Text: transcribeInstruction})
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) send(ctx context.Context, system string, parts ...genai.Part) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}
	log := g.logger
	if log == nil {
		log = zap.NewNop()
	}

	attempts := g.maxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		output, err := g.sendOnce(ctx, system, parts)
		if err == nil {
			return output, nil
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == attempts-1 {
			break
		}

		log.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

func (g *Generator) sendOnce(ctx context.Context, system string, parts []genai.Part) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	}

	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// retryDelay decides whether err is worth another attempt. Server errors back
// off exponentially; quota errors honour the advertised delay unless it is too long.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch {
	case apiErr.Code >= http.StatusInternalServerError:
		return utils.Backoff(attempt, retryBase, retryMax), true
	case apiErr.Code == http.StatusTooManyRequests:
		match := retryAfter.FindStringSubmatch(apiErr.Message)
		if match == nil {
			return utils.Backoff(attempt, retryBase, retryMax), true
		}
		seconds, perr := strconv.ParseFloat(match[1], 64)
		if perr != nil {
			return 0, false
		}
		delay := time.Duration(seconds * float64(time.Second))
		if delay > maxQuotaDelay {
			return 0, false
		}
		return delay, true
	default:
		return 0, false
	}
}

func audioMIME(audio []byte) string {
	switch detected := http.DetectContentType(audio); {
	case detected == "audio/wave":
		return "audio/wav"
	case detected == "application/ogg":
		return "audio/ogg"
	case strings.HasPrefix(detected, "audio/"):
		return detected
	default:
		return "audio/wav"
	}
}
