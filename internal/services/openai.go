// OpenAI chat completions client used to derive genres from a mood prompt
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/sashabaranov/go-openai"
)

const (
	genresKey = "genres"

	minPromptLength = 5
	// DefaultMaxPromptLength is the exclusive upper bound on prompt length.
	DefaultMaxPromptLength = 200
	bannedPromptChars      = `^*_=+;\|`
)

// DefaultSystemPrompt is the instruction template used when the config leaves system_prompt empty.
const DefaultSystemPrompt = `You translate a description of a mood into music genres. ` +
	`Reply with a JSON object with a single key "genres" whose value is a list of exactly 5 distinct ` +
	`music genres that Spotify recognises as search terms.`

// OpenAIService derives genres from prompts via the chat completions API.
type OpenAIService struct {
	client       *openai.Client
	model        string
	systemPrompt string
	maxPrompt    int
	timeout      time.Duration
	logger       *log.Logger
}

// OpenAIOpts configures an [OpenAIService].
type OpenAIOpts struct {
	Config          shared.OpenAIConfig
	MaxPromptLength int
	Timeout         time.Duration
	HTTPClient      *http.Client
	Logger          *log.Logger
}

// NewOpenAIService creates a genre deriver. An API key is required.
func NewOpenAIService(opts OpenAIOpts) (*OpenAIService, error) {
	cfg := opts.Config
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api_key", shared.ErrMissingCredentials)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if opts.MaxPromptLength <= 0 {
		opts.MaxPromptLength = DefaultMaxPromptLength
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = httpClientOrDefault(opts.HTTPClient)

	return &OpenAIService{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxPrompt:    opts.MaxPromptLength,
		timeout:      opts.Timeout,
		logger:       shared.WithLogger(opts.Logger, "service", "openai"),
	}, nil
}

// SanitizePrompt trims the prompt and enforces the length bounds and character blacklist.
//
// A prompt must be longer than 5 characters and shorter than maxLength.
func SanitizePrompt(prompt string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxPromptLength
	}
	prompt = strings.TrimSpace(prompt)

	switch n := len([]rune(prompt)); {
	case n == 0:
		return "", fmt.Errorf("%w: no prompt was entered", shared.ErrInvalidPrompt)
	case n <= minPromptLength:
		return "", fmt.Errorf("%w: prompt is too short, it must be longer than %d characters", shared.ErrInvalidPrompt, minPromptLength)
	case n >= maxLength:
		return "", fmt.Errorf("%w: prompt is too long, it must be shorter than %d characters", shared.ErrInvalidPrompt, maxLength)
	}

	if strings.ContainsAny(prompt, bannedPromptChars) {
		return "", fmt.Errorf("%w: prompt cannot contain any of %s", shared.ErrInvalidPrompt, bannedPromptChars)
	}
	return prompt, nil
}

// DeriveGenres sanitizes the prompt and asks the model for exactly five genres. It never retries.
func (s *OpenAIService) DeriveGenres(ctx context.Context, prompt string) (models.GenreSet, error) {
	prompt, err := SanitizePrompt(prompt, s.maxPrompt)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, s.classify(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: model returned no content", shared.ErrMalformedResponse)
	}

	var content map[string]json.RawMessage
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &content); err != nil {
		return nil, fmt.Errorf("%w: content is not a JSON object: %v", shared.ErrMalformedResponse, err)
	}

	raw, ok := content[genresKey]
	if !ok {
		return nil, fmt.Errorf("%w: content has no %q key", shared.ErrMalformedResponse, genresKey)
	}

	var genres []string
	if err := json.Unmarshal(raw, &genres); err != nil {
		return nil, fmt.Errorf("%w: %q is not a list of strings: %v", shared.ErrMalformedResponse, genresKey, err)
	}

	set, err := models.NewGenreSet(genres)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}

	s.logger.Debug("derived genres", "genres", set)
	return set, nil
}

// classify maps client errors onto the provider taxonomy. Status and transport failures are unavailability.
func (s *OpenAIService) classify(err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		s.logger.Warn("openai request failed", "status", apiErr.HTTPStatusCode, "type", apiErr.Type, "message", apiErr.Message)
		return fmt.Errorf("%w: openai status %d: %s", shared.ErrUpstreamUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0:
		s.logger.Warn("openai request failed", "status", reqErr.HTTPStatusCode, "error", reqErr.Err)
		return fmt.Errorf("%w: openai status %d", shared.ErrUpstreamUnavailable, reqErr.HTTPStatusCode)
	}
	return shared.WrapUpstream("openai", err)
}
