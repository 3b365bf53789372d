package sentiment

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"sentiment-alerts/internal/config"
	apperrors "sentiment-alerts/internal/errors"
	"sentiment-alerts/internal/logging"
	"sentiment-alerts/internal/models"
)

const scoringPrompt = `You are a market sentiment scorer. Reply with a single number between %g and %g
that represents current news and social sentiment for the stock ticker given by the user.
%g is maximally negative, %g is maximally positive. Reply with the number only.`

var numberPattern = regexp.MustCompile(`[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`)

// OpenAISource asks a chat model for a sentiment score.
type OpenAISource struct {
	client   *openai.Client
	model    string
	scoreMin float64
	scoreMax float64
	logger   zerolog.Logger
	now      func() time.Time
}

// NewOpenAISource creates a source backed by the OpenAI chat API. base_url,
// when set, points the client at a compatible endpoint.
func NewOpenAISource(cfg config.SourceConfig, logger zerolog.Logger) *OpenAISource {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAISource{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		scoreMin: cfg.ScoreMin,
		scoreMax: cfg.ScoreMax,
		logger:   logger,
		now:      time.Now,
	}
}

// Fetch retrieves the score for ticker.
func (s *OpenAISource) Fetch(ctx context.Context, ticker string) (models.SentimentReading, error) {
	ticker = models.NormalizeTicker(ticker)

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(scoringPrompt, s.scoreMin, s.scoreMax, s.scoreMin, s.scoreMax)},
			{Role: openai.ChatMessageRoleUser, Content: ticker},
		},
	})
	logging.LogAPICall(logging.WithComponent(logging.FromContext(ctx, s.logger), "sentiment_openai"), "POST", "chat/completions", time.Since(start), err)
	if err != nil {
		var apiErr *openai.APIError
		if apperrors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
			return models.SentimentReading{}, invalid(ticker, apiErr.HTTPStatusCode, err)
		}
		return models.SentimentReading{}, unavailable(ticker, 0, err)
	}
	if len(resp.Choices) == 0 {
		return models.SentimentReading{}, invalid(ticker, 0, fmt.Errorf("no response from openai"))
	}

	score, err := parseScore(resp.Choices[0].Message.Content)
	if err != nil {
		return models.SentimentReading{}, invalid(ticker, 0, err)
	}
	if err := checkScore(ticker, score, s.scoreMin, s.scoreMax); err != nil {
		return models.SentimentReading{}, err
	}

	return models.SentimentReading{
		Ticker:    ticker,
		Score:     score,
		FetchedAt: s.now(),
	}, nil
}

// parseScore extracts the first number from a model reply.
func parseScore(content string) (float64, error) {
	match := numberPattern.FindString(content)
	if match == "" {
		return 0, fmt.Errorf("no number in reply %q", content)
	}
	return strconv.ParseFloat(match, 64)
}
