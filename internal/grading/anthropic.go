package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

const (
	DefaultGradingModel = "claude-sonnet-4-20250514"
	gradingMaxTokens    = 4096
	gradingTemperature  = 0.3
)

// ErrGraderUnavailable marks failures worth retrying later: rate limits,
// provider outages and transport errors.
var ErrGraderUnavailable = errors.New("grader unavailable")

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AnthropicGrader grades one sub-unit per Messages call.
type AnthropicGrader struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

func NewAnthropicGrader(cfg AnthropicConfig, logger *slog.Logger, opts ...option.RequestOption) (*AnthropicGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGradingModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	client := anthropic.NewClient(reqOpts...)
	return &AnthropicGrader{client: &client, model: cfg.Model, logger: logger}, nil
}

func (g *AnthropicGrader) Model() string { return g.model }

func (g *AnthropicGrader) Grade(ctx context.Context, req GradeRequest) (*models.SubGradingResult, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   gradingMaxTokens,
		Temperature: param.NewOpt(gradingTemperature),
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt(req.Skill, req.ExamStandard)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(UserPrompt(req))),
		},
	}

	message, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("%w: no text content in response", ErrGraderUnavailable)
	}

	result := ParseGradingOutput(text)
	result.QuestionID = req.QuestionID
	if result.ParseError {
		g.logger.Warn("Grader reply was not valid JSON", "question_id", req.QuestionID, "model", g.model)
	}

	g.logger.Info("Sub-unit graded",
		"question_id", req.QuestionID,
		"skill", req.Skill,
		"band", result.OverallBand,
		"input_tokens", message.Usage.InputTokens,
		"output_tokens", message.Usage.OutputTokens)
	return &result, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %w", ErrGraderUnavailable, err)
		default:
			return fmt.Errorf("grading request rejected: %w", err)
		}
	}
	return fmt.Errorf("%w: %w", ErrGraderUnavailable, err)
}
