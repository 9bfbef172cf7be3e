package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/tskoli/kaiwa/internal/config"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/llm"
	"github.com/tskoli/kaiwa/internal/retry"
)

// Coach implements the llm.Coach interface using Google's Gemini API.
type Coach struct {
	logger    *slog.Logger
	config    config.LLMConfig
	templates *template.Template
	client    *genai.Client
	model     string
	policy    retry.Policy
}

var _ llm.Coach = (*Coach)(nil)

// NewCoach creates a Coach from the provided configuration. It validates
// the configuration, parses the embedded prompt templates, and initializes
// the Gemini client.
func NewCoach(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Coach, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", llm.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", llm.ErrInvalidConfig)
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt templates: %v", llm.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", llm.ErrInvalidConfig, err)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.MaxRetries + 1,
		BaseDelay:   time.Duration(cfg.RetryDelaySeconds) * time.Second,
		RetryIf:     isTransient,
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 2 * time.Second
	}

	return &Coach{
		logger:    logger,
		config:    cfg,
		templates: templates,
		client:    client,
		model:     cfg.ModelName,
		policy:    policy,
	}, nil
}

// isTransient reports whether a model call error is worth retrying.
// Contract violations and safety blocks are permanent.
func isTransient(err error) bool {
	return !errors.Is(err, llm.ErrInvalidResponse) &&
		!errors.Is(err, llm.ErrContentBlocked) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// generate makes one model call under the retry policy and unmarshals the
// JSON response into out.
func (c *Coach) generate(ctx context.Context, operation, prompt string, out any) error {
	return c.policy.Do(ctx, operation, func() error {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
		if err != nil {
			return fmt.Errorf("%w: %v", llm.ErrTransientFailure, err)
		}
		if resp == nil || len(resp.Candidates) == 0 {
			return fmt.Errorf("%w: no content generated", llm.ErrInvalidResponse)
		}
		if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
			return fmt.Errorf("%w: finish reason safety", llm.ErrContentBlocked)
		}

		text := stripCodeFence(resp.Text())
		if text == "" {
			return fmt.Errorf("%w: empty response text", llm.ErrInvalidResponse)
		}
		if err := json.Unmarshal([]byte(text), out); err != nil {
			return fmt.Errorf("%w: failed to parse JSON response: %v", llm.ErrInvalidResponse, err)
		}
		return nil
	})
}

// GradeTurn makes the single grading call for one learner turn and
// validates the structured result before returning it.
func (c *Coach) GradeTurn(ctx context.Context, req llm.GradeRequest) (*llm.GradeResponse, error) {
	if req.Profile == nil {
		return nil, errors.New("profile cannot be nil")
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, errors.New("transcript cannot be empty")
	}

	data := gradeData{
		CurrentLevel:    req.Profile.CurrentLevel,
		TargetLevel:     req.Profile.TargetLevel,
		Register:        string(req.Profile.Register),
		Intensity:       string(req.Profile.Intensity),
		Mode:            string(req.Profile.Mode),
		LearnerSummary:  req.Profile.LearnerSummary,
		RecurringErrors: formatRecurringErrors(req.Profile.RecurringErrorPatterns),
		DailyPrompt:     req.DailyPrompt,
		Transcript:      req.Transcript,
	}
	for _, msg := range req.Context {
		data.Context = append(data.Context, contextLine{Role: string(msg.Role), Text: msg.Text})
	}
	for _, item := range req.DueItems {
		data.DueItems = append(data.DueItems, dueLine{Kind: string(item.Kind), Content: item.Content})
	}

	prompt, err := c.renderPrompt("grade.tmpl", data)
	if err != nil {
		return nil, err
	}

	var parsed llm.GradeResponse
	if err := c.generate(ctx, "grade_turn", prompt, &parsed); err != nil {
		return nil, err
	}
	if err := validateGradeResponse(&parsed); err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "graded learner turn",
		slog.Int("corrections", len(parsed.Corrections)),
		slog.Int("overall", parsed.Scores.WeightedOverall()))
	return &parsed, nil
}

func validateGradeResponse(resp *llm.GradeResponse) error {
	if strings.TrimSpace(resp.ReplyText) == "" {
		return fmt.Errorf("%w: missing reply text", llm.ErrInvalidResponse)
	}
	for _, score := range []int{
		resp.Scores.Grammar,
		resp.Scores.Vocab,
		resp.Scores.Pronunciation,
		resp.Scores.Fluency,
		resp.Scores.Naturalness,
	} {
		if score < domain.MinScore || score > domain.MaxScore {
			return fmt.Errorf("%w: score %d out of range", llm.ErrInvalidResponse, score)
		}
	}
	for i, issue := range resp.Corrections {
		if !issue.Kind.Valid() {
			return fmt.Errorf("%w: correction %d has unknown kind %q", llm.ErrInvalidResponse, i, issue.Kind)
		}
	}
	return nil
}

// GenerateQuestions produces one practice question per requested kind.
func (c *Coach) GenerateQuestions(ctx context.Context, profile *domain.LearnerProfile, kinds []llm.QuestionKind) ([]llm.GeneratedQuestion, error) {
	if profile == nil {
		return nil, errors.New("profile cannot be nil")
	}
	if len(kinds) == 0 {
		return nil, errors.New("at least one question kind is required")
	}

	data := questionsData{
		CurrentLevel:    profile.CurrentLevel,
		TargetLevel:     profile.TargetLevel,
		Register:        string(profile.Register),
		Ramp:            string(profile.Ramp),
		LearnerSummary:  profile.LearnerSummary,
		RecurringErrors: formatRecurringErrors(profile.RecurringErrorPatterns),
		Kinds:           kinds,
	}

	prompt, err := c.renderPrompt("questions.tmpl", data)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Questions []llm.GeneratedQuestion `json:"questions"`
	}
	if err := c.generate(ctx, "generate_questions", prompt, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Questions) != len(kinds) {
		return nil, fmt.Errorf("%w: expected %d questions, got %d",
			llm.ErrInvalidResponse, len(kinds), len(parsed.Questions))
	}
	for i, q := range parsed.Questions {
		if strings.TrimSpace(q.PromptText) == "" {
			return nil, fmt.Errorf("%w: question %d missing prompt text", llm.ErrInvalidResponse, i)
		}
	}
	return parsed.Questions, nil
}

// WeeklySummary produces the weekly rollup for a grade window.
func (c *Coach) WeeklySummary(ctx context.Context, profile *domain.LearnerProfile, grades []*domain.Grade) (*llm.SummaryResponse, error) {
	if profile == nil {
		return nil, errors.New("profile cannot be nil")
	}
	if len(grades) == 0 {
		return nil, errors.New("at least one grade is required")
	}

	data := summaryData{
		CurrentLevel:   profile.CurrentLevel,
		TargetLevel:    profile.TargetLevel,
		LearnerSummary: profile.LearnerSummary,
		Grades:         gradeLines(grades),
	}

	prompt, err := c.renderPrompt("weekly.tmpl", data)
	if err != nil {
		return nil, err
	}

	var parsed llm.SummaryResponse
	if err := c.generate(ctx, "weekly_summary", prompt, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Highlights) == 0 && len(parsed.WeakAreas) == 0 {
		return nil, fmt.Errorf("%w: summary has no content", llm.ErrInvalidResponse)
	}
	return &parsed, nil
}

// RewriteLearnerSummary rewrites the rolling learner note from the current
// note and a recent grade window.
func (c *Coach) RewriteLearnerSummary(ctx context.Context, current string, grades []*domain.Grade) (string, error) {
	data := rewriteData{
		Current:  current,
		Grades:   gradeLines(grades),
		MaxChars: llm.MaxLearnerSummaryChars,
	}

	prompt, err := c.renderPrompt("rewrite.tmpl", data)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := c.generate(ctx, "rewrite_learner_summary", prompt, &parsed); err != nil {
		return "", err
	}

	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		return "", fmt.Errorf("%w: empty rewritten summary", llm.ErrInvalidResponse)
	}
	if runes := []rune(summary); len(runes) > llm.MaxLearnerSummaryChars {
		summary = string(runes[:llm.MaxLearnerSummaryChars])
	}
	return summary, nil
}
