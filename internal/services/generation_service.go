package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"opsdesk/internal/config"
	"opsdesk/internal/models"

	"golang.org/x/time/rate"
)

// Generator is the external text-generation collaborator. The core needs two
// capabilities: folding feedback records into consolidated guidance, and
// drafting a message from free text plus categorical parameters.
type Generator interface {
	Summarize(ctx context.Context, priorGuidance string, records []models.FeedbackRecord) (string, error)
	Draft(ctx context.Context, guidance string, req models.DraftRequest) (string, error)
}

const summarizeSystemPrompt = `You are the writing coach behind a small-business message assistant. You receive up to five corrections the operator made to drafted messages, each with the original draft, the corrected version, an optional critique and the message's recipient type, tone and context.

Distill them into concise drafting guidance: concrete, reusable rules about wording, tone, structure and sign-off that would have produced the corrected versions directly. Merge with the previous guidance when given, dropping rules the new corrections contradict. Return only the guidance text.`

const draftSystemPrompt = `You draft short business messages (delivery notices, payment reminders, scheduling) for a small-business operator. Match the requested recipient type and tone, keep it brief and ready to send, and return only the message text.`

// GenerationService calls an OpenAI-compatible chat-completions endpoint.
// An outbound rate limiter protects the provider; failures surface as
// GenerationUnavailableError and are safe to retry.
type GenerationService struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGenerationService creates a new generation client from configuration.
func NewGenerationService(cfg *config.Config) *GenerationService {
	rps := cfg.GenerationRPS
	if rps <= 0 {
		rps = 1
	}
	return &GenerationService{
		baseURL: strings.TrimSuffix(cfg.GenerationBaseURL, "/"),
		apiKey:  cfg.GenerationAPIKey,
		model:   cfg.GenerationModel,
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// Summarize folds the given feedback records (newest first) into one
// consolidated guidance text.
func (s *GenerationService) Summarize(ctx context.Context, priorGuidance string, records []models.FeedbackRecord) (string, error) {
	var sb strings.Builder
	if priorGuidance != "" {
		sb.WriteString("PREVIOUS GUIDANCE:\n")
		sb.WriteString(priorGuidance)
		sb.WriteString("\n\n")
	}
	sb.WriteString("CORRECTIONS (newest first):\n")
	for i, rec := range records {
		fmt.Fprintf(&sb, "\n--- Correction %d ---\n", i+1)
		if rec.RecipientType != "" || rec.Tone != "" || rec.Context != "" {
			fmt.Fprintf(&sb, "Recipient: %s | Tone: %s | Context: %s\n", rec.RecipientType, rec.Tone, rec.Context)
		}
		fmt.Fprintf(&sb, "Original: %s\n", rec.OriginalText)
		fmt.Fprintf(&sb, "Corrected: %s\n", rec.CorrectedText)
		if rec.Critique != "" {
			fmt.Fprintf(&sb, "Critique: %s\n", rec.Critique)
		}
	}

	return s.complete(ctx, summarizeSystemPrompt, sb.String(), 0.3)
}

// Draft produces a message from free text plus categorical parameters,
// conditioned on the subject's consolidated guidance when present.
func (s *GenerationService) Draft(ctx context.Context, guidance string, req models.DraftRequest) (string, error) {
	var sb strings.Builder
	if guidance != "" {
		sb.WriteString("OPERATOR'S DRAFTING GUIDANCE:\n")
		sb.WriteString(guidance)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Recipient type: %s\nTone: %s\n", orDefault(req.RecipientType, models.RecipientClient), orDefault(req.Tone, models.ToneFriendly))
	if req.Context != "" {
		fmt.Fprintf(&sb, "Context: %s\n", req.Context)
	}
	fmt.Fprintf(&sb, "\nWrite the message for:\n%s", req.Text)

	return s.complete(ctx, draftSystemPrompt, sb.String(), 0.7)
}

func (s *GenerationService) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", &GenerationUnavailableError{Err: err}
	}

	requestBody := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"stream":      false,
		"temperature": temperature,
	}

	reqBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", &GenerationUnavailableError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", &GenerationUnavailableError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", &GenerationUnavailableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationUnavailableError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &GenerationUnavailableError{Err: fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))}
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", &GenerationUnavailableError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(apiResponse.Choices) == 0 || apiResponse.Choices[0].Message.Content == "" {
		return "", &GenerationUnavailableError{Err: fmt.Errorf("empty completion")}
	}

	return strings.TrimSpace(apiResponse.Choices[0].Message.Content), nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
