package handlers

import (
	"errors"
	"log"
	"time"

	"opsdesk/internal/middleware"
	"opsdesk/internal/models"
	"opsdesk/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AssistantHandler handles message drafting, feedback and usage requests
type AssistantHandler struct {
	ledger    *services.UsageLedgerService
	feedback  *services.FeedbackService
	generator services.Generator
	metrics   *services.Metrics
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(ledger *services.UsageLedgerService, feedback *services.FeedbackService, generator services.Generator, metrics *services.Metrics) *AssistantHandler {
	return &AssistantHandler{
		ledger:    ledger,
		feedback:  feedback,
		generator: generator,
		metrics:   metrics,
	}
}

// Draft drafts a message for the subject: quota check, generation, then
// quota consumption. Quota denial is a 429 with the remaining-day count;
// everything else is a generic retry.
// POST /api/assistant/draft
func (h *AssistantHandler) Draft(c *fiber.Ctx) error {
	subjectID := middleware.SubjectID(c)
	if subjectID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req models.DraftRequest
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message text is required",
		})
	}

	if h.metrics != nil {
		h.metrics.DraftRequests.Inc()
	}

	ok, err := h.ledger.CanConsume(c.Context(), subjectID)
	if err != nil {
		log.Printf("❌ Quota check failed for %s: %v", subjectID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Something went wrong, please try again",
		})
	}
	if !ok {
		return h.quotaDenied(c, subjectID)
	}

	// Profile lookup is best-effort; drafting proceeds without guidance.
	guidance := ""
	if profile, err := h.feedback.Profile(c.Context(), subjectID); err == nil && profile != nil {
		guidance = profile.Guidance
	}

	start := time.Now()
	draft, err := h.generator.Draft(c.Context(), guidance, req)
	if h.metrics != nil {
		h.metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		log.Printf("❌ Draft generation failed for %s: %v", subjectID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Something went wrong, please try again",
		})
	}

	if err := h.ledger.Increment(c.Context(), subjectID); err != nil {
		var qe *services.QuotaExceededError
		if errors.As(err, &qe) {
			return h.quotaDenied(c, subjectID)
		}
		log.Printf("❌ Quota increment failed for %s: %v", subjectID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Something went wrong, please try again",
		})
	}

	stats, _ := h.ledger.Stats(c.Context(), subjectID)
	return c.JSON(models.DraftResponse{Draft: draft, Usage: stats})
}

// Feedback stores a correction record; every fifth record per subject folds
// into the personalization profile. A failed consolidation still returns 200
// with the degradation reported.
// POST /api/assistant/feedback
func (h *AssistantHandler) Feedback(c *fiber.Ctx) error {
	subjectID := middleware.SubjectID(c)
	if subjectID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req models.SubmitFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.OriginalText == "" || req.CorrectedText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Original and corrected text are required",
		})
	}

	result, err := h.feedback.Record(c.Context(), models.FeedbackRecord{
		SubjectID:     subjectID,
		OriginalText:  req.OriginalText,
		CorrectedText: req.CorrectedText,
		Critique:      req.Critique,
		RecipientType: req.RecipientType,
		Tone:          req.Tone,
		Context:       req.Context,
	})
	if err != nil {
		log.Printf("❌ Failed to store feedback for %s: %v", subjectID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Something went wrong, please try again",
		})
	}

	resp := models.SubmitFeedbackResponse{
		ID:             result.Record.ID,
		FeedbackCount:  result.FeedbackCount,
		Consolidated:   result.Consolidated,
		ProfileVersion: result.ProfileVersion,
	}
	if result.ConsolidationErr != nil {
		resp.ConsolidationError = "Feedback saved; profile update will be retried on the next consolidation"
	}
	if h.metrics != nil && (result.Consolidated || result.ConsolidationErr != nil) {
		outcome := "ok"
		if result.ConsolidationErr != nil {
			outcome = "failed"
		}
		h.metrics.Consolidations.WithLabelValues(outcome).Inc()
	}

	return c.JSON(resp)
}

// Usage returns the subject's quota state for the current period.
// GET /api/assistant/usage
func (h *AssistantHandler) Usage(c *fiber.Ctx) error {
	subjectID := middleware.SubjectID(c)
	if subjectID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	stats, err := h.ledger.Stats(c.Context(), subjectID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Something went wrong, please try again",
		})
	}
	return c.JSON(stats)
}

func (h *AssistantHandler) quotaDenied(c *fiber.Ctx, subjectID string) error {
	if h.metrics != nil {
		h.metrics.QuotaDenials.Inc()
	}
	stats, err := h.ledger.Stats(c.Context(), subjectID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Something went wrong, please try again",
		})
	}
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":            "Monthly message limit reached",
		"messages_used":    stats.MessagesUsed,
		"max_messages":     stats.MaxMessages,
		"days_until_reset": stats.DaysUntilReset,
	})
}
