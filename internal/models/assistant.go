package models

// DraftRequest is the payload for POST /api/assistant/draft.
type DraftRequest struct {
	Text          string `json:"text"`
	RecipientType string `json:"recipient_type"`
	Tone          string `json:"tone"`
	Context       string `json:"context"`
}

// DraftResponse carries the drafted message plus the quota state after the
// consumed request.
type DraftResponse struct {
	Draft string      `json:"draft"`
	Usage *UsageStats `json:"usage,omitempty"`
}

// SubmitFeedbackRequest is the payload for POST /api/assistant/feedback.
type SubmitFeedbackRequest struct {
	OriginalText  string `json:"original_text"`
	CorrectedText string `json:"corrected_text"`
	Critique      string `json:"critique"`
	RecipientType string `json:"recipient_type"`
	Tone          string `json:"tone"`
	Context       string `json:"context"`
}

// SubmitFeedbackResponse reports the stored record and whether this write
// triggered a profile consolidation. ConsolidationError is set when the
// record was kept but the enrichment step failed.
type SubmitFeedbackResponse struct {
	ID                 string `json:"id"`
	FeedbackCount      int64  `json:"feedback_count"`
	Consolidated       bool   `json:"consolidated"`
	ProfileVersion     int    `json:"profile_version,omitempty"`
	ConsolidationError string `json:"consolidation_error,omitempty"`
}
