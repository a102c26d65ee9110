package models

import "time"

// Feedback categorical tags. RecipientType and Tone condition both drafting
// and consolidation prompts.
const (
	RecipientClient   = "client"
	RecipientSupplier = "supplier"
	RecipientOther    = "other"

	ToneFormal   = "formal"
	ToneFriendly = "friendly"
	ToneDirect   = "direct"
)

// FeedbackRecord is one user correction of a drafted message. Records are
// immutable once written; the consolidator only ever reads them.
type FeedbackRecord struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	SubjectID     string    `bson:"subjectId" json:"subject_id"`
	OriginalText  string    `bson:"originalText" json:"original_text"`
	CorrectedText string    `bson:"correctedText" json:"corrected_text"`
	Critique      string    `bson:"critique,omitempty" json:"critique,omitempty"`
	RecipientType string    `bson:"recipientType,omitempty" json:"recipient_type,omitempty"`
	Tone          string    `bson:"tone,omitempty" json:"tone,omitempty"`
	Context       string    `bson:"context,omitempty" json:"context,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"created_at"`
}

// PersonalizationProfile is the consolidated drafting guidance for a subject.
// Exactly one document per subject; consolidation updates it in place and
// bumps the version.
type PersonalizationProfile struct {
	ID                string    `bson:"_id" json:"id"` // subject id
	SubjectID         string    `bson:"subjectId" json:"subject_id"`
	Guidance          string    `bson:"guidance" json:"guidance"`
	FeedbackCount     int64     `bson:"feedbackCount" json:"feedback_count"`
	Version           int       `bson:"version" json:"version"`
	LastConsolidation time.Time `bson:"lastConsolidation" json:"last_consolidation"`
	CreatedAt         time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updated_at"`
}
