package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"opsdesk/internal/database"
	"opsdesk/internal/models"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
)

// consolidationThreshold is the feedback-record tally interval at which the
// subject's personalization profile is re-consolidated.
const consolidationThreshold = 5

// RecordResult reports a stored feedback record plus the outcome of the
// consolidation it may have triggered. ConsolidationErr set means the record
// is durable but the enrichment step failed.
type RecordResult struct {
	Record           models.FeedbackRecord
	FeedbackCount    int64
	Consolidated     bool
	ProfileVersion   int
	ConsolidationErr error
}

// FeedbackService stores immutable feedback records and folds every fifth
// one per subject into that subject's personalization profile via the
// generation collaborator.
type FeedbackService struct {
	store     Store
	generator Generator
	profiles  *cache.Cache
}

// NewFeedbackService creates a new feedback consolidator.
func NewFeedbackService(store Store, generator Generator, profileTTL time.Duration) *FeedbackService {
	if profileTTL <= 0 {
		profileTTL = 5 * time.Minute
	}
	return &FeedbackService{
		store:     store,
		generator: generator,
		profiles:  cache.New(profileTTL, 2*profileTTL),
	}
}

// Record stores one feedback record, counts the subject's total and, when
// the tally hits a multiple of the threshold, consolidates the most recent
// records into the profile. A consolidation failure never rolls the record
// back; it is reported on the result.
func (s *FeedbackService) Record(ctx context.Context, rec models.FeedbackRecord) (*RecordResult, error) {
	if rec.SubjectID == "" {
		return nil, fmt.Errorf("subject ID is required")
	}
	if rec.OriginalText == "" || rec.CorrectedText == "" {
		return nil, fmt.Errorf("original and corrected text are required")
	}

	rec.ID = uuid.NewString()
	_, err := s.store.Create(ctx, database.CollectionFeedback, bson.M{
		"subjectId":     rec.SubjectID,
		"originalText":  rec.OriginalText,
		"correctedText": rec.CorrectedText,
		"critique":      rec.Critique,
		"recipientType": rec.RecipientType,
		"tone":          rec.Tone,
		"context":       rec.Context,
	}, rec.ID)
	if err != nil {
		return nil, err
	}

	result := &RecordResult{Record: rec}

	// The tally is always counted, never kept in a stored counter.
	tally, err := s.store.CountByField(ctx, database.CollectionFeedback, "subjectId", rec.SubjectID)
	if err != nil {
		result.ConsolidationErr = err
		return result, nil
	}
	result.FeedbackCount = tally

	if tally%consolidationThreshold != 0 {
		return result, nil
	}

	version, err := s.consolidate(ctx, rec.SubjectID, tally)
	if err != nil {
		log.Printf("⚠️ [FEEDBACK] Consolidation failed for subject %s: %v", rec.SubjectID, err)
		result.ConsolidationErr = err
		return result, nil
	}
	if version > 0 {
		result.Consolidated = true
		result.ProfileVersion = version
	}
	return result, nil
}

// consolidate folds the subject's most recent records into the profile.
// Returns the new profile version, or 0 when fewer than threshold records
// exist (no-op).
func (s *FeedbackService) consolidate(ctx context.Context, subjectID string, tally int64) (int, error) {
	docs, err := s.store.ScanByField(ctx, database.CollectionFeedback, "subjectId", subjectID)
	if err != nil {
		return 0, err
	}
	if len(docs) < consolidationThreshold {
		return 0, nil
	}

	// ScanByField orders newest first; take the most recent five.
	recent := make([]models.FeedbackRecord, 0, consolidationThreshold)
	for i := 0; i < consolidationThreshold; i++ {
		recent = append(recent, feedbackFromDoc(&docs[i]))
	}

	existing, err := s.profileDoc(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	prior := ""
	if existing != nil {
		prior = existing.Guidance
	}

	guidance, err := s.generator.Summarize(ctx, prior, recent)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	version := 1
	if existing != nil {
		version = existing.Version + 1
		err = s.store.Update(ctx, database.CollectionProfiles, subjectID, bson.M{
			"guidance":          guidance,
			"feedbackCount":     tally,
			"version":           version,
			"lastConsolidation": now,
		})
	} else {
		_, err = s.store.Create(ctx, database.CollectionProfiles, bson.M{
			"subjectId":         subjectID,
			"guidance":          guidance,
			"feedbackCount":     tally,
			"version":           version,
			"lastConsolidation": now,
		}, subjectID)
	}
	if err != nil {
		return 0, err
	}

	s.profiles.Delete(subjectID)
	log.Printf("✅ [FEEDBACK] Consolidated profile for subject %s (version %d, %d records)", subjectID, version, tally)
	return version, nil
}

// Profile returns the subject's current personalization profile, or nil when
// none has been consolidated yet. Reads go through a short-lived cache that
// consolidation invalidates.
func (s *FeedbackService) Profile(ctx context.Context, subjectID string) (*models.PersonalizationProfile, error) {
	if cached, ok := s.profiles.Get(subjectID); ok {
		return cached.(*models.PersonalizationProfile), nil
	}

	profile, err := s.profileDoc(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		s.profiles.Set(subjectID, profile, cache.DefaultExpiration)
	}
	return profile, nil
}

func (s *FeedbackService) profileDoc(ctx context.Context, subjectID string) (*models.PersonalizationProfile, error) {
	doc, err := s.store.Get(ctx, database.CollectionProfiles, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &models.PersonalizationProfile{
		ID:                doc.ID,
		SubjectID:         doc.StringField("subjectId"),
		Guidance:          doc.StringField("guidance"),
		FeedbackCount:     int64(asInt(doc.Field("feedbackCount"))),
		Version:           asInt(doc.Field("version")),
		LastConsolidation: asTime(doc.Field("lastConsolidation")),
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}, nil
}

func feedbackFromDoc(doc *models.Document) models.FeedbackRecord {
	return models.FeedbackRecord{
		ID:            doc.ID,
		SubjectID:     doc.StringField("subjectId"),
		OriginalText:  doc.StringField("originalText"),
		CorrectedText: doc.StringField("correctedText"),
		Critique:      doc.StringField("critique"),
		RecipientType: doc.StringField("recipientType"),
		Tone:          doc.StringField("tone"),
		Context:       doc.StringField("context"),
		CreatedAt:     doc.CreatedAt,
	}
}
