package models

import "time"

// UsagePeriod tracks assistant message consumption for one subject within one
// calendar-month period. One document per (period, subject) pair, created
// lazily on first access and never deleted.
type UsagePeriod struct {
	ID            string     `bson:"_id" json:"id"` // "<subject>:<YYYY-MM>"
	SubjectID     string     `bson:"subjectId" json:"subject_id"`
	Period        string     `bson:"period" json:"period"` // YYYY-MM (UTC)
	MessageCount  int        `bson:"messageCount" json:"message_count"`
	MaxMessages   int        `bson:"maxMessages" json:"max_messages"`
	LastMessageAt *time.Time `bson:"lastMessageAt,omitempty" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updatedAt" json:"updated_at"`
}

// UsageStats is the quota view returned to the console UI.
type UsageStats struct {
	Period         string `json:"period"`
	MessagesUsed   int    `json:"messages_used"`
	MaxMessages    int    `json:"max_messages"`
	DaysUntilReset int    `json:"days_until_reset"`
}
