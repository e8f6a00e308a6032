package models

import "time"

// NewsletterModel is the audit trail of newsletter dispatches. One row per send
// invocation; rows are never mutated or deleted by the application.
type NewsletterModel struct {
	Base
	Subject        string    `json:"subject"        gorm:"not null"`
	Content        string    `json:"content"        gorm:"type:longtext"`
	PreviewText    string    `json:"preview_text"`
	SentAt         time.Time `json:"sent_at"        gorm:"index"`
	RecipientCount int       `json:"recipient_count"`
	Success        bool      `json:"success"`
}

func (NewsletterModel) TableName() string { return "newsletters" }
