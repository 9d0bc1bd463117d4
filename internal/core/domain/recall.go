package domain

import (
	"strings"
	"time"
)

// DefaultClassification is shown for recalls the server has not classified.
const DefaultClassification = "Pending Review"

// ExtractionResult is the data the document pipeline pulled out of a recall notice.
type ExtractionResult struct {
	ItemNumber   string `json:"item_number"`
	LotCode      string `json:"lot_code"`
	Manufacturer string `json:"manufacturer"`
	ProductCode  string `json:"product_code"`
	FDAClass     string `json:"fda_class"`
	FileType     string `json:"filetype"`
	ProductName  string `json:"product_name,omitempty"`
}

// RecallRecord is owned by the Authorization Service and consumed read-only.
type RecallRecord struct {
	ID                          string           `json:"id"`
	CreatedAt                   time.Time        `json:"created_at"`
	DateNotificationReceived    *time.Time       `json:"date_notification_received,omitempty"`
	DateAcknowledgmentSubmitted *time.Time       `json:"date_acknowledgment_submitted,omitempty"`
	ReviewedAt                  *time.Time       `json:"reviewed_at,omitempty"`
	FileURL                     string           `json:"file_url,omitempty"`
	Classification              string           `json:"classification,omitempty"`
	Result                      ExtractionResult `json:"result"`
}

func (r RecallRecord) Acknowledged() bool { return r.DateAcknowledgmentSubmitted != nil }

func (r RecallRecord) Reviewed() bool { return r.ReviewedAt != nil }

// ClassificationOrDefault returns the server classification or
// DefaultClassification when it is blank.
func (r RecallRecord) ClassificationOrDefault() string {
	if strings.TrimSpace(r.Classification) == "" {
		return DefaultClassification
	}
	return r.Classification
}

// ReceivedAt is the notification date, falling back to the creation time.
func (r RecallRecord) ReceivedAt() time.Time {
	if r.DateNotificationReceived != nil {
		return *r.DateNotificationReceived
	}
	return r.CreatedAt
}
