package domain

import "time"

// UploadResult is the document endpoint's reply. Extraction carries whatever
// the server returned next to "ok".
type UploadResult struct {
	OK         bool           `json:"ok"`
	Error      string         `json:"error,omitempty"`
	Extraction map[string]any `json:"extraction,omitempty"`
}

// UploadRecord is one entry of a user's upload history.
type UploadRecord struct {
	ID         string         `json:"id"`
	UID        string         `json:"uid"`
	FileName   string         `json:"file_name"`
	MimeType   string         `json:"mime_type"`
	Size       int64          `json:"size"`
	OK         bool           `json:"ok"`
	Error      string         `json:"error,omitempty"`
	Extraction map[string]any `json:"extraction,omitempty"`
	UploadedAt time.Time      `json:"uploaded_at"`
}
