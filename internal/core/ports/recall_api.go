package ports

import (
	"context"
	"io"

	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/core/domain"
)

// RecallScope selects which listing endpoint is used. The server decides what
// the caller may actually see.
type RecallScope int

const (
	ScopeOwn RecallScope = iota
	ScopeAll
)

// RecallAPI is the recall part of the Authorization Service. Every call sends
// a Bearer token obtained from ts.
type RecallAPI interface {
	ListRecalls(ctx context.Context, ts oauth2.TokenSource, scope RecallScope) ([]domain.RecallRecord, error)
	Acknowledge(ctx context.Context, ts oauth2.TokenSource, recallID string) error
	Unacknowledge(ctx context.Context, ts oauth2.TokenSource, recallID string) error
	MarkReviewed(ctx context.Context, ts oauth2.TokenSource, recallID string) error
	MarkPending(ctx context.Context, ts oauth2.TokenSource, recallID string) error
	UpdateClassification(ctx context.Context, ts oauth2.TokenSource, recallID, classification string) error
}

// UserAPI is the user management part of the Authorization Service.
type UserAPI interface {
	ListUsers(ctx context.Context, ts oauth2.TokenSource) ([]domain.UserAccount, error)
	SetRole(ctx context.Context, ts oauth2.TokenSource, uid string, role domain.Role) error
}

// DocumentUpload is a recall notice on its way to the extraction endpoint.
type DocumentUpload struct {
	UID      string
	FileName string
	Content  io.Reader
}

// DocumentAPI submits recall notices for server-side extraction.
type DocumentAPI interface {
	UploadRecall(ctx context.Context, ts oauth2.TokenSource, doc DocumentUpload) (*domain.UploadResult, error)
}
