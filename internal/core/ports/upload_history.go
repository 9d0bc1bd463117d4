package ports

import (
	"context"

	"github.com/rapidrecall/dashboard/internal/core/domain"
)

// UploadHistory persists the outcome of every document upload.
type UploadHistory interface {
	Record(ctx context.Context, rec *domain.UploadRecord) error
	ListByUID(ctx context.Context, uid string, limit int) ([]*domain.UploadRecord, error)
}
