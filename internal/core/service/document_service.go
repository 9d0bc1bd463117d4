package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/rapidrecall/dashboard/internal/api/metrics"
	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

const (
	defaultMaxUploadBytes = 20 << 20
	sniffLen              = 3072
	defaultHistoryLimit   = 20
)

var acceptedDocumentTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/tiff",
}

// UploadInput is a recall notice received from the browser.
type UploadInput struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// DocumentService submits recall notices for extraction and keeps a history
// of the outcomes.
type DocumentService struct {
	api      ports.DocumentAPI
	history  ports.UploadHistory
	maxBytes int64
	log      zerolog.Logger
	now      func() time.Time
}

func NewDocumentService(api ports.DocumentAPI, history ports.UploadHistory, maxBytes int64, log zerolog.Logger) *DocumentService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &DocumentService{
		api:      api,
		history:  history,
		maxBytes: maxBytes,
		log:      log,
		now:      time.Now,
	}
}

// Upload validates the document, forwards it to the extraction endpoint and
// records the outcome. Failures never affect the session's role.
func (s *DocumentService) Upload(ctx context.Context, caller Caller, in UploadInput) (*domain.UploadRecord, error) {
	identity, err := requireIdentity(caller)
	if err != nil {
		return nil, err
	}

	if in.Size > s.maxBytes {
		metrics.DocumentUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", domain.ErrUnsupportedDocument, in.Size, s.maxBytes)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		metrics.DocumentUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: empty file", domain.ErrUnsupportedDocument)
	}

	mtype := mimetype.Detect(head)
	if !mimetype.EqualsAny(mtype.String(), acceptedDocumentTypes...) {
		metrics.DocumentUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDocument, mtype.String())
	}

	rec := &domain.UploadRecord{
		UID:        identity.UID,
		FileName:   in.FileName,
		MimeType:   mtype.String(),
		Size:       in.Size,
		UploadedAt: s.now().UTC(),
	}

	result, err := s.api.UploadRecall(ctx, caller.TokenSource(ctx), ports.DocumentUpload{
		UID:      identity.UID,
		FileName: in.FileName,
		Content:  io.MultiReader(bytes.NewReader(head), in.Content),
	})
	if err != nil {
		rec.Error = err.Error()
		if result != nil {
			rec.Extraction = result.Extraction
		}
		s.record(ctx, rec)
		metrics.DocumentUploadsTotal.WithLabelValues("failed").Inc()
		return rec, checkUnauthenticated(ctx, caller, fmt.Errorf("upload %s: %w", in.FileName, err))
	}

	rec.OK = true
	rec.Extraction = result.Extraction
	s.record(ctx, rec)
	metrics.DocumentUploadsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("uid", identity.UID).Str("file", in.FileName).Str("mime", rec.MimeType).Msg("recall document processed")
	return rec, nil
}

// Recent returns the caller's latest uploads, newest first.
func (s *DocumentService) Recent(ctx context.Context, caller Caller, limit int) ([]*domain.UploadRecord, error) {
	identity, err := requireIdentity(caller)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	recs, err := s.history.ListByUID(ctx, identity.UID, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return recs, nil
}

// record stores rec; a history failure is logged and does not fail the upload.
func (s *DocumentService) record(ctx context.Context, rec *domain.UploadRecord) {
	if err := s.history.Record(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("uid", rec.UID).Str("file", rec.FileName).Msg("failed to record upload history")
	}
}
