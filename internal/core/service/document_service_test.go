package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

// ---- Document API and history stubs ----

type stubDocumentAPI struct {
	result *domain.UploadResult
	err    error

	calls int
	got   []byte
	uid   string
}

func (s *stubDocumentAPI) UploadRecall(_ context.Context, _ oauth2.TokenSource, doc ports.DocumentUpload) (*domain.UploadResult, error) {
	s.calls++
	s.uid = doc.UID
	b, err := io.ReadAll(doc.Content)
	if err != nil {
		return nil, err
	}
	s.got = b
	return s.result, s.err
}

type memHistory struct {
	records []*domain.UploadRecord
	err     error
	listErr error
}

func (m *memHistory) Record(_ context.Context, rec *domain.UploadRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memHistory) ListByUID(_ context.Context, uid string, limit int) ([]*domain.UploadRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.UploadRecord
	for _, r := range m.records {
		if r.UID == uid && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func pdfBytes(size int) []byte {
	b := []byte("%PDF-1.7\n")
	return append(b, bytes.Repeat([]byte("x"), size)...)
}

func newDocumentService(api *stubDocumentAPI, history *memHistory, max int64) *DocumentService {
	svc := NewDocumentService(api, history, max, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestDocumentService_UploadForwardsWholeDocument(t *testing.T) {
	api := &stubDocumentAPI{result: &domain.UploadResult{OK: true, Extraction: map[string]any{"lot_code": "L1"}}}
	history := &memHistory{}
	svc := newDocumentService(api, history, 0)

	content := pdfBytes(10000)
	rec, err := svc.Upload(context.Background(), signedInCaller(domain.RoleUser, true), UploadInput{
		FileName: "notice.pdf",
		Size:     int64(len(content)),
		Content:  bytes.NewReader(content),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(api.got, content) {
		t.Fatalf("forwarded %d bytes, want %d", len(api.got), len(content))
	}
	if api.uid != "u1" {
		t.Fatalf("uid not forwarded: %q", api.uid)
	}
	if !rec.OK || rec.MimeType != "application/pdf" || rec.Extraction["lot_code"] != "L1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(history.records) != 1 || history.records[0] != rec {
		t.Fatalf("upload not recorded")
	}
}

func TestDocumentService_RejectsUnsupportedDocuments(t *testing.T) {
	cases := []struct {
		name string
		in   UploadInput
	}{
		{"plain text", UploadInput{FileName: "a.txt", Size: 5, Content: strings.NewReader("hello")}},
		{"empty", UploadInput{FileName: "a.pdf", Size: 0, Content: strings.NewReader("")}},
		{"too large", UploadInput{FileName: "a.pdf", Size: 2048, Content: bytes.NewReader(pdfBytes(10))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &stubDocumentAPI{}
			history := &memHistory{}
			svc := newDocumentService(api, history, 1024)

			_, err := svc.Upload(context.Background(), signedInCaller(domain.RoleUser, true), tc.in)
			if !errors.Is(err, domain.ErrUnsupportedDocument) {
				t.Fatalf("expected ErrUnsupportedDocument, got %v", err)
			}
			if api.calls != 0 || len(history.records) != 0 {
				t.Fatalf("rejected document was forwarded or recorded")
			}
		})
	}
}

func TestDocumentService_FailedUploadIsRecorded(t *testing.T) {
	api := &stubDocumentAPI{
		result: &domain.UploadResult{Error: "unreadable", Extraction: map[string]any{"page": 1.0}},
		err:    domain.ErrUploadFailed,
	}
	history := &memHistory{}
	svc := newDocumentService(api, history, 0)
	caller := signedInCaller(domain.RoleUser, true)

	content := pdfBytes(100)
	rec, err := svc.Upload(context.Background(), caller, UploadInput{FileName: "n.pdf", Size: int64(len(content)), Content: bytes.NewReader(content)})
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if rec == nil || rec.OK || rec.Error == "" || rec.Extraction["page"] != 1.0 {
		t.Fatalf("failure not captured: %+v", rec)
	}
	if len(history.records) != 1 {
		t.Fatalf("failed upload not recorded")
	}
	if caller.reports() != 0 {
		t.Fatalf("upload failure must not end the session")
	}
}

func TestDocumentService_UnauthorizedUploadEndsSession(t *testing.T) {
	api := &stubDocumentAPI{err: domain.ErrUnauthenticated}
	svc := newDocumentService(api, &memHistory{}, 0)
	caller := signedInCaller(domain.RoleUser, true)

	content := pdfBytes(100)
	_, err := svc.Upload(context.Background(), caller, UploadInput{FileName: "n.pdf", Size: int64(len(content)), Content: bytes.NewReader(content)})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if caller.reports() != 1 {
		t.Fatalf("expected one report, got %d", caller.reports())
	}
}

func TestDocumentService_HistoryFailureIsNotFatal(t *testing.T) {
	api := &stubDocumentAPI{result: &domain.UploadResult{OK: true}}
	svc := newDocumentService(api, &memHistory{err: errBoom}, 0)

	content := pdfBytes(100)
	rec, err := svc.Upload(context.Background(), signedInCaller(domain.RoleUser, true), UploadInput{FileName: "n.pdf", Size: int64(len(content)), Content: bytes.NewReader(content)})
	if err != nil || !rec.OK {
		t.Fatalf("history failure leaked into the upload: %+v %v", rec, err)
	}
}

func TestDocumentService_Recent(t *testing.T) {
	history := &memHistory{records: []*domain.UploadRecord{{UID: "u1", FileName: "a"}, {UID: "u2", FileName: "b"}, {UID: "u1", FileName: "c"}}}
	svc := newDocumentService(&stubDocumentAPI{}, history, 0)

	recs, err := svc.Recent(context.Background(), signedInCaller(domain.RoleUser, true), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || recs[0].FileName != "a" || recs[1].FileName != "c" {
		t.Fatalf("expected only the caller's uploads, got %+v", recs)
	}

	history.listErr = errBoom
	if _, err := svc.Recent(context.Background(), signedInCaller(domain.RoleUser, true), 5); !errors.Is(err, errBoom) {
		t.Fatalf("expected list error, got %v", err)
	}
	if _, err := svc.Recent(context.Background(), &stubCaller{}, 5); !errors.Is(err, domain.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
}
