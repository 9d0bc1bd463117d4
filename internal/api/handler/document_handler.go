package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/service"
)

const uploadFormField = "recall"

// DocumentUploader submits recall notices for extraction.
type DocumentUploader interface {
	UploadLister
	Upload(ctx context.Context, caller service.Caller, in service.UploadInput) (*domain.UploadRecord, error)
}

type DocumentHandler struct {
	service DocumentUploader
}

func NewDocumentHandler(s DocumentUploader) *DocumentHandler {
	return &DocumentHandler{service: s}
}

type uploadFailure struct {
	Error  string               `json:"error"`
	Record *domain.UploadRecord `json:"record,omitempty"`
}

// Upload receives a recall notice as multipart field "recall" and returns the
// extracted data.
//
// @Summary      Upload a recall notice
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        recall  formData  file  true  "PDF or image of the recall notice"
// @Success      201     {object}  domain.UploadRecord
// @Failure      400     {object}  map[string]string
// @Failure      401     {object}  map[string]string
// @Failure      413     {object}  map[string]string
// @Failure      415     {object}  map[string]string
// @Failure      502     {object}  uploadFailure
// @Router       /api/documents [post]
func (h *DocumentHandler) Upload(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile(uploadFormField)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "form field \"recall\" with a file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()

	rec, err := h.service.Upload(c.Request().Context(), caller, service.UploadInput{
		FileName: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	})
	if err != nil {
		// Keep the attempt visible next to the message so the page can show it inline.
		if code, msg, known := ResolveError(err); known && rec != nil && code != http.StatusUnauthorized {
			return c.JSON(code, uploadFailure{Error: msg, Record: rec})
		}
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

// History lists the caller's latest uploads.
//
// @Summary      Upload history
// @Tags         documents
// @Produce      json
// @Param        limit  query     int  false  "Maximum entries"
// @Success      200    {array}   domain.UploadRecord
// @Failure      401    {object}  map[string]string
// @Router       /api/documents [get]
func (h *DocumentHandler) History(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 0 and 100")
		}
		limit = n
	}
	recs, err := h.service.Recent(c.Request().Context(), caller, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recs)
}
