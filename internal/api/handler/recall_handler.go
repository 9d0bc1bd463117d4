package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rapidrecall/dashboard/internal/core/service"
)

// RecallActions are the recall table's foreground actions.
type RecallActions interface {
	RecallLister
	SetAcknowledged(ctx context.Context, caller service.Caller, recallID string, acknowledged bool) error
	SetReviewed(ctx context.Context, caller service.Caller, recallID string, reviewed bool) error
	UpdateClassification(ctx context.Context, caller service.Caller, recallID, classification string) error
}

// RecallHandler forwards recall actions to the Authorization Service. The
// cached role is never checked here; a 403 from the server is the answer for
// callers without the right.
type RecallHandler struct {
	service RecallActions
}

func NewRecallHandler(s RecallActions) *RecallHandler {
	return &RecallHandler{service: s}
}

type recallParam struct {
	ID string `param:"id" validate:"required"`
}

type classificationRequest struct {
	Classification string `json:"classification" validate:"required"`
}

// List returns the caller's recalls.
//
// @Summary      List recalls
// @Tags         recalls
// @Produce      json
// @Param        q       query     string  false  "Search text"
// @Param        status  query     string  false  "acknowledged, unacknowledged, reviewed or pending"
// @Param        sort    query     string  false  "received_asc, created_desc or created_asc"
// @Success      200     {object}  service.RecallList
// @Failure      400     {object}  map[string]string
// @Failure      401     {object}  map[string]string
// @Router       /api/recalls [get]
func (h *RecallHandler) List(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var q service.RecallQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if err := c.Validate(&q); err != nil {
		return err
	}
	list, err := h.service.List(c.Request().Context(), caller, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Acknowledge records the caller's acknowledgment of a recall.
//
// @Summary      Acknowledge a recall
// @Tags         recalls
// @Param        id   path  string  true  "Recall ID"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/recalls/{id}/acknowledge [put]
func (h *RecallHandler) Acknowledge(c echo.Context) error {
	return h.act(c, func(ctx context.Context, caller service.Caller, id string) error {
		return h.service.SetAcknowledged(ctx, caller, id, true)
	})
}

// Unacknowledge withdraws it.
//
// @Summary      Withdraw a recall acknowledgment
// @Tags         recalls
// @Param        id   path  string  true  "Recall ID"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/recalls/{id}/unacknowledge [put]
func (h *RecallHandler) Unacknowledge(c echo.Context) error {
	return h.act(c, func(ctx context.Context, caller service.Caller, id string) error {
		return h.service.SetAcknowledged(ctx, caller, id, false)
	})
}

// Review marks a recall reviewed.
//
// @Summary      Mark a recall reviewed
// @Tags         recalls
// @Param        id   path  string  true  "Recall ID"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/recalls/{id}/review [put]
func (h *RecallHandler) Review(c echo.Context) error {
	return h.act(c, func(ctx context.Context, caller service.Caller, id string) error {
		return h.service.SetReviewed(ctx, caller, id, true)
	})
}

// Unreview puts a recall back to pending.
//
// @Summary      Return a recall to pending review
// @Tags         recalls
// @Param        id   path  string  true  "Recall ID"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/recalls/{id}/unreview [put]
func (h *RecallHandler) Unreview(c echo.Context) error {
	return h.act(c, func(ctx context.Context, caller service.Caller, id string) error {
		return h.service.SetReviewed(ctx, caller, id, false)
	})
}

// Classify sets a recall's classification.
//
// @Summary      Change a recall's classification
// @Tags         recalls
// @Accept       json
// @Param        id    path  string                 true  "Recall ID"
// @Param        body  body  classificationRequest  true  "New classification"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/recalls/{id}/classification [put]
func (h *RecallHandler) Classify(c echo.Context) error {
	var req classificationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return h.act(c, func(ctx context.Context, caller service.Caller, id string) error {
		return h.service.UpdateClassification(ctx, caller, id, req.Classification)
	})
}

func (h *RecallHandler) act(c echo.Context, fn func(context.Context, service.Caller, string) error) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	p := recallParam{ID: c.Param("id")}
	if err := c.Validate(&p); err != nil {
		return err
	}
	if err := fn(c.Request().Context(), caller, p.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
