// Package matches serves the review queue and the approve/decline actions.
package matches

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/review"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// ReviewService is satisfied by *review.Service.
type ReviewService interface {
	List(ctx context.Context, params review.ListParams) (*review.ListResult, error)
	Approve(ctx context.Context, req review.ApproveRequest) (*review.ApproveResult, error)
	Decline(ctx context.Context, req review.DeclineRequest) (*review.DeclineResult, error)
	Stats(ctx context.Context) (*models.MatchStatistics, error)
}

type Handler struct {
	service ReviewService
}

func NewHandler(service ReviewService) *Handler {
	return &Handler{
		service: service,
	}
}

// Register registers match routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/statistics", h.Statistics)
	g.POST("/approve", h.Approve)
	g.POST("/decline", h.Decline)
}

type listResponse struct {
	Data       []review.Item     `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

// List returns the pending review queue
func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "matches_handler.List")
	defer span.End()

	query, err := utils.BindRequest[models.ListMatchesQuery](c)
	if err != nil {
		return err
	}

	result, err := h.service.List(ctx, review.ListParams{
		MinConfidence: query.MinConfidence,
		Limit:         query.Limit,
		Offset:        query.Offset,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, listResponse{
		Data: result.Items,
		Pagination: models.Pagination{
			Total:   result.Total,
			Limit:   result.Limit,
			Offset:  result.Offset,
			HasMore: result.HasMore,
		},
	})
}

// Statistics returns confidence buckets over the pending queue
func (h *Handler) Statistics(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "matches_handler.Statistics")
	defer span.End()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

// Approve links a payment to a registration and issues its invoice
func (h *Handler) Approve(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "matches_handler.Approve")
	defer span.End()

	req, err := utils.BindRequest[models.ApproveMatchRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.Approve(ctx, review.ApproveRequest{
		PaymentID:      req.PaymentID,
		RegistrationID: req.RegistrationID,
		Submitted:      req.MatchResult,
		Actor:          appctx.GetUserID(ctx),
	})
	if err != nil {
		return review.HTTPError(err)
	}

	return c.JSON(http.StatusOK, models.ApproveMatchResponse{
		Success:         true,
		InvoiceNumber:   result.InvoiceNumber,
		AlreadyApproved: result.AlreadyApproved,
	})
}

// Decline records a declined match
func (h *Handler) Decline(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "matches_handler.Decline")
	defer span.End()

	req, err := utils.BindRequest[models.DeclineMatchRequest](c)
	if err != nil {
		return err
	}

	if _, err := h.service.Decline(ctx, review.DeclineRequest{
		PaymentID:      req.PaymentID,
		RegistrationID: req.RegistrationID,
		Reason:         models.DeclineReason(req.Reason),
		Comments:       req.Comments,
		Actor:          appctx.GetUserID(ctx),
	}); err != nil {
		return review.HTTPError(err)
	}

	return c.JSON(http.StatusOK, models.DeclineMatchResponse{Success: true})
}
