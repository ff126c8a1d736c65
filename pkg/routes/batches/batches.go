// Package batches triggers matching runs on demand.
package batches

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/batch"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// BatchRunner is satisfied by *batch.Orchestrator.
type BatchRunner interface {
	Run(ctx context.Context) (*batch.Summary, error)
}

type Handler struct {
	runner BatchRunner
}

func NewHandler(runner BatchRunner) *Handler {
	return &Handler{runner: runner}
}

// Register registers batch routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Run)
}

// Run runs one batch synchronously and returns its summary
func (h *Handler) Run(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "batches_handler.Run")
	defer span.End()

	summary, err := h.runner.Run(ctx)
	if errors.Is(err, batch.ErrBatchInProgress) {
		return httperror.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}
