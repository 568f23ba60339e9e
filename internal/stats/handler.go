package stats

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	httperr "github.com/plazalab/plaza-insights/internal/core/errors"
	"github.com/plazalab/plaza-insights/internal/core/export"
	"github.com/plazalab/plaza-insights/internal/core/timerange"
	"github.com/plazalab/plaza-insights/internal/fetch"
	"github.com/plazalab/plaza-insights/internal/report"
)

// RegisterRoutes registers all stats API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/overview", s.HandleOverview)
	r.GET("/v1/stats/:domain", s.HandleDomainStats)
	r.POST("/v1/stats/:domain/export", s.HandleExport)
}

func rangeSymbol(c *gin.Context) string {
	symbol := c.Query("range")
	if symbol == "" {
		return timerange.RangeWeek
	}
	return symbol
}

// HandleDomainStats handles GET /v1/stats/:domain?range=day|week|month
func (s *Service) HandleDomainStats(c *gin.Context) {
	resp, err := s.DomainStats(c.Request.Context(), c.Param("domain"), rangeSymbol(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleOverview handles GET /v1/overview?range=day|week|month
func (s *Service) HandleOverview(c *gin.Context) {
	resp, err := s.Overview(c.Request.Context(), rangeSymbol(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleExport handles POST /v1/stats/:domain/export?range=day|week|month
func (s *Service) HandleExport(c *gin.Context) {
	resp, err := s.ExportReport(c.Request.Context(), c.Param("domain"), rangeSymbol(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// respondError maps service and upstream failures onto HTTP statuses so
// clients branch on error_type, not on message text.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, report.ErrNotFound):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownDomainError,
			Message:   "No report definition for this domain",
			Details:   err.Error(),
		})
	case errors.Is(err, ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid stats query",
			Details:   err.Error(),
		})
	case errors.Is(err, export.ErrEmptyInput):
		c.JSON(http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpExportEmptyError,
			Message:   "No records to export for this range",
		})
	case errors.Is(err, ErrSuperseded):
		c.JSON(http.StatusConflict, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Request superseded by a newer one",
		})
	default:
		respondUpstreamError(c, err)
	}
}

func respondUpstreamError(c *gin.Context, err error) {
	kind, ok := fetch.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to compute statistics",
			Details:   err.Error(),
		})
		return
	}

	switch kind {
	case fetch.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, httperr.ErrorResponse{
			ErrorType: httperr.HttpUpstreamUnauthorized,
			Message:   "Backend rejected the configured token",
		})
	case fetch.KindNotFound:
		c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
			ErrorType: httperr.HttpUpstreamNotFound,
			Message:   "Backend endpoint not found",
			Details:   err.Error(),
		})
	case fetch.KindNetworkError:
		c.JSON(http.StatusGatewayTimeout, httperr.ErrorResponse{
			ErrorType: httperr.HttpUpstreamUnreachable,
			Message:   "Backend unreachable or timed out",
			Details:   err.Error(),
		})
	case fetch.KindInvalidShape:
		c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidResponseShape,
			Message:   "Backend returned an unexpected payload shape",
			Details:   err.Error(),
		})
	default:
		c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
			ErrorType: httperr.HttpUpstreamError,
			Message:   "Backend request failed",
			Details:   err.Error(),
		})
	}
}
