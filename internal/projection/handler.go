package projection

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/aevon-lab/nqlflow/internal/core/errors"
	"github.com/aevon-lab/nqlflow/internal/core/nql"
	"github.com/aevon-lab/nqlflow/internal/core/storage"
	"github.com/aevon-lab/nqlflow/internal/queries"
)

// RegisterRoutes registers the read-side routes on r.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/queries", s.HandleListQueries)
	r.GET("/v1/queries/:name", s.HandleGetQuery)
	r.POST("/v1/queries/compile", s.HandleCompile)
	r.GET("/v1/results", s.HandleListResults)
	r.GET("/v1/results/:id", s.HandleGetResult)
	r.GET("/v1/status", s.HandleStatus)
}

// HandleListQueries handles GET /v1/queries.
func (s *Service) HandleListQueries(c *gin.Context) {
	views, err := s.ListQueries(c.Request.Context())
	if err != nil {
		internalError(c, "Failed to list queries", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": views})
}

// HandleGetQuery handles GET /v1/queries/:name.
func (s *Service) HandleGetQuery(c *gin.Context) {
	view, err := s.GetQuery(c.Request.Context(), c.Param("name"))
	if errors.Is(err, queries.ErrNotFound) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   "Query not found",
		})
		return
	}
	if err != nil {
		internalError(c, "Failed to read query", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleCompile handles POST /v1/queries/compile with body {"query": "..."}.
// Compile errors return 400 with the offending offset.
func (s *Service) HandleCompile(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.Compile(req.Query)
	if err != nil {
		var ce *nql.CompileError
		if errors.As(err, &ce) {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpCompileError,
				Message:   ce.Message,
				Details:   gin.H{"offset": ce.Offset, "query": ce.Query},
			})
			return
		}
		internalError(c, "Failed to compile query", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListResults handles GET /v1/results?type=&limit=.
func (s *Service) HandleListResults(c *gin.Context) {
	var query struct {
		Type  string `form:"type"`
		Limit int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	results, err := s.ListResults(c.Request.Context(), query.Type, query.Limit)
	if err != nil {
		s.resultError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// HandleGetResult handles GET /v1/results/:id.
func (s *Service) HandleGetResult(c *gin.Context) {
	res, err := s.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.resultError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleStatus handles GET /v1/status.
func (s *Service) HandleStatus(c *gin.Context) {
	st, err := s.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpRunnerStoppedError,
			Message:   "Runner status unavailable",
			Details:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Service) resultError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid results query",
			Details:   err.Error(),
		})
	case errors.Is(err, ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreUnavailableError,
			Message:   "Result storage is not configured",
		})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   "Result not found",
		})
	default:
		internalError(c, "Failed to read results", err)
	}
}

func internalError(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   msg,
		Details:   err.Error(),
	})
}
