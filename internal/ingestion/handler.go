package ingestion

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
	httperr "github.com/aevon-lab/nqlflow/internal/core/errors"
	"github.com/aevon-lab/nqlflow/internal/stream"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgBacklogFull    = "Event backlog is full, retry later"
	msgRunnerStopped  = "Event processing has stopped"
	msgSubmitFailed   = "Failed to submit event"
)

// ingestionError carries the HTTP error shape from a helper back to the
// handler.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestHandler handles POST /v1/events. Accepted events are queued for the
// stream runner and acknowledged with 202.
func (s *Service) IngestHandler(c *gin.Context) {
	evt, err := s.parseEvent(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.validateEvent(evt); err != nil {
		writeError(c, err)
		return
	}

	if err := s.submitEvent(evt); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "id": evt.ID})
}

// parseEvent reads the bounded body and decodes it. Missing ids and
// timestamps are filled in here.
func (s *Service) parseEvent(c *gin.Context) (*v1.Event, *ingestionError) {
	maxBytes := int64(s.maxBodySizeBytes)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("[Ingestion] Failed to read request body", "error", err)
		return nil, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(body)) > maxBytes {
		slog.Warn("[Ingestion] Request body exceeds maximum size", "size", len(body), "max", maxBytes)
		return nil, &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	evt, err := v1.DecodeEvent(body)
	if err != nil {
		slog.Warn("[Ingestion] Invalid JSON body received", "error", err, "payload_size", len(body))
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
			details:    err.Error(),
		}
	}

	if evt.ID == "" {
		evt.ID = s.newID()
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = uint64(s.now().UnixNano())
	}
	return evt, nil
}

func (s *Service) validateEvent(evt *v1.Event) *ingestionError {
	if err := evt.Validate(); err != nil {
		slog.Warn("[Ingestion] Envelope validation failed", "error", err, "event_id", evt.ID)
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidEventError,
			message:    err.Error(),
		}
	}
	return nil
}

func (s *Service) submitEvent(evt *v1.Event) *ingestionError {
	err := s.submitter.Submit(evt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stream.ErrBacklogFull):
		slog.Warn("[Ingestion] Backlog full, event rejected", "event_id", evt.ID)
		return &ingestionError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpBacklogFullError,
			message:    msgBacklogFull,
		}
	case errors.Is(err, stream.ErrRunnerStopped):
		return &ingestionError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpRunnerStoppedError,
			message:    msgRunnerStopped,
		}
	default:
		slog.Error("[Ingestion] Failed to submit event", "error", err, "event_id", evt.ID)
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgSubmitFailed,
		}
	}
}

func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
