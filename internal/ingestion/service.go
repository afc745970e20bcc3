package ingestion

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	v1 "github.com/aevon-lab/nqlflow/internal/api/v1"
)

// Submitter accepts events for asynchronous processing.
type Submitter interface {
	Submit(evt *v1.Event) error
}

type Service struct {
	submitter        Submitter
	maxBodySizeBytes int
	now              func() time.Time
	newID            func() string
}

func NewService(submitter Submitter, maxBodySizeMB int) *Service {
	if submitter == nil {
		panic("ingestion: submitter must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1
	}
	return &Service{
		submitter:        submitter,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		now:              time.Now,
		newID:            uuid.NewString,
	}
}

// RegisterRoutes registers the ingestion routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.IngestHandler)
}
