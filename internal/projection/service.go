// Package projection serves the read side of nqlflow: query definitions,
// ad-hoc compilation, stored results and runner status.
package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/aevon-lab/nqlflow/internal/core/nql"
	"github.com/aevon-lab/nqlflow/internal/core/storage"
	"github.com/aevon-lab/nqlflow/internal/queries"
	"github.com/aevon-lab/nqlflow/internal/stream"
)

const (
	defaultResultLimit = 100
	maxResultLimit     = 1000
)

var (
	// ErrInvalidQuery marks request validation errors that map to HTTP 400.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrStoreUnavailable is returned for result reads without a store.
	ErrStoreUnavailable = errors.New("result store not configured")
)

// StatusProvider reports the stream runner state.
type StatusProvider interface {
	Status(ctx context.Context) (stream.Status, error)
}

// QueryView is the API shape of a query definition.
type QueryView struct {
	Name        string `json:"name"`
	Query       string `json:"query"`
	Canonical   string `json:"canonical,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	Runnable    bool   `json:"runnable"`
	Error       string `json:"error,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// CompileResponse is returned by a successful compile request.
type CompileResponse struct {
	Canonical string `json:"canonical"`
	Kind      string `json:"kind"`
}

// Service implements the read-side API.
type Service struct {
	repo   queries.Repository
	cache  *nql.Cache
	store  storage.ResultStore
	status StatusProvider
}

// NewService creates the service. store and status may be nil; the
// endpoints that need them then report unavailability.
func NewService(repo queries.Repository, cache *nql.Cache, store storage.ResultStore, status StatusProvider) *Service {
	if repo == nil {
		panic("projection: repository must not be nil")
	}
	if cache == nil {
		cache = nql.NewCache(64)
	}
	return &Service{repo: repo, cache: cache, store: store, status: status}
}

// ListQueries returns every definition ordered by name.
func (s *Service) ListQueries(ctx context.Context) ([]QueryView, error) {
	defs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	views := make([]QueryView, 0, len(defs))
	for _, d := range defs {
		views = append(views, viewOf(d))
	}
	return views, nil
}

// GetQuery returns one definition, or queries.ErrNotFound.
func (s *Service) GetQuery(ctx context.Context, name string) (*QueryView, error) {
	d, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	v := viewOf(*d)
	return &v, nil
}

// Compile compiles text through the shared cache.
func (s *Service) Compile(text string) (*CompileResponse, error) {
	q, err := s.cache.Compile(text)
	if err != nil {
		return nil, err
	}
	return &CompileResponse{Canonical: q.String(), Kind: nql.KindOf(q)}, nil
}

// ListResults returns stored results newest first. limit 0 selects the
// default; larger values than the maximum are rejected.
func (s *Service) ListResults(ctx context.Context, resultType string, limit int) ([]storage.Result, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	switch {
	case limit == 0:
		limit = defaultResultLimit
	case limit < 0 || limit > maxResultLimit:
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, maxResultLimit)
	}
	switch resultType {
	case "", "aggregation", "correlation":
	default:
		return nil, fmt.Errorf("%w: unknown result type %q", ErrInvalidQuery, resultType)
	}
	return s.store.ListResults(ctx, resultType, limit)
}

// GetResult returns one stored result, or storage.ErrNotFound.
func (s *Service) GetResult(ctx context.Context, id string) (*storage.Result, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	return s.store.GetResult(ctx, id)
}

// Status returns the runner snapshot.
func (s *Service) Status(ctx context.Context) (stream.Status, error) {
	if s.status == nil {
		return stream.Status{}, stream.ErrRunnerStopped
	}
	return s.status.Status(ctx)
}

func viewOf(d queries.Definition) QueryView {
	v := QueryView{
		Name:        d.Name,
		Query:       d.Query,
		Description: d.Description,
		Enabled:     d.Enabled,
		Runnable:    d.Runnable(),
		Fingerprint: d.Fingerprint,
	}
	if d.Compiled != nil {
		v.Canonical = d.Compiled.String()
		v.Kind = nql.KindOf(d.Compiled)
	}
	if d.CompileErr != nil {
		v.Error = d.CompileErr.Error()
	}
	return v
}
