package falcon

import (
	"context"
	"net/http"

	"github.com/tphakala/go-falcon/internal/api"
)

// IntelService provides threat intelligence lookups.
//
//go:generate mockery --name=IntelService --output=mocks --outpkg=mocks --filename=intel_service.go
type IntelService interface {
	// Indicators returns indicators matching an FQL filter.
	// Params: filter, q, sort (e.g. "published_date|asc"), offset,
	// limit (1-50000), include_deleted.
	//
	// Some accounts reject any offset other than 0 with a 400.
	Indicators(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)
}

var indicatorsEndpoint = endpoint{
	name:   "intel.indicators",
	method: http.MethodGet,
	path:   "/intel/combined/indicators/v1",
	schema: pagingSchema.with(
		opt("q", kindString),
		opt("include_deleted", kindBool),
	),
	maxLimit: 50000,
}

type intelService struct {
	transport *api.Transport
}

func newIntelService(transport *api.Transport) *intelService {
	return &intelService{transport: transport}
}

func (s *intelService) Indicators(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, indicatorsEndpoint, params, opts)
}
