package falcon

import (
	"context"
	"net/http"

	"github.com/tphakala/go-falcon/internal/api"
)

// Host actions accepted by HostService.Action.
const (
	HostActionContain         = "contain"
	HostActionLiftContainment = "lift_containment"
	HostActionHide            = "hide_host"
	HostActionUnhide          = "unhide_host"
)

// HostService provides host inventory and actions.
//
//go:generate mockery --name=HostService --output=mocks --outpkg=mocks --filename=host_service.go
type HostService interface {
	// Query returns host agent IDs (AIDs).
	// Params: filter, sort (e.g. "hostname.asc"), offset, limit (max 5000).
	Query(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// QueryHidden returns hidden host IDs. Same params as Query.
	QueryHidden(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Details returns host records. Params: ids (required).
	Details(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Action contains, lifts containment, hides or unhides hosts.
	// Params: action_name (required), ids (required).
	Action(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)
}

var (
	queryHostsEndpoint = endpoint{
		name:     "hosts.query",
		method:   http.MethodGet,
		path:     "/devices/queries/devices/v1",
		schema:   pagingSchema,
		maxLimit: 5000,
	}
	queryHiddenHostsEndpoint = endpoint{
		name:     "hosts.query_hidden",
		method:   http.MethodGet,
		path:     "/devices/queries/devices-hidden/v1",
		schema:   pagingSchema,
		maxLimit: 5000,
	}
	hostDetailsEndpoint = endpoint{
		name:   "hosts.details",
		method: http.MethodGet,
		path:   "/devices/entities/devices/v1",
		schema: schema{req("ids", kindList)},
	}
	hostActionEndpoint = endpoint{
		name:   "hosts.action",
		method: http.MethodPost,
		path:   "/devices/entities/devices-actions/v2",
		schema: schema{
			req("action_name", kindString),
			req("ids", kindList),
		},
		queryKeys: []string{"action_name"},
		check: func(p Params) error {
			return oneOf(p, "action_name",
				HostActionContain,
				HostActionLiftContainment,
				HostActionHide,
				HostActionUnhide)
		},
	}
)

type hostService struct {
	transport *api.Transport
}

func newHostService(transport *api.Transport) *hostService {
	return &hostService{transport: transport}
}

func (s *hostService) Query(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, queryHostsEndpoint, params, opts)
}

func (s *hostService) QueryHidden(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, queryHiddenHostsEndpoint, params, opts)
}

func (s *hostService) Details(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, hostDetailsEndpoint, params, opts)
}

func (s *hostService) Action(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, hostActionEndpoint, params, opts)
}
