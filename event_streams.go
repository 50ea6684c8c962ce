package falcon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tphakala/go-falcon/internal/api"
)

// EventStreamService discovers and maintains streaming API sessions.
//
//go:generate mockery --name=EventStreamService --output=mocks --outpkg=mocks --filename=event_stream_service.go
type EventStreamService interface {
	// List returns the event streams available to appId.
	// Params: appId (required), format ("json" or "flatjson", default "json").
	List(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Refresh keeps an active stream session on partition alive.
	Refresh(ctx context.Context, partition int, appID string, opts ...RequestOption) (*Envelope, error)
}

var (
	listStreamsEndpoint = endpoint{
		name:   "event_streams.list",
		method: http.MethodGet,
		path:   "/sensors/entities/datafeed/v2",
		schema: schema{
			req("appId", kindString),
			opt("format", kindString),
		},
		check: func(p Params) error {
			return oneOf(p, "format", "json", "flatjson")
		},
	}
	refreshStreamEndpoint = endpoint{
		name:      "event_streams.refresh",
		method:    http.MethodPost,
		path:      "/sensors/entities/datafeed-actions/v1/%d",
		schema:    schema{req("appId", kindString), req("action_name", kindString)},
		queryKeys: []string{"appId", "action_name"},
	}
)

type eventStreamService struct {
	transport *api.Transport
}

func newEventStreamService(transport *api.Transport) *eventStreamService {
	return &eventStreamService{transport: transport}
}

func (s *eventStreamService) List(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	if _, ok := params["format"]; !ok {
		params = params.clone()
		params["format"] = "json"
	}
	return call(ctx, s.transport, listStreamsEndpoint, params, opts)
}

func (s *eventStreamService) Refresh(ctx context.Context, partition int, appID string, opts ...RequestOption) (*Envelope, error) {
	if partition < 0 {
		return nil, invalidParam("partition", "must not be negative")
	}
	if appID == "" {
		return nil, invalidParam("appId", "is required")
	}

	ep := refreshStreamEndpoint
	ep.path = fmt.Sprintf(ep.path, partition)

	return call(ctx, s.transport, ep, Params{
		"appId":       appID,
		"action_name": "refresh_active_stream_session",
	}, opts)
}
