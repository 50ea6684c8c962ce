package falcon

import (
	"context"
	"net/http"

	"github.com/tphakala/go-falcon/internal/api"
)

// Detection statuses accepted by DetectService.Update.
const (
	DetectStatusNew           = "new"
	DetectStatusInProgress    = "in_progress"
	DetectStatusTruePositive  = "true_positive"
	DetectStatusFalsePositive = "false_positive"
	DetectStatusIgnored       = "ignored"
)

// DetectService provides operations on detections.
//
//go:generate mockery --name=DetectService --output=mocks --outpkg=mocks --filename=detect_service.go
type DetectService interface {
	// Query returns detection IDs.
	// Params: filter, q, sort (e.g. "last_behavior|asc"), offset, limit (max 9999).
	Query(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Summaries returns detection details. Params: ids (required).
	Summaries(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Update modifies state, assignee and visibility of detections.
	// Params: ids (required), status, assigned_to_uuid, show_in_ui, comment.
	Update(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)
}

var (
	queryDetectsEndpoint = endpoint{
		name:     "detects.query",
		method:   http.MethodGet,
		path:     "/detects/queries/detects/v1",
		schema:   pagingSchema.with(opt("q", kindString)),
		maxLimit: 9999,
	}
	detectSummariesEndpoint = endpoint{
		name:   "detects.summaries",
		method: http.MethodPost,
		path:   "/detects/entities/summaries/GET/v1",
		schema: schema{req("ids", kindList)},
	}
	updateDetectsEndpoint = endpoint{
		name:   "detects.update",
		method: http.MethodPatch,
		path:   "/detects/entities/detects/v2",
		schema: schema{
			req("ids", kindList),
			opt("status", kindString),
			opt("assigned_to_uuid", kindString),
			opt("show_in_ui", kindBool),
			opt("comment", kindString),
		},
		check: func(p Params) error {
			return oneOf(p, "status",
				DetectStatusNew,
				DetectStatusInProgress,
				DetectStatusTruePositive,
				DetectStatusFalsePositive,
				DetectStatusIgnored)
		},
	}
)

type detectService struct {
	transport *api.Transport
}

func newDetectService(transport *api.Transport) *detectService {
	return &detectService{transport: transport}
}

func (s *detectService) Query(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, queryDetectsEndpoint, params, opts)
}

func (s *detectService) Summaries(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, detectSummariesEndpoint, params, opts)
}

func (s *detectService) Update(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, updateDetectsEndpoint, params, opts)
}
