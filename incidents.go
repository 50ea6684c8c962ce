package falcon

import (
	"context"
	"net/http"

	"github.com/tphakala/go-falcon/internal/api"
)

// IncidentService provides operations on incidents and behaviors.
//
//go:generate mockery --name=IncidentService --output=mocks --outpkg=mocks --filename=incident_service.go
type IncidentService interface {
	// CrowdScores returns environment wide CrowdScore entities.
	// Params: filter, sort, offset, limit (max 2500).
	CrowdScores(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Query returns incident IDs.
	// Params: filter, sort, offset, limit (max 500).
	Query(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Details returns incidents by ID. Params: ids (required).
	Details(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// QueryBehaviors returns behavior IDs.
	// Params: filter, sort, offset, limit (max 500).
	QueryBehaviors(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Behaviors returns behaviors by ID. Params: ids (required).
	Behaviors(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// PerformActions tags, comments on, renames or updates incidents.
	// Params: ids and action_parameters (required), update_detects,
	// overwrite_detects.
	PerformActions(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)
}

var (
	crowdScoresEndpoint = endpoint{
		name:     "incidents.crowdscores",
		method:   http.MethodGet,
		path:     "/incidents/combined/crowdscores/v1",
		schema:   pagingSchema,
		maxLimit: 2500,
	}
	queryIncidentsEndpoint = endpoint{
		name:     "incidents.query",
		method:   http.MethodGet,
		path:     "/incidents/queries/incidents/v1",
		schema:   pagingSchema,
		maxLimit: 500,
	}
	incidentDetailsEndpoint = endpoint{
		name:   "incidents.details",
		method: http.MethodPost,
		path:   "/incidents/entities/incidents/GET/v1",
		schema: schema{req("ids", kindList)},
	}
	queryBehaviorsEndpoint = endpoint{
		name:     "incidents.query_behaviors",
		method:   http.MethodGet,
		path:     "/incidents/queries/behaviors/v1",
		schema:   pagingSchema,
		maxLimit: 500,
	}
	behaviorsEndpoint = endpoint{
		name:   "incidents.behaviors",
		method: http.MethodPost,
		path:   "/incidents/entities/behaviors/GET/v1",
		schema: schema{req("ids", kindList)},
	}
	incidentActionsEndpoint = endpoint{
		name:   "incidents.perform_actions",
		method: http.MethodPost,
		path:   "/incidents/entities/incident-actions/v1",
		schema: schema{
			req("ids", kindList),
			req("action_parameters", kindActionParameters),
			opt("update_detects", kindBool),
			opt("overwrite_detects", kindBool),
		},
		queryKeys: []string{"update_detects", "overwrite_detects"},
		check: func(p Params) error {
			if actions, _ := p["action_parameters"].([]ActionParameter); len(actions) == 0 {
				return invalidParam("action_parameters", "must not be empty")
			}
			return nil
		},
	}
)

// incidentService implements IncidentService.
type incidentService struct {
	transport *api.Transport
}

func newIncidentService(transport *api.Transport) *incidentService {
	return &incidentService{transport: transport}
}

func (s *incidentService) CrowdScores(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, crowdScoresEndpoint, params, opts)
}

func (s *incidentService) Query(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, queryIncidentsEndpoint, params, opts)
}

func (s *incidentService) Details(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, incidentDetailsEndpoint, params, opts)
}

func (s *incidentService) QueryBehaviors(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, queryBehaviorsEndpoint, params, opts)
}

func (s *incidentService) Behaviors(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, behaviorsEndpoint, params, opts)
}

func (s *incidentService) PerformActions(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, incidentActionsEndpoint, params, opts)
}
