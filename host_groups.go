package falcon

import (
	"context"
	"net/http"

	"github.com/tphakala/go-falcon/internal/api"
)

// Host group types.
const (
	GroupTypeStatic  = "static"
	GroupTypeDynamic = "dynamic"
)

// HostGroupService provides host group management.
//
//go:generate mockery --name=HostGroupService --output=mocks --outpkg=mocks --filename=host_group_service.go
type HostGroupService interface {
	// Get returns host groups by ID. Params: ids (required).
	Get(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Search returns host groups matching an FQL filter. FQL values are
	// case sensitive. Params: filter, sort, offset, limit (max 5000).
	Search(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Create creates a host group.
	// Params: name, description, group_type (all required), assignment_rule
	// (required for dynamic groups).
	Create(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Update changes a host group. The id identifies the group and is not
	// itself changed. Params: id (required), name, description, assignment_rule.
	Update(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// Delete removes host groups. Params: ids (required).
	Delete(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)
}

const hostGroupsPath = "/devices/entities/host-groups/v1"

var (
	getHostGroupsEndpoint = endpoint{
		name:   "host_groups.get",
		method: http.MethodGet,
		path:   hostGroupsPath,
		schema: schema{req("ids", kindList)},
	}
	searchHostGroupsEndpoint = endpoint{
		name:     "host_groups.search",
		method:   http.MethodGet,
		path:     "/devices/combined/host-groups/v1",
		schema:   pagingSchema,
		maxLimit: 5000,
	}
	createHostGroupEndpoint = endpoint{
		name:   "host_groups.create",
		method: http.MethodPost,
		path:   hostGroupsPath,
		schema: schema{
			req("name", kindString),
			req("description", kindString),
			req("group_type", kindString),
			opt("assignment_rule", kindString),
		},
		wrapResources: true,
		check:         checkGroupType,
	}
	updateHostGroupEndpoint = endpoint{
		name:   "host_groups.update",
		method: http.MethodPatch,
		path:   hostGroupsPath,
		schema: schema{
			req("id", kindString),
			opt("name", kindString),
			opt("description", kindString),
			opt("assignment_rule", kindString),
		},
		wrapResources: true,
	}
	deleteHostGroupsEndpoint = endpoint{
		name:   "host_groups.delete",
		method: http.MethodDelete,
		path:   hostGroupsPath,
		schema: schema{req("ids", kindList)},
	}
)

func checkGroupType(p Params) error {
	if err := oneOf(p, "group_type", GroupTypeStatic, GroupTypeDynamic); err != nil {
		return err
	}
	if p["group_type"] == GroupTypeDynamic {
		if _, ok := p["assignment_rule"]; !ok {
			return invalidParam("assignment_rule", "is required for dynamic groups")
		}
	}
	return nil
}

type hostGroupService struct {
	transport *api.Transport
}

func newHostGroupService(transport *api.Transport) *hostGroupService {
	return &hostGroupService{transport: transport}
}

func (s *hostGroupService) Get(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, getHostGroupsEndpoint, params, opts)
}

func (s *hostGroupService) Search(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, searchHostGroupsEndpoint, params, opts)
}

func (s *hostGroupService) Create(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, createHostGroupEndpoint, params, opts)
}

func (s *hostGroupService) Update(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, updateHostGroupEndpoint, params, opts)
}

func (s *hostGroupService) Delete(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, deleteHostGroupsEndpoint, params, opts)
}
