package falcon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tphakala/go-falcon/internal/api"
)

// RTRService provides real time response sessions, commands and scripts.
// Commands run asynchronously; poll their status or use the Wait methods.
//
//go:generate mockery --name=RTRService --output=mocks --outpkg=mocks --filename=rtr_service.go
type RTRService interface {
	// CreateSession opens a session on a host, or returns the caller's
	// existing one. Params: device_id (required), queue_offline.
	CreateSession(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// DeleteSession closes a session. Params: session_id (required).
	DeleteSession(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// ExecuteCommand runs a read-only command.
	// Params: base_command, command_string, session_id (all required).
	ExecuteCommand(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// CommandStatus returns one output chunk of a read-only command.
	// Params: cloud_request_id, sequence_id (both required).
	CommandStatus(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// WaitCommand polls CommandStatus every interval until the command
	// completes. It returns ErrCommandTimeout once maxTime has passed.
	WaitCommand(ctx context.Context, cloudRequestID string, interval, maxTime time.Duration, opts ...RequestOption) (*Envelope, error)

	// ExecuteAdminCommand runs an admin command such as put or runscript.
	// Params: base_command, command_string, session_id (all required), persist.
	ExecuteAdminCommand(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// AdminCommandStatus returns one output chunk of an admin command.
	// Params: cloud_request_id, sequence_id (both required).
	AdminCommandStatus(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// WaitAdminCommand is WaitCommand for admin commands.
	WaitAdminCommand(ctx context.Context, cloudRequestID string, interval, maxTime time.Duration, opts ...RequestOption) (*Envelope, error)

	// SearchScripts returns custom script IDs.
	// Params: filter, sort, offset, limit (max 5000).
	SearchScripts(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// GetScripts returns custom scripts used by runscript. Params: ids (required).
	GetScripts(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)
}

const (
	rtrSessionsPath     = "/real-time-response/entities/sessions/v1"
	rtrCommandPath      = "/real-time-response/entities/command/v1"
	rtrAdminCommandPath = "/real-time-response/entities/admin-command/v1"
)

var (
	commandSchema = schema{
		req("base_command", kindString),
		req("command_string", kindString),
		req("session_id", kindString),
	}
	commandStatusSchema = schema{
		req("cloud_request_id", kindString),
		req("sequence_id", kindInt),
	}
)

var (
	createSessionEndpoint = endpoint{
		name:   "rtr.create_session",
		method: http.MethodPost,
		path:   rtrSessionsPath,
		schema: schema{
			req("device_id", kindString),
			opt("queue_offline", kindBool),
		},
	}
	deleteSessionEndpoint = endpoint{
		name:   "rtr.delete_session",
		method: http.MethodDelete,
		path:   rtrSessionsPath,
		schema: schema{req("session_id", kindString)},
	}
	executeCommandEndpoint = endpoint{
		name:   "rtr.execute_command",
		method: http.MethodPost,
		path:   rtrCommandPath,
		schema: commandSchema,
	}
	commandStatusEndpoint = endpoint{
		name:   "rtr.command_status",
		method: http.MethodGet,
		path:   rtrCommandPath,
		schema: commandStatusSchema,
	}
	executeAdminCommandEndpoint = endpoint{
		name:   "rtr.execute_admin_command",
		method: http.MethodPost,
		path:   rtrAdminCommandPath,
		schema: commandSchema.with(opt("persist", kindBool)),
	}
	adminCommandStatusEndpoint = endpoint{
		name:   "rtr.admin_command_status",
		method: http.MethodGet,
		path:   rtrAdminCommandPath,
		schema: commandStatusSchema,
	}
	searchScriptsEndpoint = endpoint{
		name:     "rtr.search_scripts",
		method:   http.MethodGet,
		path:     "/real-time-response/queries/scripts/v1",
		schema:   pagingSchema,
		maxLimit: 5000,
	}
	getScriptsEndpoint = endpoint{
		name:   "rtr.get_scripts",
		method: http.MethodGet,
		path:   "/real-time-response/entities/scripts/v1",
		schema: schema{req("ids", kindList)},
	}
)

type rtrService struct {
	transport *api.Transport
}

func newRTRService(transport *api.Transport) *rtrService {
	return &rtrService{transport: transport}
}

func (s *rtrService) CreateSession(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, createSessionEndpoint, params, opts)
}

func (s *rtrService) DeleteSession(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, deleteSessionEndpoint, params, opts)
}

func (s *rtrService) ExecuteCommand(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, executeCommandEndpoint, params, opts)
}

func (s *rtrService) CommandStatus(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, commandStatusEndpoint, params, opts)
}

func (s *rtrService) WaitCommand(ctx context.Context, cloudRequestID string, interval, maxTime time.Duration, opts ...RequestOption) (*Envelope, error) {
	return s.wait(ctx, commandStatusEndpoint, cloudRequestID, interval, maxTime, opts)
}

func (s *rtrService) ExecuteAdminCommand(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, executeAdminCommandEndpoint, params, opts)
}

func (s *rtrService) AdminCommandStatus(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, adminCommandStatusEndpoint, params, opts)
}

func (s *rtrService) WaitAdminCommand(ctx context.Context, cloudRequestID string, interval, maxTime time.Duration, opts ...RequestOption) (*Envelope, error) {
	return s.wait(ctx, adminCommandStatusEndpoint, cloudRequestID, interval, maxTime, opts)
}

func (s *rtrService) SearchScripts(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, searchScriptsEndpoint, params, opts)
}

func (s *rtrService) GetScripts(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, getScriptsEndpoint, params, opts)
}

// wait polls a status endpoint with a fixed interval until the first
// resource reports complete or the wall clock budget is spent.
func (s *rtrService) wait(ctx context.Context, ep endpoint, cloudRequestID string, interval, maxTime time.Duration, opts []RequestOption) (*Envelope, error) {
	if cloudRequestID == "" {
		return nil, invalidParam("cloud_request_id", "is required")
	}
	if interval <= 0 {
		return nil, invalidParam("interval", "must be positive")
	}
	if maxTime <= 0 {
		return nil, invalidParam("maxtime", "must be positive")
	}

	deadline := time.Now().Add(maxTime)
	params := Params{"cloud_request_id": cloudRequestID, "sequence_id": 0}

	for attempt := 1; ; attempt++ {
		env, err := call(ctx, s.transport, ep, params, opts)
		if err != nil {
			return nil, err
		}
		if commandComplete(env) {
			return env, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s after %s (%d polls)", ErrCommandTimeout, cloudRequestID, maxTime, attempt)
		}

		s.transport.Logger.Debug("rtr command still running",
			"cloud_request_id", cloudRequestID,
			"attempt", attempt)

		timer := time.NewTimer(min(interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func commandComplete(env *Envelope) bool {
	var status struct {
		Complete bool `json:"complete"`
	}
	if err := env.First(&status); err != nil {
		return false
	}
	return status.Complete
}
