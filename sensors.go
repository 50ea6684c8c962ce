package falcon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/tphakala/go-falcon/internal/api"
)

const (
	maxInstallerErrorBody = 64 * 1024

	installerFileMode os.FileMode = 0o644
)

// SensorService provides sensor installer operations.
//
//go:generate mockery --name=SensorService --output=mocks --outpkg=mocks --filename=sensor_service.go
type SensorService interface {
	// CCID returns the customer ID with checksum used by installers.
	CCID(ctx context.Context, opts ...RequestOption) (string, error)

	// QueryInstallers returns installer IDs (SHA256 hashes) matching an FQL filter.
	// Params: filter, sort, offset, limit (max 500).
	QueryInstallers(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// InstallerDetails returns installer metadata. Params: ids (required).
	InstallerDetails(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error)

	// LatestInstallerID returns the most recently released installer
	// matching filter, e.g. "platform:'windows'".
	LatestInstallerID(ctx context.Context, filter string, opts ...RequestOption) (string, error)

	// Download writes the installer binary to path and returns its size.
	Download(ctx context.Context, id, path string, opts ...RequestOption) (int64, error)
}

var (
	ccidEndpoint = endpoint{
		name:   "sensors.ccid",
		method: http.MethodGet,
		path:   "/sensors/queries/installers/ccid/v1",
	}
	queryInstallersEndpoint = endpoint{
		name:     "sensors.query_installers",
		method:   http.MethodGet,
		path:     "/sensors/queries/installers/v1",
		schema:   pagingSchema,
		maxLimit: 500,
	}
	installerDetailsEndpoint = endpoint{
		name:   "sensors.installer_details",
		method: http.MethodGet,
		path:   "/sensors/entities/installers/v1",
		schema: schema{req("ids", kindList)},
	}
	downloadInstallerEndpoint = endpoint{
		name:   "sensors.download_installer",
		method: http.MethodGet,
		path:   "/sensors/entities/download-installer/v1",
		schema: schema{req("id", kindString)},
	}
)

type sensorService struct {
	transport *api.Transport
}

func newSensorService(transport *api.Transport) *sensorService {
	return &sensorService{transport: transport}
}

func (s *sensorService) CCID(ctx context.Context, opts ...RequestOption) (string, error) {
	env, err := call(ctx, s.transport, ccidEndpoint, nil, opts)
	if err != nil {
		return "", err
	}

	var ccid string
	if err := env.First(&ccid); err != nil {
		return "", fmt.Errorf("falcon: decoding CCID: %w", err)
	}
	return ccid, nil
}

func (s *sensorService) QueryInstallers(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, queryInstallersEndpoint, params, opts)
}

func (s *sensorService) InstallerDetails(ctx context.Context, params Params, opts ...RequestOption) (*Envelope, error) {
	return call(ctx, s.transport, installerDetailsEndpoint, params, opts)
}

func (s *sensorService) LatestInstallerID(ctx context.Context, filter string, opts ...RequestOption) (string, error) {
	params := Params{"sort": "release_date|desc", "limit": 1}
	if filter != "" {
		params["filter"] = filter
	}

	env, err := s.QueryInstallers(ctx, params, opts...)
	if err != nil {
		return "", err
	}

	ids, err := env.IDs()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "no installer matches the filter"},
			ResourceType: "sensor installer",
			ResourceID:   filter,
		}
	}
	return ids[0], nil
}

// Download streams the installer into a temporary file next to path and
// renames it into place once complete. The temporary file is created
// before the request, so an unwritable destination fails without any
// network traffic and no partial file is ever left at path.
func (s *sensorService) Download(ctx context.Context, id, path string, opts ...RequestOption) (n int64, err error) {
	if path == "" {
		return 0, invalidParam("path", "is required")
	}

	req, err := downloadInstallerEndpoint.prepare(Params{"id": id}, opts)
	if err != nil {
		return 0, err
	}
	if id == "" {
		return 0, invalidParam("id", "must not be empty")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("falcon: preparing %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	resp, err := s.transport.Stream(ctx, req)
	if err != nil {
		return 0, wrapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxInstallerErrorBody))
		return 0, parseError(resp.StatusCode, body, resp.Header)
	}

	n, err = io.Copy(tmp, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("falcon: writing installer after %s: %w", humanize.Bytes(uint64(n)), err)
	}
	// CreateTemp uses 0600; installers get regular file permissions.
	if err = tmp.Chmod(installerFileMode); err != nil {
		return 0, fmt.Errorf("falcon: writing installer: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("falcon: writing installer: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("falcon: moving installer into place: %w", err)
	}

	s.transport.Logger.Info("downloaded sensor installer",
		"id", id,
		"path", path,
		"size", humanize.Bytes(uint64(n)))

	return n, nil
}
