package falcon_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-falcon"
)

func TestHostService_Query(t *testing.T) {
	ts := newTestServer(t)
	ts.mux.HandleFunc("GET /devices/queries/devices/v1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hostname.asc", r.URL.Query().Get("sort"))
		writeEnvelope(t, w, "aid-1")
	})
	ts.mux.HandleFunc("GET /devices/queries/devices-hidden/v1", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, "aid-hidden")
	})
	client := ts.client(t)

	env, err := client.Hosts.Query(context.Background(), falcon.Params{"sort": "hostname.asc"})
	require.NoError(t, err)
	ids, err := env.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"aid-1"}, ids)

	env, err = client.Hosts.QueryHidden(context.Background(), nil)
	require.NoError(t, err)
	ids, err = env.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"aid-hidden"}, ids)
}

func TestHostService_Action(t *testing.T) {
	t.Run("action name in query, ids in body", func(t *testing.T) {
		ts := newTestServer(t)
		ts.mux.HandleFunc("POST /devices/entities/devices-actions/v2", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "contain", r.URL.Query().Get("action_name"))
			assert.Equal(t, map[string]any{"ids": []any{"aid-1"}}, decodeBody(t, r))
			writeEnvelope(t, w, map[string]any{"id": "aid-1", "path": "/devices/entities/devices/v1"})
		})

		env, err := ts.client(t).Hosts.Action(context.Background(), falcon.Params{
			"action_name": falcon.HostActionContain,
			"ids":         []string{"aid-1"},
		})
		require.NoError(t, err)
		assert.Len(t, env.Resources, 1)
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		ts := newTestServer(t)

		_, err := ts.client(t).Hosts.Action(context.Background(), falcon.Params{
			"action_name": "reboot",
			"ids":         []string{"aid-1"},
		})

		var valErr *falcon.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Contains(t, valErr.Fields, "action_name")
	})
}
