package falcon

import (
	"context"
	"net/http"
	"slices"

	"github.com/tphakala/go-falcon/internal/api"
)

// endpoint describes one API operation.
type endpoint struct {
	name   string
	method string
	path   string
	schema schema

	// maxLimit bounds the limit parameter when non-zero.
	maxLimit int

	// queryKeys are always sent in the query string, whatever the method.
	queryKeys []string

	// wrapResources sends the body as {"resources": [params]}.
	wrapResources bool

	// check runs endpoint specific validation after the schema.
	check func(Params) error
}

// prepare validates p and builds the transport request. Nothing is sent
// when validation fails.
func (e endpoint) prepare(p Params, opts []RequestOption) (*api.Request, error) {
	if err := e.schema.validate(p); err != nil {
		return nil, err
	}
	if e.maxLimit > 0 {
		if err := checkPaging(p, e.maxLimit); err != nil {
			return nil, err
		}
	}
	if e.check != nil {
		if err := e.check(p); err != nil {
			return nil, err
		}
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	req := &api.Request{
		Name:    e.name,
		Method:  e.method,
		Path:    e.path,
		Headers: reqCfg.headers,
	}

	var data map[string]any
	for k, v := range p {
		if slices.Contains(e.queryKeys, k) {
			if req.Query == nil {
				req.Query = make(map[string]any)
			}
			req.Query[k] = v
			continue
		}
		if data == nil {
			data = make(map[string]any)
		}
		data[k] = v
	}

	if e.wrapResources {
		req.Data = map[string]any{"resources": []map[string]any{data}}
	} else {
		req.Data = data
	}
	return req, nil
}

// call runs the endpoint and returns the decoded envelope. Non-2xx answers
// become typed errors.
func call(ctx context.Context, t *api.Transport, e endpoint, p Params, opts []RequestOption) (*Envelope, error) {
	req, err := e.prepare(p, opts)
	if err != nil {
		return nil, err
	}

	var env Envelope
	resp, err := t.DoJSON(ctx, req, &env)
	if err != nil {
		return nil, wrapTransportError(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(resp.StatusCode, resp.Body, resp.Headers)
	}

	env.StatusCode = resp.StatusCode
	if limit, remaining, ok := api.ParseRateLimit(resp.Headers); ok {
		env.RateLimit = RateLimit{Limit: limit, Remaining: remaining}
	}
	return &env, nil
}
