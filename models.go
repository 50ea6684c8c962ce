package falcon

import (
	"encoding/json"
	"fmt"
)

// Falcon cloud base URLs.
const (
	CloudUS1  = "https://api.crowdstrike.com"
	CloudUS2  = "https://api.us-2.crowdstrike.com"
	CloudEU1  = "https://api.eu-1.crowdstrike.com"
	CloudGov1 = "https://api.laggar.gcw.crowdstrike.com"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = CloudUS1

// Params holds the keyword arguments of an endpoint call. Values must be
// string, []string, int, bool or []ActionParameter as declared by the
// operation; nothing is coerced.
type Params map[string]any

// clone returns a shallow copy that is safe to modify.
func (p Params) clone() Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ActionParameter is a name/value pair for incident actions.
type ActionParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Pagination is the paging block of the envelope metadata.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// Writes reports how many resources a mutating call touched.
type Writes struct {
	ResourcesAffected int `json:"resources_affected"`
}

// Meta is the envelope metadata.
type Meta struct {
	QueryTime  float64     `json:"query_time"`
	PoweredBy  string      `json:"powered_by,omitempty"`
	TraceID    string      `json:"trace_id,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Writes     *Writes     `json:"writes,omitempty"`
}

// RateLimit holds the rate limit headers observed on a response.
type RateLimit struct {
	Limit     int
	Remaining int
}

// Envelope is the standard Falcon response body. Resources are kept as raw
// JSON; no schema is imposed on them.
type Envelope struct {
	Meta      Meta              `json:"meta"`
	Resources []json.RawMessage `json:"resources"`
	Errors    []ErrorDetail     `json:"errors"`

	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`

	// RateLimit is zero when the response carried no rate limit headers.
	RateLimit RateLimit `json:"-"`
}

// HasErrors reports whether the API put anything in the errors array.
// The API does this on some 2xx responses too.
func (e *Envelope) HasErrors() bool {
	return len(e.Errors) > 0
}

// IDs decodes the resources as a list of strings, which is what every
// query endpoint returns.
func (e *Envelope) IDs() ([]string, error) {
	ids := make([]string, 0, len(e.Resources))
	for i, raw := range e.Resources {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("resource %d is not a string: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Decode unmarshals all resources into v, which should point to a slice.
func (e *Envelope) Decode(v any) error {
	resources := e.Resources
	if resources == nil {
		resources = []json.RawMessage{}
	}
	data, err := json.Marshal(resources)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// First unmarshals the first resource into v.
func (e *Envelope) First(v any) error {
	if len(e.Resources) == 0 {
		return ErrNoResources
	}
	return json.Unmarshal(e.Resources[0], v)
}

// Total returns the pagination total, or the number of resources when the
// response is not paged.
func (e *Envelope) Total() int {
	if e.Meta.Pagination != nil {
		return e.Meta.Pagination.Total
	}
	return len(e.Resources)
}
