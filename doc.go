// Package falcon provides a Go client for the CrowdStrike Falcon REST API.
//
// # Features
//
//   - OAuth2 client credentials with token caching and a single
//     refresh-and-retry when the API rejects an expired token
//   - Service-based architecture: Sensors, EventStreams, Detects, Hosts,
//     HostGroups, Incidents, Intel and RTR
//   - Declared argument schemas checked before any request is sent
//   - Typed errors for precise error handling
//   - Functional options, environment and YAML configuration
//   - Injected slog logger, Prometheus metrics and OpenTelemetry tracing
//
// # Quick Start
//
//	client, err := falcon.NewClient(
//	    falcon.WithCredentials(clientID, clientSecret),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	env, err := client.Hosts.Query(ctx, falcon.Params{
//	    "filter": "platform_name:'Windows'",
//	    "limit":  100,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ids, err := env.IDs()
//
// # Parameters and responses
//
// Every operation takes a Params map whose keys and value types are
// declared per operation. Unknown keys, wrong types, missing required keys
// and out of range limits are rejected with a *ValidationError before
// anything is sent.
//
// Every operation returns the full response *Envelope. The API sometimes
// reports application errors inside a 2xx envelope; check HasErrors.
//
// # Error Handling
//
// Non-2xx responses become typed errors that can be inspected with errors.As:
//
//	_, err := client.HostGroups.Get(ctx, falcon.Params{"ids": []string{id}})
//	if err != nil {
//	    var notFound *falcon.NotFoundError
//	    if errors.As(err, &notFound) {
//	        // Handle not found
//	    }
//	}
//
// # Pagination
//
// Use iterators for automatic pagination of ID queries:
//
//	for id, err := range falcon.QueryIDs(ctx, client.Hosts.Query, nil) {
//	    // ...
//	}
//
//	// Collect all results into a slice
//	ids, err := falcon.Collect(falcon.QueryIDs(ctx, client.Detects.Query, params))
package falcon
