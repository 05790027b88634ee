// Package apienvelope wraps every JSON response of an HTTP API in one
// envelope: a success flag, the payload, a message, an error list, a
// machine-readable code and a metadata block with request id, timestamp,
// version, timing, correlation id, pagination and query statistics.
//
// # Packages
//
//   - envelope: the wire types.
//   - responder: the success and failure paths, the request boundary
//     middleware and handler adapters.
//   - classifier and apierror: typed errors and the ordered rule table that
//     maps any error to status, code and client-safe messages.
//   - pagination: duck-typed detection of page-shaped results with a
//     per-type shape cache.
//   - pipeline and extension: transformers, enrichers and metadata providers,
//     plus ready-made extensions for headers, tracing and Redis.
//   - metadata and scope: metadata assembly and the per-request scope that
//     timing and query statistics hang off.
//   - querystats: gorm, MongoDB and go-redis interceptors feeding the scope.
//   - config: environment driven settings.
//   - router and info: an http.ServeMux with OpenAPI validation, CORS and
//     timeouts, and status, probe and version endpoints.
//   - metrics: Prometheus collectors for written responses.
//   - jsonutil: thin sonic wrappers.
//
// # Quick Start
//
//	settings, err := config.Load(".env")
//	resp := responder.NewResponder(
//	    responder.WithSettings(settings),
//	    responder.WithLogger(logger),
//	    responder.WithEnrichers(extension.HeaderEnricher{}),
//	)
//
//	api := http.NewServeMux()
//	api.Handle("GET /users/{id}", resp.Handle(getUser))
//
//	infoHandler := info.NewInfoHandler(
//	    info.WithInfoResponder(resp),
//	    info.WithReadinessChecks(info.NewMongoPingProbe(mongoClient, nil)),
//	)
//	infoHandler.Register(api, "/info")
//
//	srv := router.New(api, router.WithResponder(resp))
//
// Sharing the responder keeps envelopes, error codes and request ids
// consistent across API and info endpoints.
package apienvelope
