// Package router wraps http.ServeMux with a default middleware chain: access
// logging, CORS preflight handling, OpenAPI request validation and request
// timeouts, in that order. With WithResponder the chain opens with the
// responder's request boundary, so validation failures and refused
// preflights are written as failure envelopes and every access log line
// names the request id of the envelope the client received.
package router
