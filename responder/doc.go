// Package responder is the request-path entry point. Handler results go
// through the success path (transformers, pagination detection, envelope
// assembly, enrichers, metadata providers) and errors through the failure
// path (classification, envelope assembly, metadata providers). Both end in
// a single JSON envelope on the wire.
package responder
