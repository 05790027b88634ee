// Package info exposes build metadata, health probes, and the OpenAPI
// document. JSON endpoints answer through a responder, so probe failures and
// version payloads share the response envelope of the API they sit next to.
//
// See ExampleInfoHandler_full for a runnable wiring of the handler and probes.
package info
