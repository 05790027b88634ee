// Package envelope defines the response wrapper written by the responder and
// the metadata blocks attached to it. Field names are part of the public wire
// contract: success, data, message, errors, statusCode (the machine-readable
// error code) and metadata.
package envelope
