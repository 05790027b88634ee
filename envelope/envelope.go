package envelope

import "time"

// Envelope is the uniform response body written for every wrapped request.
//
// A failed envelope never carries data and Errors is never nil; Normalize
// enforces both before the envelope reaches the wire.
type Envelope struct {
	Success   bool              `json:"success"`
	Data      any               `json:"data"`
	Message   string            `json:"message,omitempty"`
	Errors    []string          `json:"errors"`
	ErrorCode string            `json:"statusCode,omitempty"`
	Metadata  *ResponseMetadata `json:"metadata,omitempty"`
}

// ResponseMetadata is the per-request diagnostic block. Each request owns its
// own instance.
type ResponseMetadata struct {
	RequestID       string              `json:"requestId"`
	Timestamp       time.Time           `json:"timestamp"`
	ExecutionTimeMs *int64              `json:"executionTimeMs,omitempty"`
	Version         string              `json:"version"`
	CorrelationID   string              `json:"correlationId,omitempty"`
	Path            string              `json:"path"`
	Method          string              `json:"method"`
	Pagination      *PaginationMetadata `json:"pagination,omitempty"`
	Query           *QueryMetadata      `json:"query,omitempty"`
	Additional      map[string]any      `json:"additional,omitempty"`
}

// PaginationMetadata is hoisted out of paginated handler results.
type PaginationMetadata struct {
	Page            int  `json:"page"`
	PageSize        int  `json:"pageSize"`
	TotalPages      int  `json:"totalPages"`
	TotalItems      int  `json:"totalItems"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// QueryMetadata summarises the data-access work performed for a request.
type QueryMetadata struct {
	DatabaseQueriesCount    int      `json:"databaseQueriesCount"`
	DatabaseExecutionTimeMs float64  `json:"databaseExecutionTimeMs"`
	CacheHits               int      `json:"cacheHits"`
	CacheMisses             int      `json:"cacheMisses"`
	ExecutedQueries         []string `json:"executedQueries,omitempty"`
}

// Typed mirrors the wire format with a concrete data type. Clients and tests
// use it to decode envelopes without going through map[string]any.
type Typed[T any] struct {
	Success   bool              `json:"success"`
	Data      T                 `json:"data"`
	Message   string            `json:"message,omitempty"`
	Errors    []string          `json:"errors"`
	ErrorCode string            `json:"statusCode,omitempty"`
	Metadata  *ResponseMetadata `json:"metadata,omitempty"`
}

// Success builds a successful envelope around data.
func Success(data any, message string, meta *ResponseMetadata) *Envelope {
	return &Envelope{
		Success:  true,
		Data:     data,
		Message:  message,
		Errors:   []string{},
		Metadata: meta,
	}
}

// Failure builds a failed envelope. The errors slice is copied.
func Failure(code, message string, errs []string, meta *ResponseMetadata) *Envelope {
	copied := make([]string, 0, len(errs))
	copied = append(copied, errs...)
	return &Envelope{
		Success:   false,
		Message:   message,
		Errors:    copied,
		ErrorCode: code,
		Metadata:  meta,
	}
}

// Normalize restores the envelope invariants after extensions had a chance
// to mutate it.
func (e *Envelope) Normalize() {
	if e == nil {
		return
	}
	if !e.Success {
		e.Data = nil
	}
	if e.Errors == nil {
		e.Errors = []string{}
	}
}

// SetAdditional stores key in the metadata additional map, allocating the
// metadata block and map on first use.
func (e *Envelope) SetAdditional(key string, value any) {
	if e.Metadata == nil {
		e.Metadata = &ResponseMetadata{}
	}
	if e.Metadata.Additional == nil {
		e.Metadata.Additional = make(map[string]any)
	}
	e.Metadata.Additional[key] = value
}
