package responder

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/drblury/apienvelope/apierror"
	"github.com/drblury/apienvelope/jsonutil"
)

// ReadRequestBody parses the request body into the provided value and handles
// malformed content by writing a bad-request envelope.
func (r *Responder) ReadRequestBody(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := r.decodeRequestBody(req, v); err != nil {
		r.HandleErrors(w, req, err, "failed to parse request body")
		return false
	}
	return true
}

func (r *Responder) decodeRequestBody(req *http.Request, v any) error {
	if req == nil || req.Body == nil || req.Body == http.NoBody {
		return apierror.BadRequest("A request body is required.")
	}
	if err := jsonutil.Decode(req.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.Wrap(apierror.KindBadRequest, io.ErrUnexpectedEOF, "A request body is required.")
		}
		return apierror.Wrap(apierror.KindBadRequest, err, "The request body is not valid JSON.")
	}
	return nil
}

func requestInstance(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.RequestURI()
}

func requestPath(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.Path
}

func requestContext(req *http.Request) context.Context {
	if req == nil {
		return context.Background()
	}
	return req.Context()
}
