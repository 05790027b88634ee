package router

import (
	"context"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapiMW "github.com/oapi-codegen/nethttp-middleware"

	"github.com/drblury/apienvelope/apierror"
	"github.com/drblury/apienvelope/responder"
)

func oapiMiddleware(swagger *openapi3.T, resp *responder.Responder) Middleware {
	return func(next http.Handler) http.Handler {
		// Clear out the servers array in the swagger spec, that skips validating
		// that server names match. We don't know how this thing will be run.
		swagger.Servers = nil

		validatorOptions := &oapiMW.Options{
			Options: openapi3filter.Options{
				AuthenticationFunc: func(c context.Context, input *openapi3filter.AuthenticationInput) error {
					return nil
				},
			},
		}
		if resp == nil {
			return oapiMW.OapiRequestValidatorWithOptions(swagger, validatorOptions)(next)
		}

		validatorOptions.ErrorHandler = func(w http.ResponseWriter, message string, statusCode int) {
			vw, ok := w.(*validationWriter)
			if !ok {
				http.Error(w, message, statusCode)
				return
			}
			resp.HandleErrors(vw.ResponseWriter, vw.req, validationError(statusCode, message), "openapi request validation failed")
		}
		validate := oapiMW.OapiRequestValidatorWithOptions(swagger, validatorOptions)(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			validate.ServeHTTP(&validationWriter{ResponseWriter: w, req: r}, r)
		})
	}
}

// validationWriter carries the request to the validator's error callback,
// which only receives the writer.
type validationWriter struct {
	http.ResponseWriter
	req *http.Request
}

func (w *validationWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *validationWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func validationError(status int, message string) error {
	switch status {
	case http.StatusBadRequest:
		return apierror.Validation("The request does not match the API schema.", message)
	case http.StatusUnauthorized:
		return apierror.Unauthorized(message)
	case http.StatusForbidden:
		return apierror.Forbidden(message)
	case http.StatusNotFound:
		return apierror.NotFound(message)
	default:
		return apierror.WithStatus(status, message)
	}
}
