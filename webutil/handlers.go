package webutil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/coreybb/doorman/datastore"
)

// AppHandler represents a handler function that returns an error.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// MakeHandler adapts an AppHandler to the standard http.HandlerFunc signature.
// It executes the AppHandler and handles any returned error by logging appropriately
// and sending a standardized JSON error response.
func MakeHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := handler(w, r)
		if err == nil {
			// The handler is assumed to have written its own successful response.
			return
		}

		var httpErr *HTTPError
		var publicMessage string
		var statusCode int

		switch {
		case errors.As(err, &httpErr):
			// An HTTPError we explicitly created (e.g. ErrBadRequest, ErrForbidden)
			statusCode = httpErr.Code
			publicMessage = httpErr.Message
			logLevel := slog.LevelWarn // Treat client errors as warnings server-side
			if statusCode >= 500 {
				logLevel = slog.LevelError
			}
			attrs := []any{
				"code", httpErr.Code,
				"msg", httpErr.Message,
				"path", r.URL.Path,
				"method", r.Method,
			}
			// Log the underlying cause if present and different from the public message
			if cause := errors.Unwrap(httpErr); cause != nil && cause.Error() != publicMessage {
				attrs = append(attrs, "cause", cause)
			}
			slog.Log(r.Context(), logLevel, "Client error response", attrs...)

		case errors.Is(err, datastore.ErrNotFound):
			// A datastore miss that bubbled up unmapped -> 404 Not Found
			statusCode = http.StatusNotFound
			publicMessage = "Resource not found"
			slog.Info("Resource not found", "path", r.URL.Path, "method", r.Method, "error", err)

		default:
			// Any other error is treated as an internal server error
			statusCode = http.StatusInternalServerError
			publicMessage = "Internal Server Error"
			slog.Error("Unhandled internal error", "path", r.URL.Path, "method", r.Method, "error", err)
		}

		RespondWithJSON(w, statusCode, map[string]string{"error": publicMessage})
	}
}
