package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rh "github.com/coreybb/doorman/route-handlers"
	"github.com/coreybb/doorman/webutil"
)

const (
	usersBasePath  = "/users"
	tokensBasePath = "/tokens"
	pingPath       = "/ping"
)

func SetupRoutes(
	userHandler *rh.UserHandler,
	tokenHandler *rh.TokenHandler,
	loginLimiter *ClientRateLimiter,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)                    // Log every request
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second)) // Set a timeout context for requests

	configureUserRoutes(r, userHandler)
	configureTokenRoutes(r, tokenHandler, loginLimiter)

	// Liveness endpoint
	r.Get(pingPath, handlePing)

	// Every response is a (status, JSON payload) pair, including the
	// router's own fallbacks. Set after route registration so chi
	// propagates them to the subrouters.
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	return r
}

// --- User Routes ---
func configureUserRoutes(r chi.Router, handler *rh.UserHandler) {
	r.Route(usersBasePath, func(r chi.Router) {
		r.Post("/", webutil.MakeHandler(handler.HandleCreateUser))
		r.Get("/", webutil.MakeHandler(handler.HandleGetUser))
		r.Put("/", webutil.MakeHandler(handler.HandleUpdateUser))
		r.Delete("/", webutil.MakeHandler(handler.HandleDeleteUser))
	})
}

// --- Token Routes ---
func configureTokenRoutes(r chi.Router, handler *rh.TokenHandler, loginLimiter *ClientRateLimiter) {
	r.Route(tokensBasePath, func(r chi.Router) {
		// Login is the only credential-guessing surface; rate limit it.
		r.With(loginLimiter.Middleware).Post("/", webutil.MakeHandler(handler.HandleCreateToken))
		r.Get("/", webutil.MakeHandler(handler.HandleGetToken))
		r.Put("/", webutil.MakeHandler(handler.HandleExtendToken))
		r.Delete("/", webutil.MakeHandler(handler.HandleDeleteToken))
	})
}

// --- Utility Functions ---

func handlePing(w http.ResponseWriter, r *http.Request) {
	webutil.RespondWithJSON(w, http.StatusOK, nil)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	webutil.RespondWithJSON(w, http.StatusNotFound, nil)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	webutil.RespondWithJSON(w, http.StatusMethodNotAllowed, nil)
}
