package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/coreybb/doorman/api"
	"github.com/coreybb/doorman/auth"
	"github.com/coreybb/doorman/datastore"
	rh "github.com/coreybb/doorman/route-handlers"
	"github.com/coreybb/doorman/scheduler"
	"github.com/coreybb/doorman/webutil"
)

const (
	defaultPort           = "8080"
	defaultDataDir        = "./.data"
	defaultHashingAlgo    = "hmac"
	defaultTokenTTL       = time.Hour
	defaultLoginRateLimit = 5.0 // requests per second, per client
	defaultLoginRateBurst = 10
	shutdownTimeout       = 15 * time.Second
)

type config struct {
	port             string
	dataDir          string
	hashingSecret    string
	hashingAlgo      string
	tokenTTL         time.Duration
	strictUpdateAuth bool
	loginRateLimit   float64
	loginRateBurst   int
	sweepInterval    time.Duration // 0 disables the background sweep
}

func main() {
	cfg := loadConfig()

	store, err := datastore.NewFileStore(cfg.dataDir)
	if err != nil {
		log.Fatalf("Data store setup failed: %v", err)
	}

	userRepo := datastore.NewUserRepository(store)
	tokenRepo := datastore.NewTokenRepository(store)

	hasher := newHasher(cfg)
	authenticator := auth.NewAuthenticator(userRepo, tokenRepo, hasher, cfg.tokenTTL)

	userHandler := rh.NewUserHandler(userRepo, authenticator, hasher, cfg.strictUpdateAuth)
	tokenHandler := rh.NewTokenHandler(tokenRepo, authenticator)

	loginLimiter := api.NewClientRateLimiter(cfg.loginRateLimit, cfg.loginRateBurst)
	apiRouter := api.SetupRoutes(userHandler, tokenHandler, loginLimiter)

	mainRouter := chi.NewRouter()
	mainRouter.Mount("/", apiRouter)

	// Background janitor for expired tokens
	tokenSweeper := scheduler.New(tokenRepo, cfg.sweepInterval)
	mainRouter.Post("/scheduler/tick", tokenSweeper.HandleTick)
	if cfg.sweepInterval > 0 {
		sweepCtx, cancelSweep := context.WithCancel(context.Background())
		defer cancelSweep()
		go tokenSweeper.Run(sweepCtx)
	}

	startServer(cfg.port, mainRouter)
}

func loadConfig() config {
	// Optional .env overlay for local development
	_ = godotenv.Load()

	hashingSecret := os.Getenv("HASHING_SECRET")
	if hashingSecret == "" {
		hashingSecret = "thisIsASecret"
		log.Println("WARNING: HASHING_SECRET not set, using an insecure default.")
	}

	return config{
		port:             getEnv("PORT", defaultPort),
		dataDir:          getEnv("DATA_DIR", defaultDataDir),
		hashingSecret:    hashingSecret,
		hashingAlgo:      getEnv("HASHING_ALGO", defaultHashingAlgo),
		tokenTTL:         getEnvDuration("TOKEN_TTL", defaultTokenTTL),
		strictUpdateAuth: getEnvBool("STRICT_UPDATE_AUTH", false),
		loginRateLimit:   getEnvFloat("LOGIN_RATE_LIMIT", defaultLoginRateLimit),
		loginRateBurst:   getEnvInt("LOGIN_RATE_BURST", defaultLoginRateBurst),
		sweepInterval:    getEnvDuration("SWEEP_INTERVAL", 0),
	}
}

func newHasher(cfg config) webutil.PasswordHasher {
	if cfg.hashingAlgo == "bcrypt" {
		return webutil.NewBcryptHasher()
	}
	return webutil.NewHMACHasher(cfg.hashingSecret)
}

func startServer(port string, router http.Handler) {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownSignal // Block until signal received
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("WARNING: invalid duration for %s: %q, using default", key, value)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		log.Printf("WARNING: invalid boolean for %s: %q, using default", key, value)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		log.Printf("WARNING: invalid number for %s: %q, using default", key, value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("WARNING: invalid integer for %s: %q, using default", key, value)
	}
	return defaultValue
}
