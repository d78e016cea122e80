package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/coffee-env/internal/api"
	"github.com/eugenenazirov/coffee-env/internal/apiclient"
	"github.com/eugenenazirov/coffee-env/internal/auth"
	"github.com/eugenenazirov/coffee-env/internal/config"
	"github.com/eugenenazirov/coffee-env/internal/environment"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	env      environment.Environment
	provider *auth.Provider
	keys     *auth.KeyCache
	client   *apiclient.Client
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	env, err := cfg.Record()
	if err != nil {
		return nil, fmt.Errorf("failed to select environment: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate environment: %w", err)
	}

	provider, err := auth.NewProvider(env.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to configure auth provider: %w", err)
	}

	client, err := apiclient.New(env)
	if err != nil {
		return nil, fmt.Errorf("failed to configure API client: %w", err)
	}

	keys := auth.NewKeyCache(provider.JWKSURL(),
		auth.WithTTL(cfg.JWKSCacheTTL),
		auth.WithKeyLogger(logger.Named("jwks")),
	)
	verifier := auth.NewVerifier(provider, keys)

	handler := api.NewHandler(env, provider, verifier)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	logger.Info("environment selected",
		zap.String("environment", env.Name()),
		zap.Bool("production", env.Production),
		zap.String("api_server_url", client.BaseURL()),
		zap.String("auth_domain", env.Auth.Domain),
	)

	return &App{
		env:      env,
		provider: provider,
		keys:     keys,
		client:   client,
		handler:  handler,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

// BuildRootHandler mounts the API under /api/ and sends the bare root to the environment document.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/api/environment", http.StatusTemporaryRedirect)
	}))
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), apiCheckTimeout)
		defer cancel()
		_ = checkAPIServer(ctx, a.client, a.logger)
	}()
	return nil
}

const apiCheckTimeout = 5 * time.Second

// checkAPIServer fetches the public drinks listing once so a wrong apiServerUrl
// shows up in the logs at startup. Failure is reported, never fatal.
func checkAPIServer(ctx context.Context, client *apiclient.Client, logger *zap.Logger) error {
	req, err := client.NewRequest(ctx, http.MethodGet, "/drinks", "", nil)
	if err != nil {
		return err
	}
	if err := client.Do(req, nil); err != nil {
		logger.Warn("API server not reachable", zap.String("url", client.Drinks()), zap.Error(err))
		return err
	}
	logger.Info("API server reachable", zap.String("url", client.Drinks()))
	return nil
}

// Client returns the coffee shop API client bound to the selected record.
func (a *App) Client() *apiclient.Client {
	return a.client
}

// Environment returns the record the application serves.
func (a *App) Environment() environment.Environment {
	return a.env
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
