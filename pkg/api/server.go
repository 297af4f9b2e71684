package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agent-assist/ui-proxy/pkg/config"
	"github.com/agent-assist/ui-proxy/pkg/gateway"
	"github.com/agent-assist/ui-proxy/pkg/logger"
	"github.com/agent-assist/ui-proxy/pkg/secret"
	"github.com/agent-assist/ui-proxy/pkg/state"
	"github.com/agent-assist/ui-proxy/pkg/tokens"
	"github.com/agent-assist/ui-proxy/pkg/upstream"
)

const (
	requestTimeout    = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Deps are the wired components the HTTP surface is built from.
type Deps struct {
	OAuth   OAuthClient
	Issuer  *tokens.Issuer
	Sealer  *secret.Sealer
	Guard   *state.Guard
	Gateway http.Handler
}

// Handler assembles the complete proxy server router.
func Handler(cfg *config.Config, deps Deps) http.Handler {
	flow := &flowRoutes{
		oauth:  deps.OAuth,
		guard:  deps.Guard,
		appURL: cfg.ApplicationServerURL,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(CORS(cfg.ApplicationServerURL))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/", flow.entry)
	r.Get("/home", flow.home)

	r.Mount("/auth", AuthRouter(deps.OAuth, deps.Issuer, deps.Sealer, cfg.ApplicationServerURL))

	// The gateway answers under both the global and the regional resource
	// prefixes; the forwarder picks the upstream host from the path.
	r.Route("/v2beta1/projects/{projectID}", func(r chi.Router) {
		r.Use(RequireAccessToken(deps.Issuer))
		r.Mount("/locations/{locationID}", deps.Gateway)
		r.Mount("/", deps.Gateway)
	})

	return r
}

// Serve builds the component graph from config and runs the HTTP server
// until the context is cancelled.
func Serve(ctx context.Context, cfg *config.Config) error {
	sealer, err := secret.NewSealer(cfg.SecretPhrase)
	if err != nil {
		return fmt.Errorf("creating sealer: %w", err)
	}

	guard, err := state.NewGuard(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating state guard: %w", err)
	}

	issuer, err := tokens.NewIssuer(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}

	oauth, err := upstream.NewClient(&upstream.Config{
		Domain:              cfg.IdPDomain,
		AccountID:           cfg.AccountID,
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		RedirectURI:         cfg.RedirectURI(),
		AccountConfigDomain: cfg.AccountConfigDomain,
	})
	if err != nil {
		return fmt.Errorf("creating upstream client: %w", err)
	}

	creds, err := gateway.NewServiceCredentials(ctx)
	if err != nil {
		return fmt.Errorf("loading service credentials: %w", err)
	}

	forwarder, err := gateway.NewForwarder(cfg.DialogflowBaseHost, creds)
	if err != nil {
		return fmt.Errorf("creating forwarder: %w", err)
	}

	handler := Handler(cfg, Deps{
		OAuth:   oauth,
		Issuer:  issuer,
		Sealer:  sealer,
		Guard:   guard,
		Gateway: gateway.Router(forwarder),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("proxy server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Infof("shutting down proxy server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
