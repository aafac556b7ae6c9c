// Package api exposes rank checks, keyword discovery, history and the
// competitor listing over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/proxy"
	"github.com/sells-group/placerank/internal/rank"
)

const (
	shutdownTimeout = 10 * time.Second
	pingTimeout     = 2 * time.Second
)

// Ranker runs rank checks and competitor listings.
type Ranker interface {
	Check(ctx context.Context, req rank.CheckRequest) (*model.RankCheckResult, error)
	Competitors(ctx context.Context, keyword string, limit int) (*model.CompetitorSnapshot, error)
}

// Discoverer runs keyword discovery for a listing.
type Discoverer interface {
	Discover(ctx context.Context, req rank.DiscoverRequest) (*model.DiscoveryReport, error)
}

// History reads and prunes recorded results.
type History interface {
	QueryChecks(ctx context.Context, keyword string, since time.Time) ([]model.RankCheckResult, error)
	DeleteCheck(ctx context.Context, id string) error
	ListDiscoveries(ctx context.Context, limit int) ([]model.DiscoveryReport, error)
}

// ProxyProber reports egress proxy health.
type ProxyProber func(ctx context.Context) proxy.Status

// SinkPinger checks that the result store is reachable.
type SinkPinger func(ctx context.Context) error

// Deps are the collaborators the HTTP handlers call into.
type Deps struct {
	Ranker     Ranker
	Discoverer Discoverer
	History    History
	ProbeProxy ProxyProber
	PingSink   SinkPinger
}

// Handler serves the HTTP API.
type Handler struct {
	deps Deps
	log  *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps: deps,
		log:  zap.L().With(zap.String("component", "api")),
	}
}

// NewRouter builds the chi router with CORS for the given origins.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/proxy/status", h.proxyStatus)

		r.Route("/rank", func(r chi.Router) {
			r.Post("/check", h.rankCheck)
			r.Get("/history", h.rankHistory)
			r.Delete("/history/{id}", h.deleteHistory)
		})

		r.Route("/keyhunter", func(r chi.Router) {
			r.Post("/analyze", h.analyze)
			r.Get("/history", h.discoveryHistory)
		})

		r.Get("/sellerdb/search", h.sellerSearch)
	})
	return r
}

// Serve runs the server on addr until ctx is canceled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "api: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "api: shutdown")
	}
	return nil
}

// Addr formats a listen address for port.
func Addr(port int) string {
	return fmt.Sprintf(":%d", port)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
