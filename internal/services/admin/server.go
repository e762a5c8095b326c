package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/louisbranch/storefront/internal/platform/timeouts"
	"github.com/louisbranch/storefront/internal/services/admin/routepath"
)

// Config defines the inputs for the admin HTTP server.
type Config struct {
	Addr  string
	Token TokenConfig
}

// Server hosts the operator JSON API behind the admin middleware chain.
type Server struct {
	httpAddr   string
	httpServer *http.Server
}

// NewServer wraps the composed route handler with tracing, request
// correlation, logging, panic recovery, and bearer authentication. The
// health route stays outside authentication.
func NewServer(cfg Config, routes http.Handler) *Server {
	if routes == nil {
		routes = http.NotFoundHandler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc(routepath.Healthz, handleHealthz)
	mux.Handle("/", requireAuth(routes, cfg.Token))

	handler := Chain(mux, RequestID(), RequestLog(), RecoverPanic())
	wrapped := otelhttp.NewHandler(handler, "admin")

	return &Server{
		httpAddr: cfg.Addr,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           wrapped,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
	}
}

// Handler exposes the fully wrapped root handler for tests.
func (s *Server) Handler() http.Handler {
	if s == nil || s.httpServer == nil {
		return http.NotFoundHandler()
	}
	return s.httpServer.Handler
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("admin server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("admin listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
