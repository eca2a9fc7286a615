package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/uptrace/bunrouter"

	settlenet "github.com/flowcap/settlenet"
)

// Server hosts the Boundary API endpoints (spec §6) against a single
// settlement Network.
type Server struct {
	network  *settlenet.Network
	router   *bunrouter.Router
	validate *validator.Validate
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New builds a Server wired against network, registering every endpoint
// named in spec §6.
func New(network *settlenet.Network, opts ...Option) *Server {
	s := &Server{
		network:  network,
		validate: validator.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = bunrouter.New(
		bunrouter.Use(s.loggingMiddleware, s.errorMiddleware),
	)
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

func (s *Server) routes() {
	s.router.POST("/invoices", s.submitInvoice)
	s.router.GET("/invoices/:id", s.getInvoice)
	s.router.GET("/invoices/:id/quote", s.getQuote)
	s.router.POST("/invoices/:id/accept", s.acceptInvoice)
	s.router.POST("/bids", s.submitBid)
	s.router.GET("/health", s.health)
	s.router.GET("/ledger/reconcile", s.reconcile)
}

// loggingMiddleware logs method, path, status, and latency for every
// request, in the style of the teacher's structured request logging.
func (s *Server) loggingMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		started := time.Now()
		err := next(w, req)
		s.logger.Info("http request",
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return err
	}
}

// errorMiddleware turns an error returned by a handler into the
// statusFor-classified JSON error body, so individual handlers never
// write the response themselves on the failure path.
func (s *Server) errorMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		err := next(w, req)
		if err == nil {
			return nil
		}

		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed", "path", req.URL.Path, "error", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
	}
}
