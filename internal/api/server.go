// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/babylon-scanner/internal/adapter"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/models"
	"github.com/babylon-scanner/internal/service"
	"github.com/babylon-scanner/internal/types"
)

// Service interfaces for dependency injection and testing

// ExplorerAPI serves the chain dashboard views
type ExplorerAPI interface {
	GetNetworkStats(ctx context.Context) (*types.NetworkStats, error)
	GetRecentBlocks(ctx context.Context, count int) (*types.BlockWindow, error)
	GetRecentTransactions(ctx context.Context, limit int) (*service.RecentTransactions, error)
	GetTransaction(ctx context.Context, hash string) (*service.TransactionDetail, error)
	GetAddressInfo(ctx context.Context, address string) (*types.AddressInfo, error)
	GetAddressTransactions(ctx context.Context, address string, limit int) (*types.AddressTransactions, error)
	GetNetworkOverview(ctx context.Context) (*types.NetworkOverview, error)
	GetFinalityProviders(ctx context.Context) (*types.FinalityProviderRanking, error)
	GetBTCDelegations(ctx context.Context, status string) (*types.StakingOverview, error)
	GetKnownEntities(ctx context.Context) (*types.KnownEntities, error)
}

// WatchlistAPI manages the operator watchlist
type WatchlistAPI interface {
	AddWatchedAddress(ctx context.Context, address, nickname string) (*models.WatchedAddress, error)
	ListWatchedAddresses(ctx context.Context) (*service.Watchlist, error)
	RemoveWatchedAddress(ctx context.Context, id int64) error
}

// RiskAPI scores addresses
type RiskAPI interface {
	AnalyzeAddress(ctx context.Context, address string) (*types.RiskAnalysis, error)
}

// LabelingAPI reads and writes address labels
type LabelingAPI interface {
	AddLabel(ctx context.Context, input service.AddLabelInput) (*models.AddressLabel, error)
	ListLabels(ctx context.Context, category string, limit int) (*service.LabelList, error)
	GetAddressLabels(ctx context.Context, address string) ([]*models.AddressLabel, error)
	DeleteLabel(ctx context.Context, id int64) error
	RunAutoLabeling(ctx context.Context) *service.LabelingReport
}

// NodeHealthFunc reports the node client's health for /health
type NodeHealthFunc func() adapter.NodeHealth

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	handler     http.Handler
	httpServer  *http.Server
	rateLimiter *RateLimiter
	explorer    ExplorerAPI
	watchlist   WatchlistAPI
	risk        RiskAPI
	labeling    LabelingAPI
	nodeHealth  NodeHealthFunc
	logger      *logging.Logger
	config      *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64 // Requests per second per client
	RateBurst       int
}

// Services bundles the handlers' dependencies
type Services struct {
	Explorer   ExplorerAPI
	Watchlist  WatchlistAPI
	Risk       RiskAPI
	Labeling   LabelingAPI
	NodeHealth NodeHealthFunc
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		router:     mux.NewRouter(),
		explorer:   services.Explorer,
		watchlist:  services.Watchlist,
		risk:       services.Risk,
		labeling:   services.Labeling,
		nodeHealth: services.NodeHealth,
		logger:     logger.WithField("component", "api"),
		config:     config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.rateLimiter = NewRateLimiter(s.config.RateLimitRPS, s.config.RateBurst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(RateLimitMiddleware(s.rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "route not found", nil)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	// CORS wraps the router so preflight requests and unmatched routes carry the headers too
	s.handler = CORSMiddleware(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Chain head and history
	api.HandleFunc("/blockchain/stats", s.handleNetworkStats).Methods("GET")
	api.HandleFunc("/blockchain/blocks", s.handleRecentBlocks).Methods("GET")
	api.HandleFunc("/blockchain/transactions", s.handleRecentTransactions).Methods("GET")
	api.HandleFunc("/transactions/{hash}", s.handleGetTransaction).Methods("GET")
	api.HandleFunc("/analytics/overview", s.handleNetworkOverview).Methods("GET")

	// Address endpoints
	api.HandleFunc("/addresses/{address}", s.handleGetAddress).Methods("GET")
	api.HandleFunc("/addresses/{address}/transactions", s.handleAddressTransactions).Methods("GET")
	api.HandleFunc("/addresses/{address}/labels", s.handleAddressLabels).Methods("GET")

	// Babylon staking
	api.HandleFunc("/babylon/finality-providers", s.handleFinalityProviders).Methods("GET")
	api.HandleFunc("/babylon/staking", s.handleStaking).Methods("GET")

	// Compliance and labels
	api.HandleFunc("/compliance/analyze", s.handleAnalyze).Methods("POST")
	api.HandleFunc("/compliance/entities", s.handleKnownEntities).Methods("GET")
	api.HandleFunc("/labels", s.handleListLabels).Methods("GET")
	api.HandleFunc("/labels", s.handleAddLabel).Methods("POST")
	api.HandleFunc("/labels/{id}", s.handleDeleteLabel).Methods("DELETE")
	api.HandleFunc("/labeling/auto", s.handleAutoLabeling).Methods("POST")

	// Watchlist
	api.HandleFunc("/watchlist", s.handleListWatched).Methods("GET")
	api.HandleFunc("/watchlist", s.handleAddWatched).Methods("POST")
	api.HandleFunc("/watchlist/{id}", s.handleRemoveWatched).Methods("DELETE")
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status  string              `json:"status"`
	Service string              `json:"service"`
	Node    *adapter.NodeHealth `json:"node,omitempty"`
}

// handleHealth reports process liveness and, when wired, the node client's health.
// The process stays healthy while the node is down; views degrade instead.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Service: "babylon-scanner"}
	if s.nodeHealth != nil {
		node := s.nodeHealth()
		resp.Node = &node
		if !node.IsHealthy {
			resp.Status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Handler returns the full handler chain, e.g. for tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// RateLimiter exposes the per-client limiter so idle entries can be purged
func (s *Server) RateLimiter() *RateLimiter {
	return s.rateLimiter
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Infof("starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
