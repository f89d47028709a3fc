package observability

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthChecker reports readiness over gRPC health and HTTP /healthz.
// The client is ready while its stream is authenticated and, when Kafka is in use, the producer is up.
type HealthChecker struct {
	grpcHealth *health.Server
	httpServer *http.Server
	logger     *zap.Logger
	metrics    *Metrics
	mu         sync.RWMutex
	shutdown   bool
	streamUp   bool
	kafkaReady bool
	usesKafka  bool
}

// NewHealthChecker creates a new health checker. metrics may be nil.
func NewHealthChecker(logger *zap.Logger, metrics *Metrics) *HealthChecker {
	h := &HealthChecker{
		grpcHealth: health.NewServer(),
		logger:     logger,
		metrics:    metrics,
	}
	h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return h
}

// RegisterGRPC registers the health service with the gRPC server
func (h *HealthChecker) RegisterGRPC(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.grpcHealth)
}

// Handler returns the HTTP mux serving /healthz and /metrics
func (h *HealthChecker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.Handle("/metrics", h.metrics.Handler())
	return mux
}

// StartHTTPServer starts the HTTP health and metrics server
func (h *HealthChecker) StartHTTPServer(addr string) error {
	h.mu.Lock()
	h.httpServer = &http.Server{
		Addr:    addr,
		Handler: h.Handler(),
	}
	srv := h.httpServer
	h.mu.Unlock()

	h.logger.Info("starting HTTP health server", zap.String("addr", addr))
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the health checker
func (h *HealthChecker) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.shutdown = true
	h.grpcHealth.Shutdown()
	srv := h.httpServer
	h.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// SetStreamReady records whether the market-data stream is authenticated
func (h *HealthChecker) SetStreamReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamUp != ready {
		h.logger.Info("stream readiness changed", zap.Bool("ready", ready))
	}
	h.streamUp = ready
	h.publishLocked()
}

// SetKafkaReady sets the Kafka client readiness status
func (h *HealthChecker) SetKafkaReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kafkaReady = ready
	h.usesKafka = true
	h.publishLocked()
}

// Ready reports the combined readiness
func (h *HealthChecker) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.readyLocked()
}

func (h *HealthChecker) readyLocked() bool {
	return !h.shutdown && h.streamUp && (!h.usesKafka || h.kafkaReady)
}

func (h *HealthChecker) publishLocked() {
	if h.shutdown {
		return
	}
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if h.readyLocked() {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.grpcHealth.SetServingStatus("", status)
}

func (h *HealthChecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.Ready() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT_READY"))
	}
}
