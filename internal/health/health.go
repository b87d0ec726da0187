// Package health publishes per-provider refresh status over the gRPC health protocol.
//
// Each provider is a health service name. The empty service name reports the
// whole monitor: SERVING only while every registered provider is SERVING.
package health

import (
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Reporter wraps a grpc health server with provider bookkeeping.
type Reporter struct {
	server *health.Server

	mu        sync.Mutex
	providers map[string]bool
}

// NewReporter creates a Reporter. The overall status starts as SERVING.
func NewReporter() *Reporter {
	server := health.NewServer()
	server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Reporter{
		server:    server,
		providers: make(map[string]bool),
	}
}

// Register installs the health service on a gRPC server.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.server)
}

// SetProvider records the outcome of a provider's last refresh cycle.
func (r *Reporter) SetProvider(provider string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[provider] = ok
	r.server.SetServingStatus(provider, status(ok))

	overall := true
	for _, providerOK := range r.providers {
		overall = overall && providerOK
	}
	r.server.SetServingStatus("", status(overall))
}

// Shutdown marks every service NOT_SERVING.
func (r *Reporter) Shutdown() {
	r.server.Shutdown()
}

func status(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
