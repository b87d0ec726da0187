package grpcclient

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// CheckHealth asks the health service for service's status. The empty
// service name is the whole monitor; a provider name is that provider.
func CheckHealth(ctx context.Context, conn grpc.ClientConnInterface, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("grpcclient: health check %q: %w", service, err)
	}
	return resp.GetStatus(), nil
}

// Serving reports whether service is SERVING.
func Serving(ctx context.Context, conn grpc.ClientConnInterface, service string) (bool, error) {
	status, err := CheckHealth(ctx, conn, service)
	if err != nil {
		return false, err
	}
	return status == healthpb.HealthCheckResponse_SERVING, nil
}
