package agent

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// LivenessServer exposes per-component serving status over the standard
// gRPC health-checking protocol, so an external supervisor can poll
// whether the components registered through SetServing are alive without
// needing a bespoke wire
// format (spec.md §1 scopes a real agent RPC format out of the core; this
// is liveness only, not the message channel itself).
type LivenessServer struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// NewLivenessServer constructs a gRPC server with the health and
// reflection services registered; every component name passed to
// SetServing starts out NOT_SERVING until explicitly flipped.
func NewLivenessServer() *LivenessServer {
	h := health.NewServer()
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)
	return &LivenessServer{grpcServer: s, health: h}
}

// SetServing flips a component's serving status (e.g. "scheduler",
// "syncmgr", "eventloop", "agent").
func (l *LivenessServer) SetServing(component string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	l.health.SetServingStatus(component, status)
}

// Serve blocks accepting connections on lis until the server is stopped.
func (l *LivenessServer) Serve(lis net.Listener) error {
	return l.grpcServer.Serve(lis)
}

// Stop gracefully shuts the server down and marks every component
// NOT_SERVING, mirroring health.Server's own Shutdown semantics.
func (l *LivenessServer) Stop() {
	l.health.Shutdown()
	l.grpcServer.GracefulStop()
}
