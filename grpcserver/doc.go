// Package grpcserver builds the gRPC server that publishes the monitor's
// health service.
//
// TLS is optional. When configured, the server certificate is reloaded from
// disk on every handshake so it can be rotated in place.
//
//	reporter := health.NewReporter()
//	server, err := grpcserver.NewBuilder().
//	    WithAddress("127.0.0.1:8081").
//	    WithService(reporter).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	return server.ListenAndServe(ctx)
package grpcserver
