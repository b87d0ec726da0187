// Package httpserver builds the HTTP server that exposes the monitor's
// Prometheus metrics.
//
//	server, err := httpserver.NewBuilder().
//	    WithAddress("127.0.0.1:9090").
//	    WithHandler("/metrics", metrics.Handler(registry)).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	return server.ListenAndServe(ctx)
//
// The server stops gracefully when its context is cancelled.
package httpserver
