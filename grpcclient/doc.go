// Package grpcclient connects to a running monitor's gRPC health server and
// queries it.
//
// TLS 1.2+ with system roots is the default, to avoid accidental plaintext
// connections. WithTLS supplies a custom root CA and optional client
// certificate; WithPlaintext is for a loopback-only server.
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("127.0.0.1:8081").
//	    WithPlaintext().
//	    Build()
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	ok, err := grpcclient.Serving(ctx, conn, "myidp")
package grpcclient
