package credmoncmd

import (
	"context"
	"fmt"
	"time"

	"github.com/AmmannChristian/go-credmon/grpcclient"
	"google.golang.org/grpc"
)

// CheckCommand queries a running monitor's health service.
type CheckCommand struct {
	Addr     string        `long:"addr" default:"127.0.0.1:8081" description:"Health server address."`
	Provider string        `long:"provider" description:"Provider to check. Empty checks the whole monitor."`
	Timeout  time.Duration `long:"timeout" default:"5s" description:"How long to wait for an answer."`

	TLS        bool   `long:"tls" description:"Connect over TLS."`
	CAFile     string `long:"tls-ca" description:"CA certificate to verify the health server with."`
	ServerName string `long:"tls-server-name" description:"Server name to verify."`

	dialOpts []grpc.DialOption
}

// Execute implements flags.Commander.
func (cmd *CheckCommand) Execute(args []string) error {
	return cmd.Check(context.Background())
}

// Check returns an error unless the checked service is SERVING.
func (cmd *CheckCommand) Check(ctx context.Context) error {
	builder := grpcclient.NewBuilder().
		WithAddress(cmd.Addr).
		WithDialOptions(cmd.dialOpts...)
	if cmd.TLS {
		builder = builder.WithTLS(cmd.CAFile, "", "", cmd.ServerName)
	} else {
		builder = builder.WithPlaintext()
	}

	conn, err := builder.Build()
	if err != nil {
		return err
	}
	defer conn.Close()

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := grpcclient.Serving(ctx, conn, cmd.Provider)
	if err != nil {
		return err
	}
	if !ok {
		name := cmd.Provider
		if name == "" {
			name = "monitor"
		}
		return fmt.Errorf("credmoncmd: %s is not serving", name)
	}

	return nil
}
