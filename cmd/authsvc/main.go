// Package main is the entrypoint for the auth service: registration,
// login, session, fingerprint, password-reset, TOTP, and SSO handoff.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/authplatform/auth-service/internal/config"
	"github.com/authplatform/auth-service/internal/server"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:           "authsvc",
		PortFromConfig: func(cfg *config.Config) int { return cfg.HTTP.Port },
		Setup:          setup,
	}, server.Listeners{})
}
