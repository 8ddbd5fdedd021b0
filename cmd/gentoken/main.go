// Package main provides a simple tool to generate JWT tokens for the match engine.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gigmesh/match-engine/internal/auth"
)

func main() {
	subject := flag.String("subject", "", "Subject for the token (freelancer ID or service name)")
	scope := flag.String("scope", auth.ScopeFreelancer, "Token scope: freelancer or sourcing")
	secret := flag.String("secret", "", "JWT secret (or set JWT_SECRET env var)")
	expiry := flag.Duration("expiry", 24*365*time.Hour, "Token expiry duration (default: 1 year)")
	flag.Parse()

	jwtSecret := *secret
	if jwtSecret == "" {
		jwtSecret = os.Getenv("JWT_SECRET")
	}
	if jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: JWT secret required. Use -secret flag or set JWT_SECRET env var")
		fmt.Fprintln(os.Stderr, "Example: go run ./cmd/gentoken -subject fr-123 -secret 'your-secret-at-least-32-chars-long'")
		os.Exit(1)
	}
	if len(jwtSecret) < 32 {
		fmt.Fprintln(os.Stderr, "Error: JWT secret must be at least 32 characters")
		os.Exit(1)
	}
	if *subject == "" {
		fmt.Fprintln(os.Stderr, "Error: -subject is required")
		os.Exit(1)
	}
	if *scope != auth.ScopeFreelancer && *scope != auth.ScopeSourcing {
		fmt.Fprintf(os.Stderr, "Error: unknown scope %q\n", *scope)
		os.Exit(1)
	}

	cfg := &auth.Config{
		JWTSecret:   []byte(jwtSecret),
		TokenExpiry: *expiry,
	}

	svc := auth.NewService(cfg, nil)
	token, err := svc.GenerateToken(*subject, *scope)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
