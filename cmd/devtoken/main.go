// Command devtoken prints a bearer token for local development, signed with
// the configured JWT secret the way the identity provider signs them.
//
//	go run ./cmd/devtoken -user dev@example.com -tenant agency-1
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"agency-billing-backend/config"
	"agency-billing-backend/middlewares"
)

func main() {
	user := flag.String("user", "dev", "token subject (user id)")
	tenant := flag.String("tenant", "dev-agency", "tenant id")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	token, err := middlewares.GenerateJWT(cfg.JWTSecret, *user, *tenant, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
