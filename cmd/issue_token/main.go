// Package main signs bearer tokens for operators and analysis workers.
// Signup and login only ever issue tokens without a role.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/post-analyzer/internal/api"
	"github.com/post-analyzer/internal/config"
)

func main() {
	var (
		subject = flag.String("subject", "", "Token subject (user or worker id)")
		role    = flag.String("role", "", "Role claim, e.g. admin or worker")
		ttl     = flag.Duration("ttl", 0, "Token lifetime (defaults to JWT_TTL)")
	)
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: issue_token -subject <id> [-role admin|worker] [-ttl 24h]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	authCfg := cfg.Auth
	if *ttl > 0 {
		authCfg.TokenTTL = *ttl
	}

	token, expiresAt, err := api.NewAuthenticator(authCfg).IssueToken(*subject, *role)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "subject=%s role=%q expires=%s\n", *subject, *role, expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Println(token)
}
