// Command hashgen produces the bcrypt hash of an administrative secret,
// suitable for the ADMIN_SECRET_HASH environment variable.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		secret string
		cost   int
	)

	flag.StringVar(&secret, "secret", "", "Administrative secret to hash")
	flag.IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost factor")
	flag.Parse()

	if secret == "" {
		return fmt.Errorf("--secret is required")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("--cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return fmt.Errorf("generate hash: %w", err)
	}

	fmt.Printf("ADMIN_SECRET_HASH=%s\n", hash)
	return nil
}
