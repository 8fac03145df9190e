// Package main provides bootstrap_tenant_api_key, the one administrative
// CLI named by the core spec: it creates a new tenant and mints its first
// admin-tier API key, printing the raw key once. An existing tenant code is
// refused with exit code 3.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/linelot/linelot/internal/storage"
	"github.com/linelot/linelot/internal/tenant"
)

// Exit codes per spec §6: 0 success, 1 misuse, 2 DB unreachable, 3 tenant
// already exists.
const (
	exitSuccess       = 0
	exitMisuse        = 1
	exitDBUnreachable = 2
	exitTenantExists  = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("bootstrap_tenant_api_key", flag.ContinueOnError)
	fs.SetOutput(stderr)

	tenantCode := fs.String("tenant-code", "", "short unique tenant code (required)")
	label := fs.String("label", "", "label for the minted API key (required)")

	if err := fs.Parse(args); err != nil {
		return exitMisuse
	}

	if *tenantCode == "" || *label == "" {
		fmt.Fprintln(stderr, "usage: bootstrap_tenant_api_key --tenant-code CODE --label NAME")

		return exitMisuse
	}

	cfg := storage.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid storage configuration: %v\n", err)

		return exitMisuse
	}

	conn, err := storage.NewConnection(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "database unreachable: %v\n", err)

		return exitDBUnreachable
	}
	defer conn.Close()

	tenantStore, err := storage.NewTenantStore(conn)
	if err != nil {
		fmt.Fprintf(stderr, "database unreachable: %v\n", err)

		return exitDBUnreachable
	}

	ctx := context.Background()

	if _, err := tenantStore.GetTenantByCode(ctx, *tenantCode); err == nil {
		fmt.Fprintf(stderr, "tenant %q already exists\n", *tenantCode)

		return exitTenantExists
	} else if !errors.Is(err, storage.ErrTenantNotFound) {
		fmt.Fprintf(stderr, "database unreachable: %v\n", err)

		return exitDBUnreachable
	}

	t := &tenant.Tenant{Code: *tenantCode, Name: *tenantCode, Active: true}
	if err := t.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid tenant: %v\n", err)

		return exitMisuse
	}

	if err := tenantStore.CreateTenant(ctx, t); err != nil {
		fmt.Fprintf(stderr, "failed to create tenant: %v\n", err)

		return exitDBUnreachable
	}

	plaintext, err := storage.GenerateAPIKey(t.ID)
	if err != nil {
		fmt.Fprintf(stderr, "failed to generate API key: %v\n", err)

		return exitMisuse
	}

	key := &tenant.APIKey{TenantID: t.ID, Tier: tenant.TierAdmin, Label: *label}
	if err := tenantStore.CreateAPIKey(ctx, key, plaintext); err != nil {
		fmt.Fprintf(stderr, "failed to store API key: %v\n", err)

		return exitDBUnreachable
	}

	fmt.Fprintf(stdout, "tenant created: %s (%s)\n", t.Code, t.ID)
	fmt.Fprintf(stdout, "API key (shown once): %s\n", plaintext)

	return exitSuccess
}
