// Package main seeds an administrative user so a fresh deployment can
// log in and configure identifier sources.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/thenano/openmrs-module-idgen/internal/config"
	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/domain/auth"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	username := flag.String("username", "admin", "username for the seeded user")
	password := flag.String("password", "", "password for the seeded user (required)")
	admin := flag.Bool("admin", true, "grant the admin flag")
	flag.Parse()

	if *password == "" {
		fmt.Println("-password is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL))
	if err != nil {
		fmt.Printf("failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fmt.Printf("failed to hash password: %v\n", err)
		os.Exit(1)
	}

	user := auth.NewUser(*username, hash)
	user.IsAdmin = *admin
	if !*admin {
		user.Privileges = []string{
			idgen.PrivManageSources,
			idgen.PrivGenerateBatch,
			idgen.PrivUploadBatch,
			idgen.PrivManageAutoGen,
			idgen.PrivViewLogEntries,
		}
	}

	users := postgres.NewUserRepo(postgres.NewTxManager(pool))
	if err := users.Create(ctx, user); err != nil {
		if apperror.IsConflict(err) {
			fmt.Printf("user %q already exists\n", *username)
			os.Exit(1)
		}
		fmt.Printf("failed to create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created user %q (id %s)\n", *username, user.ID)
}
