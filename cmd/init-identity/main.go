package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/viralis/accountd/pkg/config"
	"github.com/viralis/accountd/pkg/identity"
)

type Config struct {
	DbConfig          config.DatabaseConfig
	PersistenceConfig config.PersistenceConfig
}

func main() {
	// Parse command line arguments
	email := flag.String("email", "", "Email for the new identity (required)")
	name := flag.String("name", "", "Display name for the new identity")
	password := flag.String("password", "", "Password for the new identity (required)")
	provider := flag.String("provider", "", "Optional social provider to link (google, discord)")
	providerAccount := flag.String("provider-account", "", "Account id at the social provider")
	flag.Parse()

	// Validate required arguments
	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		flag.Usage()
		os.Exit(1)
	}
	if *provider != "" && *providerAccount == "" {
		fmt.Println("Error: provider-account is required when provider is set")
		flag.Usage()
		os.Exit(1)
	}

	// Create a logger with source enabled
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	// Load configuration from environment variables
	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	repoConfig := identity.RepositoryConfig{DataDir: filepath.Join(cfg.PersistenceConfig.DataDir, "identities")}
	if cfg.PersistenceConfig.Type != "file" {
		pool, err := dbutils.NewDbPool(context.Background(), cfg.DbConfig.ToDbConfig())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.DbConfig.Database, "host", cfg.DbConfig.Host, "port", cfg.DbConfig.Port, "user", cfg.DbConfig.User)
			os.Exit(1)
		}
		repoConfig.Pool = pool
	}

	repo, err := identity.NewIdentityRepository(cfg.PersistenceConfig.Type, repoConfig)
	if err != nil {
		slog.Error("Failed creating identity repository", "type", cfg.PersistenceConfig.Type, "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	taken, err := repo.EmailTaken(ctx, *email, uuid.Nil)
	if err != nil {
		slog.Error("Failed checking email", "email", *email, "err", err)
		os.Exit(1)
	}
	if taken {
		slog.Error("Email already registered", "email", *email)
		os.Exit(1)
	}

	hash, err := identity.HashPassword(*password)
	if err != nil {
		slog.Error("Failed hashing password", "err", err)
		os.Exit(1)
	}

	displayName := *name
	if displayName == "" {
		displayName, _, _ = strings.Cut(*email, "@")
	}

	ident := &identity.Identity{
		ID:            uuid.New(),
		Name:          displayName,
		Email:         *email,
		EmailVerified: true,
		PasswordHash:  hash,
	}
	if err := repo.Create(ctx, ident); err != nil {
		slog.Error("Failed creating identity", "email", *email, "err", err)
		os.Exit(1)
	}

	if *provider != "" {
		account := identity.LinkedAccount{ProviderID: *provider, AccountID: *providerAccount}
		if err := repo.AddLinkedAccount(ctx, ident.ID, account); err != nil {
			slog.Error("Failed linking account", "provider", *provider, "err", err)
			os.Exit(1)
		}
	}

	slog.Info("Identity created", "id", ident.ID, "email", ident.Email, "name", ident.Name)
}
