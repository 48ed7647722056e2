package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/viralis/accountd/pkg/client"
	"github.com/viralis/accountd/pkg/config"
	"github.com/viralis/accountd/pkg/emailchange"
	emailchangeapi "github.com/viralis/accountd/pkg/emailchange/api"
	"github.com/viralis/accountd/pkg/identity"
	"github.com/viralis/accountd/pkg/notice"
	"github.com/viralis/accountd/pkg/profile"
	profileapi "github.com/viralis/accountd/pkg/profile/api"
	"github.com/viralis/accountd/pkg/ratelimit"
	"github.com/viralis/accountd/pkg/tokenstore"
)

type JwtConfig struct {
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

type PasswordConfig struct {
	MinLength int `env:"PASSWORD_MIN_LENGTH" env-default:"8"`
}

type Config struct {
	BaseUrl           string `env:"BASE_URL" env-default:"http://localhost:4000"`
	FrontendUrl       string `env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	DbConfig          config.DatabaseConfig
	AppConfig         app.AppConfig
	JwtConfig         JwtConfig
	EmailConfig       config.EmailConfig
	TokenConfig       config.TokenConfig
	PasswordConfig    PasswordConfig
	PersistenceConfig config.PersistenceConfig
	RateLimitConfig   config.RateLimitConfig
}

// loadEnvFile loads environment variables from .env file if it exists
// Only sets variables that are not already set in the environment
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "error", err)
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")

	// Also check current working directory
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get current working directory", "error", err)
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Info("No .env file found", "path", envFile)
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)

	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
	}
}

func main() {

	// Create a logger with source enabled
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	// Load .env file if it exists (before reading environment variables)
	loadEnvFile()

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.DefaultApp()

	app.RegisterHealthzRoutes(server.R)

	rateLimitMiddleware := ratelimit.NewMiddleware(cfg.RateLimitConfig.ToMiddlewareConfig())
	server.R.Use(rateLimitMiddleware.PerIPHandler)

	repoConfig := identity.RepositoryConfig{DataDir: filepath.Join(cfg.PersistenceConfig.DataDir, "identities")}
	tokenRepoConfig := tokenstore.RepositoryConfig{DataDir: filepath.Join(cfg.PersistenceConfig.DataDir, "tokens")}

	if cfg.PersistenceConfig.Type != "file" {
		pool, err := dbutils.NewDbPool(context.Background(), cfg.DbConfig.ToDbConfig())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.DbConfig.Database, "host", cfg.DbConfig.Host, "port", cfg.DbConfig.Port, "user", cfg.DbConfig.User)
			os.Exit(-1)
		}
		repoConfig.Pool = pool
		tokenRepoConfig.Pool = pool
	}

	identityRepository, err := identity.NewIdentityRepository(cfg.PersistenceConfig.Type, repoConfig)
	if err != nil {
		slog.Error("Failed creating identity repository", "type", cfg.PersistenceConfig.Type, "err", err)
		os.Exit(-1)
	}

	tokenRepository, err := tokenstore.NewTokenRepository(cfg.PersistenceConfig.Type, tokenRepoConfig)
	if err != nil {
		slog.Error("Failed creating token repository", "type", cfg.PersistenceConfig.Type, "err", err)
		os.Exit(-1)
	}

	// Initialize NotificationManager with the account-change email templates
	notificationManager, err := notice.NewNotificationManager(cfg.FrontendUrl, cfg.EmailConfig.ToSMTPConfig())
	if err != nil {
		slog.Error("Failed initialize notification manager", "err", err)
		os.Exit(-1)
	}

	identityService := identity.NewService(
		identityRepository,
		identity.WithMinPasswordLength(cfg.PasswordConfig.MinLength),
	)

	requestTokenExpiry, err := cfg.TokenConfig.ParseRequestTokenExpiry()
	if err != nil {
		slog.Error("Failed to parse token expiry", "err", err)
		os.Exit(-1)
	}
	resendTokenExpiry, err := cfg.TokenConfig.ParseResendTokenExpiry()
	if err != nil {
		slog.Error("Failed to parse resend token expiry", "err", err)
		os.Exit(-1)
	}
	slog.Info("Email change token lifetimes", "request", requestTokenExpiry, "resend", resendTokenExpiry)

	emailChangeService := emailchange.NewEmailChangeService(
		tokenRepository,
		identityRepository,
		identityService,
		notificationManager,
		cfg.FrontendUrl,
		emailchange.WithRequestTokenExpiry(requestTokenExpiry),
		emailchange.WithResendTokenExpiry(resendTokenExpiry),
	)

	profileService := profile.NewProfileService(
		identityService,
		identityRepository,
		notificationManager,
		cfg.FrontendUrl,
	)

	emailChangeHandler := emailchangeapi.NewHandler(emailChangeService)
	profileHandler := profileapi.NewHandler(profileService)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.JwtSecret), nil)

	// Verification links are followed from an email client, before any
	// session exists, so verify stays outside the authenticated group.
	server.R.Post("/email/verify", emailChangeHandler.VerifyEmailChange)

	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		r.Use(rateLimitMiddleware.EndpointHandler)

		r.Route("/email", emailChangeHandler.Routes)
		r.Route("/profile", profileHandler.Routes)
	})

	server.Run()
}
