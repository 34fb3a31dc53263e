package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/guardhq/workforce-management/internal"
	"github.com/guardhq/workforce-management/internal/auth"
	authPostgres "github.com/guardhq/workforce-management/internal/auth/postgres"
	"github.com/guardhq/workforce-management/internal/authz"
	authzPostgres "github.com/guardhq/workforce-management/internal/authz/postgres"
	"github.com/guardhq/workforce-management/internal/property"
	propertyPostgres "github.com/guardhq/workforce-management/internal/property/postgres"
	"github.com/guardhq/workforce-management/internal/transport/rest"
	"github.com/guardhq/workforce-management/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config      *internal.Config
	DB          *sqlx.DB
	GormDB      *gorm.DB
	Router      *chi.Mux
	AuthHandler *auth.Handler
	PermHandler *authz.Handler
	Enforcer    *authz.Enforcer
	Logger      *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB, deps.AuthHandler, deps.PermHandler, deps.Enforcer, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Logging.Format)
	lg := logger.L()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGormDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	// auth
	authRepo := authPostgres.NewRepository(gormDB)
	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authRepo, tokenGen, config.Security.BCryptCost)
	authHandler := auth.NewHandler(authService)

	// property resolver backs both the decision engine and grant validation
	resolver := property.NewResolver(propertyPostgres.NewRepository(gormDB), lg)

	// authorization engine and admin service
	stores := authzPostgres.NewStores(gormDB)
	manager := authz.NewManager(stores.Roles, stores.Perms, stores.Access, resolver, lg)
	enforcer := authz.NewEnforcer(manager, lg)
	permService := authz.NewService(stores, authzPostgres.NewTxRunner(gormDB), authRepo, resolver, lg)
	permHandler := authz.NewHandler(permService)

	return &Dependencies{
		Config:      config,
		DB:          db,
		GormDB:      gormDB,
		Router:      chi.NewRouter(),
		AuthHandler: authHandler,
		PermHandler: permHandler,
		Enforcer:    enforcer,
		Logger:      lg,
	}, nil
}

// initDB opens the raw connection pool used for health checks.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGormDB opens the ORM connection used by the repositories.
func initGormDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.Source), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open orm connection: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return gormDB, nil
}
