package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"scheduling-server/config"
	"scheduling-server/database"
	"scheduling-server/jobs"
	"scheduling-server/logger"
	"scheduling-server/middleware"
	"scheduling-server/push"
	"scheduling-server/realtime"
	"scheduling-server/routes"
	"scheduling-server/services"
	"scheduling-server/storage"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

const maxRequestBody = 10 << 20

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "scheduling-server",
	Short:   "Scheduling backend with live tenant event streams",
	Version: Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, event streams and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		migrate, _ := cmd.Flags().GetBool("migrate")
		return serve(cfg, migrate)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		db, err := database.Initialize(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)
		return database.Migrate(db)
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("scheduling-server %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")

	serveCmd.Flags().Bool("migrate", true, "run migrations before serving")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envLoaded := godotenv.Load() == nil

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, JSONOutput: cfg.Log.JSON})
	if !envLoaded {
		log := logger.WithComponent("main")
		log.Debug().Msg("No .env file found, using system environment variables")
	}
	return cfg, nil
}

func serve(cfg *config.Config, migrate bool) error {
	log := logger.WithComponent("main")

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if migrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	transport, err := newTransport(cfg, db)
	if err != nil {
		return err
	}
	router := realtime.NewRouter(transport)

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}

	var sender push.Sender
	if cfg.Push.Configured() {
		vapid, err := push.NewVAPIDSender(cfg.Push)
		if err != nil {
			return err
		}
		sender = vapid
	} else {
		log.Warn().Msg("VAPID keys not configured, push delivery disabled")
	}
	pushStore := push.NewGormStore(db)
	pushService := push.NewService(pushStore, sender)

	deps := &services.Deps{
		DB:         db,
		Publisher:  router,
		Notifier:   push.NewNotifier(pushService, pushStore),
		Photos:     storage.NewPhotoCleaner(store),
		Background: services.NewBackground(cfg.Push.Timeout * 3),
	}

	handlers := &routes.Handlers{
		Appointments: services.NewAppointmentService(deps),
		Clients:      services.NewClientService(deps),
		Workers:      services.NewWorkerService(deps),
		Teams:        services.NewTeamService(deps),
		Catalog:      services.NewCatalogService(deps),
		Reports:      services.NewReportService(deps),
		Devices:      services.NewDeviceService(deps),
		Projection:   services.NewProjection(db),
		Push:         pushService,
		Router:       router,
		Stream: realtime.StreamOptions{
			KeepaliveInterval: cfg.Events.KeepaliveInterval,
			Buffer:            cfg.Events.SubscriberBuffer,
		},
		Upgrader: realtime.NewUpgrader(cfg.Server.AllowedOrigins),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter()
	go limiter.RunCleanup(ctx, 5*time.Minute)

	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.Use(gin.Recovery())
	engine.Use(middleware.SecurityHeadersMiddleware())
	engine.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	engine.Use(middleware.AuditLogMiddleware())
	engine.Use(middleware.RateLimitMiddleware(limiter))
	engine.Use(middleware.InputValidationMiddleware(maxRequestBody))

	routes.RegisterRoutes(engine, handlers, middleware.AuthMiddleware(cfg.JWT.Secret, db))

	sweeper := jobs.NewSubscriptionSweeper(pushService, cfg.Push.SweepInterval, cfg.Push.SubscriptionRetention)
	sweeper.Start()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("events_backend", cfg.Events.Backend).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("HTTP server failed")
	}

	// Streams hold their requests open until the router closes them.
	if err := router.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close event router")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}

	sweeper.Stop()
	deps.Background.Wait()

	log.Info().Msg("Shutdown complete")
	return serveErr
}

// newTransport opens the pub/sub backend the router fans out from.
func newTransport(cfg *config.Config, db *gorm.DB) (realtime.Transport, error) {
	switch cfg.Events.Backend {
	case config.EventsBackendPostgres:
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
		}
		return realtime.NewPostgresTransport(cfg.Database.URL, sqlDB,
			cfg.Events.MinReconnectInterval, cfg.Events.MaxReconnectInterval), nil
	case config.EventsBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return realtime.NewRedisTransport(context.Background(), client), nil
	case config.EventsBackendMemory:
		return realtime.NewMemoryTransport(cfg.Events.SubscriberBuffer), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}
