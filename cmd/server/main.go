package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/AnshRaj112/globalchat/internal/backend"
	"github.com/AnshRaj112/globalchat/internal/config"
	"github.com/AnshRaj112/globalchat/internal/database"
	"github.com/AnshRaj112/globalchat/internal/handlers"
	"github.com/AnshRaj112/globalchat/internal/middleware"
	"github.com/AnshRaj112/globalchat/internal/routes"
	"github.com/AnshRaj112/globalchat/internal/services"
	"github.com/AnshRaj112/globalchat/pkg/clientip"
)

var rootCmd = &cobra.Command{
	Use:   "globalchat",
	Short: "Single-room chat server",
	RunE:  runServer,
}

var (
	flagPort string
	flagEnv  string
	flagBus  string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagPort, "port", "", "listen port (overrides PORT)")
	flags.StringVar(&flagEnv, "env", "", "environment name (overrides ENV)")
	flags.StringVar(&flagBus, "bus", "", "change bus: redis, nats or local (overrides CHANGE_BUS)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute globalchat command")
	}
}

func setupLogging(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return log.Logger
}

// redactedURI hides the password of a connection string.
func redactedURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}
	cfg := config.Load()
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if flagEnv != "" {
		cfg.Environment = flagEnv
	}
	if flagBus != "" {
		cfg.ChangeBus = flagBus
	}
	logger := setupLogging(cfg)
	clientip.TrustProxyHeaders = cfg.TrustProxy

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("connecting to PostgreSQL")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		return err
	}
	defer database.DisconnectPostgres()

	log.Info().Msg("connecting to Redis")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		return err
	}
	defer database.DisconnectRedis()

	log.Info().Str("uri", redactedURI(cfg.MongoURI)).Msg("connecting to MongoDB")
	if err := database.Connect(cfg.MongoURI, cfg.MongoDatabase); err != nil {
		log.Error().Msg("check that the cluster is running and this host is allowed to reach it")
		return err
	}
	defer database.Disconnect()

	messages := services.NewMessageStore(database.DB, logger)
	if err := messages.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to ensure MongoDB message indexes")
	}

	bus, err := openChangeBus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	objects, objectHandler, closeObjects, err := openObjectStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeObjects()

	auth := services.NewAuthService(
		services.NewIdentityStore(database.PostgresDB),
		services.NewSessionStore(database.RedisClient, cfg.SessionTTL),
		logger,
	)
	feed := services.NewMessageFeed(messages, services.NewRecentCache(database.RedisClient, logger), bus, logger)

	chatHandler := handlers.ChatHandler{
		Services:       backend.Services{Auth: auth, Feed: feed, Objects: objects},
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger.With().Str("component", "chat").Logger(),
	}
	page := &handlers.PageHandler{Logger: logger}
	if cfg.ChallengeEnabled() {
		chatHandler.Recaptcha = services.NewRecaptchaVerifier(cfg.RecaptchaSecret, cfg.RecaptchaSiteKey)
		page.SiteKey = cfg.RecaptchaSiteKey
		log.Info().Msg("sign-up challenge enabled")
	}
	if cfg.FederatedEnabled() {
		google, err := services.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			return err
		}
		chatHandler.Google = google
		page.GoogleClientID = cfg.GoogleClientID
		log.Info().Msg("Google sign-in enabled")
	}
	chat := handlers.NewChatHandler(chatHandler)
	defer chat.AuthLimiter.Close()

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit
	// Non-production: Redis-based rate limit on the socket and API only
	var apiLimit func(http.Handler) http.Handler
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost()) {
			r.Use(mw)
		}
		log.Info().Msg("production security enabled")
	} else {
		apiLimit = middleware.RedisRateLimit(database.RedisClient, middleware.RedisRateLimitMax)
	}

	routes.SetupRoutes(r, routes.Handlers{
		Page:    page,
		Chat:    chat,
		History: &handlers.HistoryHandler{Tokens: auth, Feed: feed, Logger: logger},
		Health: &handlers.HealthHandler{Started: time.Now(), Checks: map[string]handlers.Pinger{
			"postgres": database.PostgresDB.PingContext,
			"redis":    func(ctx context.Context) error { return database.RedisClient.Ping(ctx).Err() },
			"mongo":    func(ctx context.Context) error { return database.Client.Ping(ctx, nil) },
		}},
		Objects:  objectHandler,
		APILimit: apiLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("http shutdown error")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Str("bus", cfg.ChangeBus).Msg("globalchat running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func openChangeBus(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (services.ChangeBus, error) {
	switch cfg.ChangeBus {
	case "local":
		log.Warn().Msg("local change bus: changes are not shared between server instances")
		return services.NewLocalBus(), nil
	case "nats":
		if err := database.ConnectNats(cfg.NatsURL); err != nil {
			return nil, err
		}
		bus := services.NewNatsBus(database.NatsConn, logger)
		if err := bus.Start(ctx); err != nil {
			database.DisconnectNats()
			return nil, err
		}
		return natsBusCloser{bus}, nil
	default:
		bus := services.NewRedisBus(database.RedisClient, logger)
		if err := bus.Start(ctx); err != nil {
			return nil, err
		}
		return bus, nil
	}
}

// natsBusCloser also drains the NATS connection on Close.
type natsBusCloser struct {
	*services.NatsBus
}

func (b natsBusCloser) Close() error {
	err := b.NatsBus.Close()
	database.DisconnectNats()
	return err
}

func openObjectStore(cfg *config.Config, logger zerolog.Logger) (services.ObjectStore, http.Handler, func(), error) {
	if cfg.CloudinaryEnabled() {
		store, err := services.NewCloudinaryStore(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info().Str("folder", cfg.CloudinaryFolder).Msg("uploads go to Cloudinary")
		return store, nil, func() {}, nil
	}
	store, err := services.OpenPebbleStore(cfg.BlobDir, cfg.PublicURL, cfg.MaxUploadBytes)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info().Str("dir", cfg.BlobDir).Msg("uploads kept in the embedded object store")
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("close object store")
		}
	}
	return store, &handlers.ObjectHandler{Source: store, Logger: logger}, closeStore, nil
}
