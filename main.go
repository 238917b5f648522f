package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/adswadi/agency-site-backend/api"
	"github.com/adswadi/agency-site-backend/config"
	"github.com/adswadi/agency-site-backend/database"
	"github.com/adswadi/agency-site-backend/ratelimit"
	"github.com/adswadi/agency-site-backend/services"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}

	c := config.New()
	setupLogging(c)
	log.Info().Msg("Initializing app...")

	ctx := context.Background()

	currentDB, err := openDatabase(c)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}

	credentials := services.NewCredentialStore(currentDB.UserRepo(), config.GetInt(c, "BCRYPT_COST", bcrypt.DefaultCost))
	adminUsername := config.GetString(c, "ADMIN_USERNAME", services.DefaultAdminUsername)
	created, err := credentials.EnsureDefaultAdmin(ctx,
		adminUsername,
		config.GetString(c, "ADMIN_EMAIL", services.DefaultAdminEmail),
		config.GetString(c, "ADMIN_PASSWORD", services.DefaultAdminPassword),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating default admin user")
	}
	if created {
		log.Warn().Str("username", adminUsername).Msg("Created default admin user, change its password")
	}

	if config.GetBool(c, "SEED_SAMPLE_POSTS", true) {
		if _, err := services.SeedSamplePosts(ctx, currentDB, adminUsername); err != nil {
			log.Fatal().Err(err).Msg("Error seeding sample posts")
		}
	}

	secret, err := services.ResolveJWTSecret(ctx, c, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Error resolving JWT secret")
	}

	assets, uploadDir, err := openAssetStore(ctx, c)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing asset store")
	}

	limiter, err := newLoginLimiter(ctx, c)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing login rate limiter")
	}

	errChannel := newShutdownChannel()

	server, err := api.NewServer(c, api.Dependencies{
		Database:     currentDB,
		Credentials:  credentials,
		Tokens:       services.NewTokenService(secret),
		Posts:        services.NewPostService(currentDB.BlogPostRepo(), assets),
		LoginLimiter: limiter,
		UploadDir:    uploadDir,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing server")
	}

	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	log.Info().Msgf("Closing server: %v", fatalErr)

	server.ShutdownGracefully(30 * time.Second)
}

// setupLogging uses a console writer outside production and JSON inside it.
func setupLogging(c map[string]string) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(strings.ToLower(config.GetString(c, "LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !config.IsProduction(c) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
}

func openDatabase(c map[string]string) (database.Database, error) {
	dbType := database.ResolveType(c)
	log.Info().Str("dbType", dbType).Msg("Connecting to database")

	if dbType == database.TypeMemory {
		log.Warn().Msg("Using in-memory storage, nothing survives a restart")
		return database.NewMemory(), nil
	}

	db, err := database.Open(c)
	if err != nil {
		return database.Database{}, err
	}
	if err := database.Migrate(db); err != nil {
		return database.Database{}, err
	}
	return database.New(db), nil
}

// openAssetStore returns the configured image store and, for disk storage,
// the directory to serve under /uploads/.
func openAssetStore(ctx context.Context, c map[string]string) (services.AssetStore, string, error) {
	switch strings.ToLower(config.GetString(c, "ASSET_STORE", "disk")) {
	case "s3":
		store, err := services.NewS3AssetStore(ctx,
			config.GetString(c, "S3_BUCKET", ""),
			config.GetString(c, "S3_ENDPOINT", ""),
			config.GetString(c, "ASSET_PUBLIC_BASE_URL", ""),
		)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	case "disk":
		store, err := services.NewDiskAssetStore(config.GetString(c, "UPLOAD_DIR", "uploads"))
		if err != nil {
			return nil, "", err
		}
		return store, store.Dir(), nil
	default:
		return nil, "", fmt.Errorf("unsupported ASSET_STORE %q", c["ASSET_STORE"])
	}
}

// newLoginLimiter shares counters through Redis when REDIS_ADDR is set and
// keeps them in process otherwise.
func newLoginLimiter(ctx context.Context, c map[string]string) (ratelimit.Limiter, error) {
	limit := config.GetInt(c, "LOGIN_RATE_LIMIT", 5)
	window := config.GetDuration(c, "LOGIN_RATE_WINDOW", 15*time.Minute)

	addr := config.GetString(c, "REDIS_ADDR", "")
	if addr == "" {
		return ratelimit.NewMemoryFixedWindowLimiter(limit, window)
	}

	limiter, err := ratelimit.NewRedisFixedWindowLimiter(addr, config.GetString(c, "REDIS_PASSWORD", ""), "", limit, window)
	if err != nil {
		return nil, err
	}
	if err := limiter.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("Redis unreachable, login attempts will be rejected until it recovers")
	}
	return limiter, nil
}

// newShutdownChannel has room for the server and the signal listener so
// whichever sends second does not block after main stops reading.
func newShutdownChannel() chan error {
	return make(chan error, 2)
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
