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

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/logger"
	"github.com/woozymasta/quakemap/internal/observability"
	"github.com/woozymasta/quakemap/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string        `short:"c" long:"config"       env:"CONFIG_FILE"         description:"Path to configuration file (defaults are used when empty)"`
	Addr        string        `short:"a" long:"addr"         env:"LISTEN_ADDRESS"      description:"Address to listen on"                 default:"0.0.0.0"`
	Port        int           `short:"p" long:"port"         env:"LISTEN_PORT"         description:"Port to listen on"                    default:"8080"`
	FeedURL     string        `short:"u" long:"feed-url"     env:"FEED_URL"            description:"Earthquake GeoJSON feed URL"`
	FeedFile    string        `short:"f" long:"feed-file"    env:"FEED_FILE"           description:"Local feed snapshot, used instead of the URL"`
	AccessToken string        `short:"t" long:"access-token" env:"MAPBOX_ACCESS_TOKEN" description:"Map renderer access token"`
	Shutdown    time.Duration `long:"shutdown-timeout"       env:"SHUTDOWN_TIMEOUT"    description:"Graceful shutdown timeout"            default:"10s"`
}

func main() {
	envErr := godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	if envErr != nil {
		log.Debug().Msg("No .env file loaded, using process environment")
	}

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.FeedURL != "" {
		cfg.Feed.URL = opts.FeedURL
	}
	if opts.FeedFile != "" {
		cfg.Feed.File = opts.FeedFile
	}
	if opts.AccessToken != "" {
		cfg.Map.AccessToken = opts.AccessToken
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if cfg.Map.AccessToken == "" {
		log.Warn().Msg("No map access token configured, the page will not render map tiles")
	}

	metrics := observability.NewMetrics()
	store := feed.NewStore()

	srvCtx, err := server.NewServerContext(cfg, store, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the feed once in the background
	loader := feed.NewLoader(&http.Client{Timeout: cfg.Feed.Timeout}, cfg.Feed, clockwork.NewRealClock(), metrics)
	go func() {
		if err := store.Fill(ctx, loader); err != nil {
			log.Error().Err(err).Msg("Earthquake feed unavailable")
		}
	}()

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", listenAddr).
			Str("feed", loader.Source()).
			Msg("Web server started")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.Shutdown)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
