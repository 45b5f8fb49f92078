package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string        `short:"c" long:"config"   env:"CONFIG_FILE" description:"Path to configuration file (defaults are used when empty)"`
	FeedURL    string        `short:"u" long:"feed-url" env:"FEED_URL"    description:"Earthquake GeoJSON feed URL"`
	Output     string        `short:"o" long:"out"      env:"FEED_FILE"   description:"Snapshot file to write"           default:"data/earthquakes.geojson"`
	Timeout    time.Duration `short:"T" long:"timeout"  env:"FEED_TIMEOUT" description:"Request timeout"                default:"30s"`
	Force      bool          `short:"f" long:"force"    description:"Force overwrite of existing files"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	src := cfg.Feed
	if opts.FeedURL != "" {
		src.URL = opts.FeedURL
	}
	// always download, the snapshot is what we are producing
	src.File = ""

	if _, err := os.Stat(opts.Output); err == nil && !opts.Force {
		log.Info().
			Str("path", opts.Output).
			Msg("Snapshot already exists, skipping (use --force to overwrite)")
		return
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto: make(map[string]func(string, *tls.Conn) http.RoundTripper),
		},
		Timeout: opts.Timeout,
	}

	log.Info().
		Str("url", src.URL).
		Str("out", opts.Output).
		Msg("Starting loader")

	loader := feed.NewLoader(client, src, clockwork.NewRealClock(), nil)
	ds, err := loader.Load(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load feed")
	}

	if err := feed.Save(opts.Output, ds); err != nil {
		log.Fatal().Err(err).Str("path", opts.Output).Msg("Failed to write snapshot")
	}

	log.Info().
		Str("path", opts.Output).
		Int("features", len(ds.Collection.Features)).
		Msg("Loader finished successfully")
}
