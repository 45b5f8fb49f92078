package main

import (
	"os"
	"path/filepath"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/logger"
	"github.com/woozymasta/quakemap/internal/page"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ConfigFile string `short:"c" long:"config" env:"CONFIG_FILE" description:"Path to configuration file (defaults are used when empty)"`
	Output     string `short:"o" long:"out"    description:"Output HTML file" default:"assets/index.html"`
	Plain      bool   `long:"no-minify"        description:"Embed sources as written"`

	Logger logger.Logger `group:"Logger options"`
}

func main() {
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

	finalHTML, err := page.Build(cfg, !opts.Plain)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build page")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create output directory")
	}

	if err := os.WriteFile(opts.Output, finalHTML, 0644); err != nil {
		log.Fatal().Err(err).Str("path", opts.Output).Msg("Failed to write page")
	}

	log.Info().Str("path", opts.Output).Int("bytes", len(finalHTML)).Msg("Minify done")
}
