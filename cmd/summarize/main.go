package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/quake"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input  string `short:"i" long:"in"     description:"Input GeoJSON feed. Reads from stdin if empty"`
	Output string `short:"o" long:"out"    description:"Output file path. Writes to stdout if empty"`
	Format string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
	BBox   string `short:"b" long:"bbox"   description:"Viewport as west,south,east,north (whole world if empty)"`
	Label  string `short:"l" long:"label"  description:"Also count points shown under this bar filter" choice:"4" choice:"5" choice:"6"`
}

type Summary struct {
	Title   string         `json:"title,omitempty" yaml:"title,omitempty"`
	BBox    string         `json:"bbox" yaml:"bbox"`
	Counts  map[string]int `json:"counts" yaml:"counts"`
	Total   int            `json:"total" yaml:"total"`
	Label   string         `json:"label,omitempty" yaml:"label,omitempty"`
	Visible *int           `json:"visible,omitempty" yaml:"visible,omitempty"`
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

	bounds := geo.World
	if opts.BBox != "" {
		var err error
		if bounds, err = geo.ParseBBox(opts.BBox); err != nil {
			fmt.Fprintf(os.Stderr, "Error: --bbox: %v\n", err)
			os.Exit(1)
		}
	}

	// Read Input
	var inputData []byte
	var err error

	if opts.Input != "" {
		inputData, err = os.ReadFile(opts.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
			os.Exit(1)
		}
	} else {
		inputData, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
	}

	fc, err := feed.Parse(inputData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing feed: %v\n", err)
		os.Exit(1)
	}

	counts := quake.Aggregate(fc, bounds)
	summary := Summary{
		BBox:   bounds.String(),
		Counts: counts.Map(),
		Total:  counts.Total(),
	}
	if fc.Metadata != nil {
		summary.Title = fc.Metadata.Title
	}

	if opts.Label != "" {
		f, err := quake.FilterForLabel(opts.Label)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: --label: %v\n", err)
			os.Exit(1)
		}
		visible := quake.CountVisible(fc, bounds, f)
		summary.Label = opts.Label
		summary.Visible = &visible
	}

	// marshal
	var outputData []byte
	if opts.Format == "yaml" {
		outputData, err = yaml.Marshal(summary)
	} else {
		outputData, err = json.MarshalIndent(summary, "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Summarized %d features into %s (format: %s)\n", len(fc.Features), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}
