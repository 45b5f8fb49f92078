// Package feed fetches the earthquake feature collection and keeps the
// single in-memory copy the rest of the service reads from.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/observability"
)

// maxFeedSize caps the response body; the weekly M4.5+ feed is well under 1 MiB.
const maxFeedSize = 64 << 20

// ErrNoSource is returned when neither a URL nor a file is configured.
var ErrNoSource = errors.New("no feed source configured")

// Dataset is a parsed feed together with the bytes it was parsed from.
type Dataset struct {
	FetchedAt  time.Time
	Collection *geo.FeatureCollection
	Source     string
	Raw        []byte
}

// ETag identifies the dataset for conditional requests.
func (d *Dataset) ETag() string {
	buf := make([]byte, 0, 40)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, int64(len(d.Raw)), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, d.FetchedAt.UnixNano(), 16)
	buf = append(buf, '"')
	return string(buf)
}

// Loader reads the feed once from a local snapshot or over HTTP.
type Loader struct {
	client  *http.Client
	clock   clockwork.Clock
	metrics *observability.Metrics
	url     string
	file    string
}

// NewLoader creates a loader for the configured feed source.
func NewLoader(client *http.Client, src config.Feed, clock clockwork.Clock, metrics *observability.Metrics) *Loader {
	if client == nil {
		client = &http.Client{Timeout: src.Timeout}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Loader{
		client:  client,
		clock:   clock,
		metrics: metrics,
		url:     src.URL,
		file:    src.File,
	}
}

// Source names where Load will read from.
func (l *Loader) Source() string {
	if l.file != "" {
		return l.file
	}
	return l.url
}

// Load fetches and parses the feed. There is no retry.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := l.clock.Now()

	ds, err := l.load(ctx)
	if l.metrics != nil {
		l.metrics.FeedFetchDuration.Observe(l.clock.Since(start).Seconds())
	}

	if err != nil {
		if l.metrics != nil {
			l.metrics.FeedFetches.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if l.metrics != nil {
		l.metrics.FeedFetches.WithLabelValues("success").Inc()
		l.metrics.FeedFeatures.Set(float64(len(ds.Collection.Features)))
	}

	log.Info().
		Str("source", ds.Source).
		Int("features", len(ds.Collection.Features)).
		Int("bytes", len(ds.Raw)).
		Msg("Feed loaded")

	return ds, nil
}

func (l *Loader) load(ctx context.Context) (*Dataset, error) {
	var (
		raw    []byte
		source string
		err    error
	)

	// Local snapshot priority
	switch {
	case l.file != "":
		source = l.file
		raw, err = os.ReadFile(l.file)
		if err != nil {
			return nil, fmt.Errorf("read feed file: %w", err)
		}
	case l.url != "":
		source = l.url
		raw, err = l.fetch(ctx)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoSource
	}

	fc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	return &Dataset{
		FetchedAt:  l.clock.Now(),
		Collection: fc,
		Source:     source,
		Raw:        raw,
	}, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	log.Debug().Str("url", l.url).Msg("Requesting feed")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize+1))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	if len(body) > maxFeedSize {
		return nil, fmt.Errorf("feed body exceeds %d bytes", maxFeedSize)
	}

	return body, nil
}

// Parse decodes a GeoJSON feature collection.
func Parse(raw []byte) (*geo.FeatureCollection, error) {
	var fc geo.FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode feed: unexpected type %q", fc.Type)
	}
	return &fc, nil
}

// Save writes the raw feed to path, creating parent directories.
func Save(path string, ds *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	_, err = f.Write(ds.Raw)
	return err
}
