// Package page assembles the single HTML page served to browsers.
package page

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	"github.com/woozymasta/quakemap/assets"
	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/quake"
)

// Title is shown in the browser tab and above the chart.
const Title = "Recent Earthquakes"

type legendRow struct {
	Label   string
	Color   template.CSS
	DotSize float64
}

type data struct {
	Title       string
	CSS         template.CSS
	JS          template.JS
	Attribution template.HTML
	Legend      []legendRow
}

var funcs = template.FuncMap{
	"half": func(v float64) float64 { return v / 2 },
}

// Build renders the index page with the legend and minifies it.
// When minified is false the sources are embedded as written.
func Build(cfg *config.Config, minified bool) ([]byte, error) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)

	style, script := assets.Style, assets.Script
	if minified {
		var err error
		if style, err = m.String("text/css", style); err != nil {
			return nil, fmt.Errorf("minify css: %w", err)
		}
		if script, err = m.String("text/javascript", script); err != nil {
			return nil, fmt.Errorf("minify js: %w", err)
		}
	}

	tmpl, err := template.New("index").Funcs(funcs).Parse(assets.IndexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	rows := make([]legendRow, 0, len(quake.Grades))
	for _, e := range quake.Legend() {
		rows = append(rows, legendRow{
			Label:   e.Label,
			Color:   template.CSS(e.Color),
			DotSize: e.DotSize,
		})
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, data{
		Title:       Title,
		CSS:         template.CSS(style),
		JS:          template.JS(script),
		Attribution: template.HTML(cfg.Attribution),
		Legend:      rows,
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	if !minified {
		return buf.Bytes(), nil
	}

	out, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify html: %w", err)
	}
	return out, nil
}
