// Package assets embeds the web page sources.
package assets

import _ "embed"

// IndexTemplate is the page skeleton; styles, script and legend are injected.
//
//go:embed index.html.tpl
var IndexTemplate string

// Script drives the map and chart in the browser.
//
//go:embed script.js
var Script string

// Style is the page stylesheet.
//
//go:embed style.css
var Style string
