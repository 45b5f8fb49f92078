package page

import (
	"html"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woozymasta/quakemap/internal/config"
)

func TestBuild_Legend(t *testing.T) {
	out, err := Build(config.Default(), false)
	require.NoError(t, err)

	doc := html.UnescapeString(string(out))
	for _, want := range []string{
		`id="map"`,
		`id="legend"`,
		`id="earthquake-count"`,
		`id="earthquake-chart"`,
		`id="reset"`,
		"rgb(208,209,230)",
		"rgb(103,169,207)",
		"rgb(1,108,89)",
		"width: 40px",
		"top: 20px",
		"6+",
		`href="https://earthquake.usgs.gov/earthquakes/"`,
	} {
		assert.Contains(t, doc, want)
	}
	assert.NotContains(t, doc, "ZgotmplZ")
}

func TestBuild_Minified(t *testing.T) {
	plain, err := Build(config.Default(), false)
	require.NoError(t, err)

	small, err := Build(config.Default(), true)
	require.NoError(t, err)

	assert.Less(t, len(small), len(plain))
	assert.Contains(t, string(small), "earthquake-chart")
	assert.Contains(t, string(small), "bar_click")
}
