package render

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/woozymasta/quakemap/internal/quake"
)

// Chart renders the bucket counts as a standalone HTML bar chart, each bar
// in the color of its legend grade.
func Chart(w io.Writer, counts quake.Counts, subtitle string) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Earthquakes by magnitude",
			Width:     "460px",
			Height:    "350px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Earthquakes by magnitude",
			Subtitle: subtitle,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "mag"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "#"}),
	)

	items := make([]opts.BarData, 0, len(quake.Labels))
	for i, l := range quake.Labels {
		items = append(items, opts.BarData{
			Name:      l,
			Value:     counts[i],
			ItemStyle: &opts.ItemStyle{Color: quake.Grades[i].CSS()},
		})
	}

	bar.SetXAxis(quake.Labels[:]).AddSeries("#", items)

	return bar.Render(w)
}
