package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Chart writes an HTML page with a bar chart of drill hits per tool and a
// pie chart of the area used by jobs.
func Chart(w io.Writer, stats Stats) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Drill hits per tool"}),
	)
	names := make([]string, len(stats.Tools))
	hits := make([]opts.BarData, len(stats.Tools))
	for i, t := range stats.Tools {
		names[i] = fmt.Sprintf("%s %.4f", t.Code, t.Diameter)
		hits[i] = opts.BarData{Value: t.Hits}
	}
	bar.SetXAxis(names).AddSeries("Hits", hits)

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Panel area",
			Subtitle: fmt.Sprintf("%.1f%% used", stats.Achieved*100),
		}),
	)
	pie.AddSeries("Area", []opts.PieData{
		{Name: "Jobs", Value: stats.JobArea},
		{Name: "Unused", Value: max(stats.Area()-stats.JobArea, 0)},
	})

	page := components.NewPage()
	page.PageTitle = "gerbmerge panel statistics"
	page.AddCharts(bar, pie)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
