// Package report renders a session report as a self-contained HTML page of
// ECharts visualisations: the EAR/MAR signal traces, the alert level
// timeline and the alert distribution.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/vigilia-data/fatigue.report/internal/fusion"
	"github.com/vigilia-data/fatigue.report/internal/pipeline"
)

// Data is everything a session report is built from.
type Data struct {
	Stats   pipeline.Stats
	Results []fusion.DetectionResult // oldest first
}

// Write renders the report page to w.
func Write(w io.Writer, data Data) error {
	page := components.NewPage()
	page.PageTitle = "Fatigue Session Report"
	page.AddCharts(
		signalChart(data),
		alertTimelineChart(data),
		alertDistributionChart(data),
	)
	return page.Render(w)
}

func subtitle(data Data) string {
	return fmt.Sprintf("session=%s frames=%d blinks=%d yawns=%d alerts=%d",
		data.Stats.ID, len(data.Results), data.Stats.Blinks, data.Stats.Yawns,
		data.Stats.AlertsRaised)
}

func timeLabels(results []fusion.DetectionResult) []string {
	labels := make([]string, len(results))
	for i, r := range results {
		labels[i] = r.Timestamp.Format("15:04:05.000")
	}
	return labels
}

// signalChart plots the raw EAR and MAR traces over the session.
func signalChart(data Data) *charts.Line {
	ear := make([]opts.LineData, len(data.Results))
	mar := make([]opts.LineData, len(data.Results))
	for i, r := range data.Results {
		ear[i] = opts.LineData{Value: r.EAR}
		mar[i] = opts.LineData{Value: r.MAR}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Eye and Mouth Aspect Ratios", Subtitle: subtitle(data)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ratio"}),
	)
	line.SetXAxis(timeLabels(data.Results)).
		AddSeries("EAR", ear).
		AddSeries("MAR", mar).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

// alertTimelineChart plots the alert level ordinal per frame as a step line.
func alertTimelineChart(data Data) *charts.Line {
	levels := make([]opts.LineData, len(data.Results))
	for i, r := range data.Results {
		levels[i] = opts.LineData{Value: int(r.AlertLevel)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Alert Level Timeline",
			Subtitle: "0=NONE 1=LOW 2=MEDIUM 3=HIGH 4=CRITICAL",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: int(fusion.AlertCritical)}),
	)
	line.SetXAxis(timeLabels(data.Results)).
		AddSeries("alert level", levels).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Step: "end"}))
	return line
}

// alertDistributionChart shows how many frames spent at each alert level.
func alertDistributionChart(data Data) *charts.Bar {
	counts := map[fusion.AlertLevel]int{}
	for _, r := range data.Results {
		counts[r.AlertLevel]++
	}

	order := []fusion.AlertLevel{
		fusion.AlertNone, fusion.AlertLow, fusion.AlertMedium,
		fusion.AlertHigh, fusion.AlertCritical,
	}
	x := make([]string, len(order))
	y := make([]opts.BarData, len(order))
	for i, level := range order {
		x[i] = level.String()
		y[i] = opts.BarData{Value: counts[level]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Alert Distribution",
			Subtitle: fmt.Sprintf("uptime=%s", data.Stats.Uptime.Round(time.Second)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("frames", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
