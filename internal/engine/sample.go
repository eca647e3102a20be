package engine

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sporelab/reportql/internal/domain"
)

// SampleGenerator produces synthetic but shape-correct result sets so a
// chart never renders empty when every real execution path came up dry.
// It is the terminal stage of the fallback chain and never fails.
type SampleGenerator struct {
	rng *rand.Rand
}

// NewSampleGenerator creates a generator seeded from the clock.
func NewSampleGenerator() *SampleGenerator {
	return &SampleGenerator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeededSampleGenerator creates a deterministic generator for tests.
func NewSeededSampleGenerator(seed int64) *SampleGenerator {
	return &SampleGenerator{rng: rand.New(rand.NewSource(seed))}
}

var (
	heatmapXCategories = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	heatmapYCategories = []string{"Site A", "Site B", "Site C", "Site D", "Site E", "Site F"}
	boxPlotGroups      = []string{"Control", "Low Dose", "Standard", "High Dose", "Combined"}
	scatterGroups      = []string{"Group A", "Group B", "Group C", "Group D"}
)

// Generate returns chart-type-aware synthetic rows for the configuration.
func (g *SampleGenerator) Generate(config domain.ReportConfig) domain.AggregatedData {
	start := time.Now()

	var rows []domain.ResultRow
	switch config.ChartType {
	case domain.ChartTypeHeatmap:
		rows = g.heatmapRows(config)
	case domain.ChartTypeBoxPlot:
		rows = g.boxPlotRows(config)
	case domain.ChartTypeScatter:
		rows = g.scatterRows(config)
	case domain.ChartTypeHistogram:
		rows = g.histogramRows(config)
	default:
		rows = g.genericRows(config)
	}

	return domain.AggregatedData{
		Rows:            rows,
		TotalCount:      len(rows),
		FilteredCount:   len(rows),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		Metadata:        resultMetadata(config),
	}
}

// heatmapRows emits one row per grid cell with a smooth 2D wave pattern so
// adjacent cells shade gradually. Values stay within 0-100.
func (g *SampleGenerator) heatmapRows(config domain.ReportConfig) []domain.ResultRow {
	xAlias, yAlias := "x", "y"
	if len(config.Dimensions) > 0 {
		xAlias = config.Dimensions[0].Alias()
	}
	if len(config.Dimensions) > 1 {
		yAlias = config.Dimensions[1].Alias()
	}
	measure := firstMeasureAlias(config, "value")

	rows := make([]domain.ResultRow, 0, len(heatmapXCategories)*len(heatmapYCategories))
	for yi, y := range heatmapYCategories {
		for xi, x := range heatmapXCategories {
			wave := 50 +
				25*math.Sin(float64(xi)*math.Pi/3.5) +
				20*math.Cos(float64(yi)*math.Pi/2.5)
			value := clamp(wave+g.rng.Float64()*6-3, 0, 100)
			rows = append(rows, domain.ResultRow{
				Dimensions: map[string]any{xAlias: x, yAlias: y},
				Measures:   map[string]any{measure: round2(value)},
				Metadata:   map[string]any{"sample": true},
			})
		}
	}
	return rows
}

// boxPlotRows emits five named groups of roughly 50 normally distributed
// samples each, with per-group mean and spread and 5% injected outliers.
func (g *SampleGenerator) boxPlotRows(config domain.ReportConfig) []domain.ResultRow {
	dim := firstDimensionAlias(config, "group")
	measure := firstMeasureAlias(config, "value")

	rows := make([]domain.ResultRow, 0, len(boxPlotGroups)*50)
	for gi, group := range boxPlotGroups {
		mean := 30 + float64(gi)*12
		stddev := 4 + float64(gi)*1.5
		for i := 0; i < 50; i++ {
			value := mean + g.rng.NormFloat64()*stddev
			if g.rng.Float64() < 0.05 {
				// Outliers land several deviations out on either side.
				direction := 1.0
				if g.rng.Float64() < 0.5 {
					direction = -1.0
				}
				value = mean + direction*stddev*(3.5+g.rng.Float64()*2)
			}
			rows = append(rows, domain.ResultRow{
				Dimensions: map[string]any{dim: group},
				Measures:   map[string]any{measure: round2(math.Max(value, 0))},
				Metadata:   map[string]any{"sample": true},
			})
		}
	}
	return rows
}

// scatterRows emits ~200 points across four groups with distinct linear
// correlations: strong positive, strong negative, moderate positive, none.
func (g *SampleGenerator) scatterRows(config domain.ReportConfig) []domain.ResultRow {
	dim := firstDimensionAlias(config, "group")
	xAlias, yAlias := "x", "y"
	if len(config.Measures) > 0 {
		xAlias = config.Measures[0].Alias()
	}
	if len(config.Measures) > 1 {
		yAlias = config.Measures[1].Alias()
	}

	slopes := []float64{0.9, -0.9, 0.45, 0}
	noise := []float64{5, 5, 12, 28}

	rows := make([]domain.ResultRow, 0, 200)
	for gi, group := range scatterGroups {
		for i := 0; i < 50; i++ {
			x := g.rng.Float64() * 100
			y := 50 + slopes[gi]*(x-50) + g.rng.NormFloat64()*noise[gi]
			if g.rng.Float64() < 0.03 {
				y += (g.rng.Float64() - 0.5) * 120
			}
			rows = append(rows, domain.ResultRow{
				Dimensions: map[string]any{dim: group},
				Measures:   map[string]any{xAlias: round2(x), yAlias: round2(y)},
				Metadata:   map[string]any{"sample": true},
			})
		}
	}
	return rows
}

// histogramRows draws 500 samples from one of four distribution families
// chosen per invocation.
func (g *SampleGenerator) histogramRows(config domain.ReportConfig) []domain.ResultRow {
	measure := firstMeasureAlias(config, "value")
	family := g.rng.Intn(4)

	sample := func() float64 {
		switch family {
		case 0: // normal
			return 50 + g.rng.NormFloat64()*12
		case 1: // log-normal, right-skewed
			return math.Exp(3+g.rng.NormFloat64()*0.5) + 10
		case 2: // bimodal
			if g.rng.Float64() < 0.5 {
				return 30 + g.rng.NormFloat64()*6
			}
			return 72 + g.rng.NormFloat64()*6
		default: // uniform with outliers
			if g.rng.Float64() < 0.04 {
				return 100 + g.rng.Float64()*60
			}
			return 10 + g.rng.Float64()*80
		}
	}

	rows := make([]domain.ResultRow, 0, 500)
	for i := 0; i < 500; i++ {
		rows = append(rows, domain.ResultRow{
			Dimensions: map[string]any{"sample_index": i},
			Measures:   map[string]any{measure: round2(math.Max(sample(), 0))},
			Metadata:   map[string]any{"sample": true},
		})
	}
	return rows
}

// genericRows produces a small series for every other chart type. When the
// first dimension carries an enum value set the categories come from it, so
// sampled axes match the real field's domain.
func (g *SampleGenerator) genericRows(config domain.ReportConfig) []domain.ResultRow {
	dim := firstDimensionAlias(config, "category")

	categories := make([]string, 0, 20)
	if len(config.Dimensions) > 0 && len(config.Dimensions[0].EnumValues) > 0 {
		categories = append(categories, config.Dimensions[0].EnumValues...)
		if len(categories) > 20 {
			categories = categories[:20]
		}
	} else {
		for i := 1; i <= 20; i++ {
			categories = append(categories, fmt.Sprintf("Category %d", i))
		}
	}

	measures := config.Measures
	rows := make([]domain.ResultRow, 0, len(categories))
	for _, category := range categories {
		values := make(map[string]any)
		if len(measures) == 0 {
			values["value"] = round2(g.rng.Float64() * 100)
		}
		for _, m := range measures {
			values[m.Alias()] = round2(g.rng.Float64() * 100)
		}
		rows = append(rows, domain.ResultRow{
			Dimensions: map[string]any{dim: category},
			Measures:   values,
			Metadata:   map[string]any{"sample": true},
		})
	}
	return rows
}

func firstDimensionAlias(config domain.ReportConfig, fallback string) string {
	if len(config.Dimensions) > 0 {
		return config.Dimensions[0].Alias()
	}
	return fallback
}

func firstMeasureAlias(config domain.ReportConfig, fallback string) string {
	if len(config.Measures) > 0 {
		return config.Measures[0].Alias()
	}
	return fallback
}

func clamp(v, low, high float64) float64 {
	return math.Min(math.Max(v, low), high)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func resultMetadata(config domain.ReportConfig) domain.ResultMetadata {
	meta := domain.ResultMetadata{
		Dimensions: make([]string, 0, len(config.Dimensions)),
		Measures:   make([]string, 0, len(config.Measures)),
		Filters:    make([]string, 0, len(config.Filters)),
		ChartType:  string(config.ChartType),
	}
	for _, d := range config.Dimensions {
		meta.Dimensions = append(meta.Dimensions, d.Alias())
	}
	for _, m := range config.Measures {
		meta.Measures = append(meta.Measures, m.Alias())
	}
	for _, f := range config.Filters {
		meta.Filters = append(meta.Filters, f.Field+" "+string(f.Operator))
	}
	return meta
}
