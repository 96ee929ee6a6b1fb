// Package feature assembles per-country feature vectors from
// classified events, indicator history, and regional scores. Absent
// data is always an explicit null so the model can tell "no signal"
// from "zero".
package feature

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/mchmarny/georisk/pkg/classify"
	"github.com/mchmarny/georisk/pkg/data"
	"github.com/mchmarny/georisk/pkg/source"
)

// Windows are the trailing event windows in days.
var Windows = []int{7, 30, 90, 365}

// regionalFallback stands in when no regional peer has a recent score.
const regionalFallback = 50.0

// Engineer builds and persists feature vectors.
type Engineer struct {
	db *sql.DB
}

func New(db *sql.DB) *Engineer {
	return &Engineer{db: db}
}

// Build assembles the feature vector for one country as of refDate and
// stores it. Rebuilding the same (country, date) replaces the vector.
func (e *Engineer) Build(country *data.Country, refDate string) (*data.FeatureVector, error) {
	if country == nil {
		return nil, fmt.Errorf("country required")
	}
	ref, err := time.Parse(data.DateFormat, refDate)
	if err != nil {
		return nil, fmt.Errorf("unparseable reference date %q: %w", refDate, err)
	}

	features := make(map[string]*float64)

	for _, w := range Windows {
		from := ref.AddDate(0, 0, -w).Format(data.DateFormat)
		events, err := data.GetClassifiedEvents(e.db, country.Code, from, refDate)
		if err != nil {
			return nil, fmt.Errorf("error loading events for %s over %dd: %w", country.Code, w, err)
		}
		eventFeatures(features, events, w)
	}

	for code, name := range source.IndicatorNames {
		hist, err := data.GetIndicatorHistory(e.db, country.Code, code)
		if err != nil {
			return nil, fmt.Errorf("error loading indicator %s for %s: %w", code, country.Code, err)
		}
		indicatorFeatures(features, name, hist)
	}

	regional, err := data.GetRegionalAverage(e.db, country.Region, country.Code, refDate)
	if err != nil {
		return nil, fmt.Errorf("error loading regional average for %s: %w", country.Code, err)
	}
	if regional == nil {
		features["regional_instability"] = value(regionalFallback)
	} else {
		features["regional_instability"] = regional
	}

	v := &data.FeatureVector{
		CountryCode: country.Code,
		Date:        refDate,
		Features:    features,
	}
	if err := data.SaveFeatureVector(e.db, v); err != nil {
		return nil, err
	}

	slog.Debug("feature vector built",
		"country", country.Code,
		"date", refDate,
		"features", len(features),
	)

	return v, nil
}

// eventFeatures fills the window aggregates for one trailing window.
func eventFeatures(features map[string]*float64, events []*data.ClassifiedEvent, window int) {
	counts := map[string]int{
		classify.CategoryConflict:   0,
		classify.CategoryProtest:    0,
		classify.CategoryDiplomatic: 0,
		classify.CategoryEconomic:   0,
		classify.CategoryOther:      0,
	}

	sentiments := make([]float64, 0, len(events))
	maxSeverity := 0.0
	perDay := make(map[string]int)

	for _, ev := range events {
		counts[ev.Category]++
		sentiments = append(sentiments, ev.Sentiment)
		if ev.Severity > maxSeverity {
			maxSeverity = ev.Severity
		}
		perDay[ev.Date]++
	}

	for category, n := range counts {
		features[fmt.Sprintf("%s_events_%dd", category, window)] = value(float64(n))
	}

	if len(sentiments) > 0 {
		features[fmt.Sprintf("avg_sentiment_%dd", window)] = value(stat.Mean(sentiments, nil))
		features[fmt.Sprintf("severity_max_%dd", window)] = value(maxSeverity)
	} else {
		features[fmt.Sprintf("avg_sentiment_%dd", window)] = nil
		features[fmt.Sprintf("severity_max_%dd", window)] = nil
	}

	if len(sentiments) > 1 {
		features[fmt.Sprintf("sentiment_volatility_%dd", window)] = value(stat.StdDev(sentiments, nil))
	} else {
		features[fmt.Sprintf("sentiment_volatility_%dd", window)] = nil
	}

	features[fmt.Sprintf("event_trend_%dd", window)] = value(dailyTrend(perDay))
}

// dailyTrend regresses daily event counts against the day's position
// in the sequence of observed days. Days without events do not appear
// in the regression. Under two observed days there is no trend to
// speak of, which reports as a flat 0.
func dailyTrend(perDay map[string]int) float64 {
	if len(perDay) < 2 {
		return 0
	}

	days := make([]string, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Strings(days)

	xs := make([]float64, len(days))
	ys := make([]float64, len(days))
	for i, d := range days {
		xs[i] = float64(i)
		ys[i] = float64(perDay[d])
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}

// indicatorFeatures fills the yearly series aggregates for one
// canonical indicator name.
func indicatorFeatures(features map[string]*float64, name string, hist []*data.YearValue) {
	n := len(hist)

	if n == 0 {
		features[name+"_latest"] = nil
		features[name+"_yoy_change"] = nil
		features[name+"_volatility"] = nil
		features[name+"_trend"] = nil
		return
	}

	features[name+"_latest"] = value(hist[n-1].Value)

	if n >= 2 {
		last, prev := hist[n-1].Value, hist[n-2].Value
		if prev == 0 {
			features[name+"_yoy_change"] = value(0)
		} else {
			features[name+"_yoy_change"] = value(((last - prev) / abs(prev)) * 100)
		}

		recent := lastValues(hist, 3)
		features[name+"_volatility"] = value(stat.StdDev(recent, nil))
	} else {
		features[name+"_yoy_change"] = nil
		features[name+"_volatility"] = nil
	}

	if n >= 3 {
		tail := hist[n-3:]
		xs := make([]float64, len(tail))
		ys := make([]float64, len(tail))
		for i, yv := range tail {
			xs[i] = float64(yv.Year)
			ys[i] = yv.Value
		}
		_, slope := stat.LinearRegression(xs, ys, nil, false)
		features[name+"_trend"] = value(slope)
	} else {
		features[name+"_trend"] = value(0)
	}
}

func lastValues(hist []*data.YearValue, k int) []float64 {
	if len(hist) < k {
		k = len(hist)
	}
	vals := make([]float64, 0, k)
	for _, yv := range hist[len(hist)-k:] {
		vals = append(vals, yv.Value)
	}
	return vals
}

func value(v float64) *float64 {
	return &v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
