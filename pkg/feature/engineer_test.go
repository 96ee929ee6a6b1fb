package feature

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/georisk/pkg/data"
)

const refDate = "2025-03-15"

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, data.Init(path))
	db, err := data.GetDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type seedEvent struct {
	date      string
	category  string
	sentiment float64
	severity  float64
}

func seedEvents(t *testing.T, db *sql.DB, country string, evs []seedEvent) {
	t.Helper()

	imp, err := data.NewEventImporter(db)
	require.NoError(t, err)
	for i, e := range evs {
		require.NoError(t, imp.Add(&data.RawEvent{
			CountryCode: country,
			Date:        e.date,
			Title:       fmt.Sprintf("Seeded event number %d", i),
			Source:      "test",
		}))
	}
	_, err = imp.Flush()
	require.NoError(t, err)

	raws, err := data.ListUnclassifiedEvents(db, 1000)
	require.NoError(t, err)
	require.Len(t, raws, len(evs))

	// unclassified list is in insertion order
	for i, r := range raws {
		_, err := data.SaveProcessedEvents(db, []*data.ProcessedEvent{{
			RawEventID: r.ID,
			Category:   evs[i].category,
			Sentiment:  evs[i].sentiment,
			Severity:   evs[i].severity,
			Confidence: 1,
		}})
		require.NoError(t, err)
	}
}

func country(t *testing.T, db *sql.DB, code string) *data.Country {
	t.Helper()
	c, err := data.GetCountry(db, code)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func feat(t *testing.T, v *data.FeatureVector, name string) *float64 {
	t.Helper()
	val, ok := v.Features[name]
	require.True(t, ok, "feature %s missing", name)
	return val
}

func assertFeature(t *testing.T, v *data.FeatureVector, name string, want float64) {
	t.Helper()
	val := feat(t, v, name)
	require.NotNil(t, val, "feature %s is null", name)
	assert.InDelta(t, want, *val, 0.001, "feature %s", name)
}

func assertNullFeature(t *testing.T, v *data.FeatureVector, name string) {
	t.Helper()
	assert.Nil(t, feat(t, v, name), "feature %s should be null", name)
}

func TestBuild_EventWindows(t *testing.T) {
	db := setupDB(t)
	seedEvents(t, db, "UA", []seedEvent{
		{refDate, "conflict", -0.5, 0.9},
		{refDate, "diplomatic", 0, 0.1},
		{"2025-03-10", "conflict", 0.5, 0.4},
		{"2025-02-20", "protest", -0.3, 0.6},
		{"2024-06-01", "economic", 0.1, 0.2},
	})

	v, err := New(db).Build(country(t, db, "UA"), refDate)
	require.NoError(t, err)

	assertFeature(t, v, "conflict_events_7d", 2)
	assertFeature(t, v, "diplomatic_events_7d", 1)
	assertFeature(t, v, "protest_events_7d", 0)
	assertFeature(t, v, "economic_events_7d", 0)
	assertFeature(t, v, "other_events_7d", 0)

	assertFeature(t, v, "conflict_events_30d", 2)
	assertFeature(t, v, "protest_events_30d", 1)
	assertFeature(t, v, "economic_events_365d", 1)

	// three events in the 7d window: -0.5, 0, 0.5
	assertFeature(t, v, "avg_sentiment_7d", 0)
	assertFeature(t, v, "sentiment_volatility_7d", 0.5)
	assertFeature(t, v, "severity_max_7d", 0.9)

	// one event on 03-10, two on 03-15
	assertFeature(t, v, "event_trend_7d", 1.0)
}

func TestBuild_EmptyWindowNulls(t *testing.T) {
	db := setupDB(t)

	v, err := New(db).Build(country(t, db, "UA"), refDate)
	require.NoError(t, err)

	assertFeature(t, v, "conflict_events_7d", 0)
	assertFeature(t, v, "other_events_365d", 0)
	assertNullFeature(t, v, "avg_sentiment_7d")
	assertNullFeature(t, v, "severity_max_30d")
	assertNullFeature(t, v, "sentiment_volatility_90d")

	// no observed days still reads as a flat trend, not a null
	assertFeature(t, v, "event_trend_7d", 0)
}

func TestBuild_SingleEventVolatilityNull(t *testing.T) {
	db := setupDB(t)
	seedEvents(t, db, "UA", []seedEvent{
		{refDate, "conflict", -0.4, 0.7},
	})

	v, err := New(db).Build(country(t, db, "UA"), refDate)
	require.NoError(t, err)

	assertFeature(t, v, "avg_sentiment_7d", -0.4)
	assertNullFeature(t, v, "sentiment_volatility_7d")
	assertFeature(t, v, "event_trend_7d", 0)
}

func TestBuild_WindowBoundary(t *testing.T) {
	db := setupDB(t)
	seedEvents(t, db, "UA", []seedEvent{
		{"2025-03-08", "conflict", 0, 0.5}, // exactly ref-7, outside (ref-7, ref]
		{"2025-03-09", "protest", 0, 0.5},  // first day inside
	})

	v, err := New(db).Build(country(t, db, "UA"), refDate)
	require.NoError(t, err)

	assertFeature(t, v, "conflict_events_7d", 0)
	assertFeature(t, v, "protest_events_7d", 1)
	assertFeature(t, v, "conflict_events_30d", 1)
}

func TestBuild_Indicators(t *testing.T) {
	db := setupDB(t)

	_, err := data.SaveIndicators(db, []*data.Indicator{
		{CountryCode: "UA", IndicatorCode: "NY.GDP.MKTP.KD.ZG", Year: 2021, Value: 1},
		{CountryCode: "UA", IndicatorCode: "NY.GDP.MKTP.KD.ZG", Year: 2022, Value: 2},
		{CountryCode: "UA", IndicatorCode: "NY.GDP.MKTP.KD.ZG", Year: 2023, Value: 3},
		{CountryCode: "UA", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2022, Value: 0},
		{CountryCode: "UA", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2023, Value: 5},
		{CountryCode: "UA", IndicatorCode: "PV.EST", Year: 2023, Value: -0.5},
	})
	require.NoError(t, err)

	v, err := New(db).Build(country(t, db, "UA"), refDate)
	require.NoError(t, err)

	assertFeature(t, v, "gdp_growth_latest", 3)
	assertFeature(t, v, "gdp_growth_yoy_change", 50)
	assertFeature(t, v, "gdp_growth_volatility", 1)
	assertFeature(t, v, "gdp_growth_trend", 1)

	// zero prior year pins the change at zero instead of dividing by it
	assertFeature(t, v, "inflation_latest", 5)
	assertFeature(t, v, "inflation_yoy_change", 0)
	assertFeature(t, v, "inflation_volatility", 3.5355)
	assertFeature(t, v, "inflation_trend", 0)

	assertFeature(t, v, "political_stability_latest", -0.5)
	assertNullFeature(t, v, "political_stability_yoy_change")
	assertNullFeature(t, v, "political_stability_volatility")
	assertFeature(t, v, "political_stability_trend", 0)

	assertNullFeature(t, v, "rule_of_law_latest")
	assertNullFeature(t, v, "rule_of_law_yoy_change")
	assertNullFeature(t, v, "rule_of_law_volatility")
	assertNullFeature(t, v, "rule_of_law_trend")
}

func TestBuild_RegionalInstability(t *testing.T) {
	db := setupDB(t)

	save := func(code string, overall float64) {
		require.NoError(t, data.SaveRiskScore(db, &data.RiskScore{
			CountryCode: code, Date: "2025-03-10",
			Overall: overall, Political: overall, Conflict: overall,
			Economic: overall, Institutional: overall,
			Lower: overall, Upper: overall, ModelVersion: "1.0",
		}))
	}
	save("DE", 40)
	save("ES", 80)

	v, err := New(db).Build(country(t, db, "FR"), refDate)
	require.NoError(t, err)
	assertFeature(t, v, "regional_instability", 60)
}

func TestBuild_RegionalFallback(t *testing.T) {
	db := setupDB(t)

	v, err := New(db).Build(country(t, db, "FR"), refDate)
	require.NoError(t, err)
	assertFeature(t, v, "regional_instability", 50)
}

func TestBuild_Persists(t *testing.T) {
	db := setupDB(t)

	built, err := New(db).Build(country(t, db, "UA"), refDate)
	require.NoError(t, err)

	stored, err := data.GetFeatureVector(db, "UA", refDate)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, len(built.Features), len(stored.Features))
	assert.Nil(t, stored.Features["avg_sentiment_7d"])

	// 4 windows x 9 aggregates, 9 indicators x 4, plus the regional signal
	assert.Len(t, stored.Features, 73)
}

func TestBuild_BadInput(t *testing.T) {
	db := setupDB(t)

	_, err := New(db).Build(nil, refDate)
	assert.Error(t, err)

	_, err = New(db).Build(&data.Country{Code: "UA"}, "03/15/2025")
	assert.Error(t, err)
}
