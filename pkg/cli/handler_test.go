package cli

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/georisk/pkg/data"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, data.Init(path))
	db, err := data.GetDB(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func doGet(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func saveScore(t *testing.T, db *sql.DB, country, date string, overall float64) {
	t.Helper()
	require.NoError(t, data.SaveRiskScore(db, &data.RiskScore{
		CountryCode:   country,
		Date:          date,
		Overall:       overall,
		Political:     overall,
		Conflict:      overall,
		Economic:      overall,
		Institutional: overall,
		Lower:         overall - 10,
		Upper:         overall + 10,
		ModelVersion:  "1.0",
	}))
}

func TestRouterCountries(t *testing.T) {
	mux := makeRouter(setupTestDB(t))

	rec := doGet(t, mux, "/api/v1/countries")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []*data.Country
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Greater(t, len(list), 100)
}

func TestRouterLatestScore(t *testing.T) {
	db := setupTestDB(t)
	mux := makeRouter(db)

	rec := doGet(t, mux, "/api/v1/scores/UA")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no score data for UA")

	saveScore(t, db, "UA", "2025-03-15", 62.5)

	rec = doGet(t, mux, "/api/v1/scores/UA")
	require.Equal(t, http.StatusOK, rec.Code)

	var s data.RiskScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, "UA", s.CountryCode)
	assert.InDelta(t, 62.5, s.Overall, 1e-9)

	// path country codes are case insensitive
	rec = doGet(t, mux, "/api/v1/scores/ua")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterScoreHistory(t *testing.T) {
	db := setupTestDB(t)
	mux := makeRouter(db)

	rec := doGet(t, mux, "/api/v1/scores/UA/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []*data.RiskScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)

	saveScore(t, db, "UA", "2025-03-14", 40)
	saveScore(t, db, "UA", "2025-03-15", 45)

	rec = doGet(t, mux, "/api/v1/scores/UA/history?from=2025-03-15&to=2025-03-16")
	require.Equal(t, http.StatusOK, rec.Code)
	list = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "2025-03-15", list[0].Date)

	rec = doGet(t, mux, "/api/v1/scores/UA/history?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid from date")
}

func TestRouterSummary(t *testing.T) {
	db := setupTestDB(t)
	mux := makeRouter(db)

	rec := doGet(t, mux, "/api/v1/summary/XX")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown country")

	saveScore(t, db, "UA", time.Now().UTC().Format(data.DateFormat), 55)

	rec = doGet(t, mux, "/api/v1/summary/UA")
	require.Equal(t, http.StatusOK, rec.Code)

	var s data.CountrySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	require.NotNil(t, s.Country)
	assert.Equal(t, "UA", s.Country.Code)
	require.NotNil(t, s.Score)
	assert.InDelta(t, 55, s.Score.Overall, 1e-9)
}

func TestRouterEventSeries(t *testing.T) {
	db := setupTestDB(t)
	mux := makeRouter(db)

	imp, err := data.NewEventImporter(db)
	require.NoError(t, err)
	require.NoError(t, imp.Add(&data.RawEvent{
		CountryCode: "UA", Date: "2025-03-15", Title: "Shelling near the border", Source: "gdelt",
	}))
	require.NoError(t, imp.Add(&data.RawEvent{
		CountryCode: "UA", Date: "2025-03-15", Title: "Grain export talks resume", Source: "gdelt",
	}))
	_, err = imp.Flush()
	require.NoError(t, err)

	raw, err := data.ListUnclassifiedEvents(db, 10)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	_, err = data.SaveProcessedEvents(db, []*data.ProcessedEvent{
		{RawEventID: raw[0].ID, Category: "conflict", Severity: 0.8, Confidence: 0.9},
		{RawEventID: raw[1].ID, Category: "economic", Severity: 0.3, Confidence: 0.7},
	})
	require.NoError(t, err)

	rec := doGet(t, mux, "/api/v1/events/UA/series?from=2025-03-14&to=2025-03-16")
	require.Equal(t, http.StatusOK, rec.Code)

	var s data.CategorySeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	require.Len(t, s.Dates, 1)
	assert.Equal(t, "2025-03-15", s.Dates[0])
	assert.Equal(t, 1, s.Conflict[0])
	assert.Equal(t, 1, s.Economic[0])
	assert.InDelta(t, 2.0, s.Avg[0], 0.001)

	rec = doGet(t, mux, "/api/v1/events/UA/series?to=notadate")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterHealthz(t *testing.T) {
	mux := makeRouter(setupTestDB(t))

	rec := doGet(t, mux, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRouterMetrics(t *testing.T) {
	mux := makeRouter(setupTestDB(t))

	rec := doGet(t, mux, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}
