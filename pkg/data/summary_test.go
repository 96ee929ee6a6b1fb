package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCountrySummary(t *testing.T) {
	db := setupTestDB(t)

	for i, title := range []string{"Border clash reported", "March in the capital", "Rates held"} {
		id := insertTestEvent(t, db, "UA", "2025-03-10", title)
		category := []string{"conflict", "protest", "economic"}[i]
		_, err := SaveProcessedEvents(db, []*ProcessedEvent{
			{RawEventID: id, Category: category, Sentiment: -0.2, Severity: 0.6, Confidence: 0.9},
		})
		require.NoError(t, err)
	}

	// second conflict event inside the window
	id := insertTestEvent(t, db, "UA", "2025-03-12", "Shelling near the line")
	_, err := SaveProcessedEvents(db, []*ProcessedEvent{
		{RawEventID: id, Category: "conflict", Sentiment: -0.5, Severity: 0.9, Confidence: 0.9},
	})
	require.NoError(t, err)

	// outside the 30 day window
	old := insertTestEvent(t, db, "UA", "2024-12-01", "Old protest story")
	_, err = SaveProcessedEvents(db, []*ProcessedEvent{
		{RawEventID: old, Category: "protest", Sentiment: 0, Severity: 0.5, Confidence: 0.5},
	})
	require.NoError(t, err)

	saveTestScore(t, db, "UA", "2025-03-14", 72.5)

	_, err = SaveIndicators(db, []*Indicator{
		{CountryCode: "UA", IndicatorCode: "PV.EST", Year: 2023, Value: -1.5},
		{CountryCode: "UA", IndicatorCode: "GE.EST", Year: 2023, Value: 0.0},
		{CountryCode: "UA", IndicatorCode: "RL.EST", Year: 2022, Value: 0.5},
	})
	require.NoError(t, err)

	s, err := GetCountrySummary(db, "UA", "2025-03-15")
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, "Ukraine", s.Country.Name)
	require.NotNil(t, s.Score)
	assert.InDelta(t, 72.5, s.Score.Overall, 0.001)

	assert.Equal(t, int64(2), s.EventCounts["conflict"])
	assert.Equal(t, int64(1), s.EventCounts["protest"])
	assert.Equal(t, int64(1), s.EventCounts["economic"])
	assert.Equal(t, int64(4), s.TotalEvents)

	// mean of scaled estimates: 20, 50, and 60 on the 0..100 scale
	require.NotNil(t, s.Governance)
	assert.InDelta(t, 43.33, *s.Governance, 0.01)
}

func TestGetCountrySummary_Sparse(t *testing.T) {
	db := setupTestDB(t)

	s, err := GetCountrySummary(db, "US", "2025-03-15")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Nil(t, s.Score)
	assert.Nil(t, s.Governance)
	assert.Equal(t, int64(0), s.TotalEvents)
	assert.Empty(t, s.EventCounts)
}

func TestGetCountrySummary_UnknownCountry(t *testing.T) {
	db := setupTestDB(t)
	_, err := GetCountrySummary(db, "ZZ", "2025-03-15")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGovernanceComposite_UsesLatestYear(t *testing.T) {
	db := setupTestDB(t)

	_, err := SaveIndicators(db, []*Indicator{
		{CountryCode: "US", IndicatorCode: "PV.EST", Year: 2021, Value: -2.5},
		{CountryCode: "US", IndicatorCode: "PV.EST", Year: 2023, Value: 2.5},
	})
	require.NoError(t, err)

	s, err := GetCountrySummary(db, "US", "2025-03-15")
	require.NoError(t, err)
	require.NotNil(t, s.Governance)
	assert.InDelta(t, 100, *s.Governance, 0.001)
}
