package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveIndicators(t *testing.T) {
	db := setupTestDB(t)

	n, err := SaveIndicators(db, []*Indicator{
		{CountryCode: "US", IndicatorCode: "NY.GDP.MKTP.KD.ZG", Year: 2022, Value: 2.1},
		{CountryCode: "US", IndicatorCode: "NY.GDP.MKTP.KD.ZG", Year: 2023, Value: 2.5},
		{CountryCode: "US", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2023, Value: 4.1},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := GetIndicatorHistory(db, "US", "NY.GDP.MKTP.KD.ZG")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2022, list[0].Year)
	assert.InDelta(t, 2.1, list[0].Value, 0.001)
	assert.Equal(t, 2023, list[1].Year)
}

func TestSaveIndicators_Upsert(t *testing.T) {
	db := setupTestDB(t)

	_, err := SaveIndicators(db, []*Indicator{
		{CountryCode: "US", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2023, Value: 4.1},
	})
	require.NoError(t, err)

	// revised value for the same (country, code, year) replaces the row
	_, err = SaveIndicators(db, []*Indicator{
		{CountryCode: "US", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2023, Value: 3.9},
	})
	require.NoError(t, err)

	list, err := GetIndicatorHistory(db, "US", "FP.CPI.TOTL.ZG")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.InDelta(t, 3.9, list[0].Value, 0.001)
}

func TestSaveIndicators_Empty(t *testing.T) {
	db := setupTestDB(t)
	n, err := SaveIndicators(db, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetIndicatorHistory_NoData(t *testing.T) {
	db := setupTestDB(t)
	list, err := GetIndicatorHistory(db, "US", "SL.UEM.TOTL.ZS")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIndicators_NilDB(t *testing.T) {
	_, err := SaveIndicators(nil, nil)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetIndicatorHistory(nil, "US", "FP.CPI.TOTL.ZG")
	assert.ErrorIs(t, err, errDBNotInitialized)
}
