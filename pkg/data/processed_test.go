package data

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTestEvent(t *testing.T, db *sql.DB, country, date, title string) int64 {
	t.Helper()
	res, err := db.Exec(insertEventSQL, country, date, title, NormalizeTitle(title),
		"test", "", "", "", nil)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestListUnclassifiedEvents(t *testing.T) {
	db := setupTestDB(t)

	id1 := insertTestEvent(t, db, "US", "2025-03-10", "Senate passes budget bill")
	id2 := insertTestEvent(t, db, "US", "2025-03-11", "Protests erupt downtown")
	insertTestEvent(t, db, "US", "2025-03-12", "Trade talks resume")

	list, err := ListUnclassifiedEvents(db, 10)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, id1, list[0].ID)

	n, err := SaveProcessedEvents(db, []*ProcessedEvent{
		{RawEventID: id1, Category: "economic", Sentiment: 0.1, Severity: 0.5, Confidence: 0.8},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err = ListUnclassifiedEvents(db, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, id2, list[0].ID)
}

func TestListUnclassifiedEvents_Limit(t *testing.T) {
	db := setupTestDB(t)

	insertTestEvent(t, db, "US", "2025-03-10", "Event one")
	insertTestEvent(t, db, "US", "2025-03-11", "Event two")

	list, err := ListUnclassifiedEvents(db, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSaveProcessedEvents_Rounds(t *testing.T) {
	db := setupTestDB(t)
	id := insertTestEvent(t, db, "US", "2025-03-10", "Event one")

	n, err := SaveProcessedEvents(db, []*ProcessedEvent{
		{RawEventID: id, Category: "other", Sentiment: -0.123456, Severity: 0.567891, Confidence: 0.999999},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var sentiment, severity float64
	require.NoError(t, db.QueryRow(
		"SELECT sentiment, severity FROM processed_event WHERE raw_event_id = ?", id).
		Scan(&sentiment, &severity))
	assert.InDelta(t, -0.12, sentiment, 0.001)
	assert.InDelta(t, 0.57, severity, 0.001)
}

func TestSaveProcessedEvents_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	id := insertTestEvent(t, db, "US", "2025-03-10", "Event one")

	list := []*ProcessedEvent{
		{RawEventID: id, Category: "other", Sentiment: 0, Severity: 0.5, Confidence: 0},
	}
	n, err := SaveProcessedEvents(db, list)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// second pass is a no-op
	n, err = SaveProcessedEvents(db, list)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetClassifiedEvents_Window(t *testing.T) {
	db := setupTestDB(t)

	ids := []int64{
		insertTestEvent(t, db, "US", "2025-03-10", "On the from boundary"),
		insertTestEvent(t, db, "US", "2025-03-11", "Inside the window"),
		insertTestEvent(t, db, "US", "2025-03-12", "On the to boundary"),
	}
	for _, id := range ids {
		_, err := SaveProcessedEvents(db, []*ProcessedEvent{
			{RawEventID: id, Category: "other", Sentiment: 0, Severity: 0.5, Confidence: 0},
		})
		require.NoError(t, err)
	}

	// window is exclusive of from, inclusive of to
	list, err := GetClassifiedEvents(db, "US", "2025-03-10", "2025-03-12")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2025-03-11", list[0].Date)
	assert.Equal(t, "2025-03-12", list[1].Date)
}

func TestGetClassifiedEvents_Empty(t *testing.T) {
	db := setupTestDB(t)
	list, err := GetClassifiedEvents(db, "US", "2025-01-01", "2025-12-31")
	require.NoError(t, err)
	assert.Empty(t, list)
}
