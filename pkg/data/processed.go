package data

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	insertProcessedSQL = `INSERT INTO processed_event (
			raw_event_id, category, sentiment, severity, confidence
		)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(raw_event_id) DO NOTHING
	`

	selectUnclassifiedSQL = `SELECT r.id, r.country_code, r.event_date, r.title, r.source, r.url, r.domain, r.language, r.tone
		FROM raw_event r
		LEFT JOIN processed_event p ON p.raw_event_id = r.id
		WHERE p.raw_event_id IS NULL
		ORDER BY r.id
		LIMIT ?
	`

	selectClassifiedSQL = `SELECT r.event_date, p.category, p.sentiment, p.severity
		FROM raw_event r
		INNER JOIN processed_event p ON p.raw_event_id = r.id
		WHERE r.country_code = ?
		AND r.event_date > ?
		AND r.event_date <= ?
		ORDER BY r.event_date
	`
)

// ProcessedEvent is the classification result for exactly one RawEvent.
// Rows are write-once; re-processing the same raw event is a no-op.
type ProcessedEvent struct {
	RawEventID int64   `json:"raw_event_id" yaml:"raw_event_id"`
	Category   string  `json:"category" yaml:"category"`
	Sentiment  float64 `json:"sentiment" yaml:"sentiment"`
	Severity   float64 `json:"severity" yaml:"severity"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// ClassifiedEvent is the slim join of raw date and classification used
// by the feature windows.
type ClassifiedEvent struct {
	Date      string  `json:"date" yaml:"date"`
	Category  string  `json:"category" yaml:"category"`
	Sentiment float64 `json:"sentiment" yaml:"sentiment"`
	Severity  float64 `json:"severity" yaml:"severity"`
}

// ListUnclassifiedEvents returns raw events that have no classification
// yet, oldest first.
func ListUnclassifiedEvents(db *sql.DB, limit int) ([]*RawEvent, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit < 1 {
		limit = importBatchSize
	}

	rows, err := db.Query(selectUnclassifiedSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query unclassified events")
	}
	defer rows.Close()

	list := make([]*RawEvent, 0)
	for rows.Next() {
		e := &RawEvent{}
		var tone sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.CountryCode, &e.Date, &e.Title, &e.Source,
			&e.URL, &e.Domain, &e.Language, &tone); err != nil {
			return nil, errors.Wrap(err, "failed to scan raw event row")
		}
		if tone.Valid {
			v := tone.Float64
			e.Tone = &v
		}
		list = append(list, e)
	}

	return list, rows.Err()
}

// SaveProcessedEvents writes classifications in one transaction and
// returns the number of rows actually inserted. Values are stored at
// two decimal places.
func SaveProcessedEvents(db *sql.DB, list []*ProcessedEvent) (int, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}
	if len(list) == 0 {
		return 0, nil
	}

	start := time.Now()

	stmt, err := db.Prepare(insertProcessedSQL)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prepare processed insert statement")
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}

	inserted := 0
	for i, p := range list {
		res, err := tx.Stmt(stmt).Exec(p.RawEventID, p.Category,
			round2(p.Sentiment), round2(p.Severity), round2(p.Confidence))
		if err != nil {
			rollbackTransaction(tx)
			return 0, errors.Wrapf(err, "error inserting processed event[%d]: %d", i, p.RawEventID)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit transaction")
	}

	log.Debugf("saved %d processed events in %s", inserted, time.Since(start).String())

	return inserted, nil
}

// GetClassifiedEvents returns classified events for a country with
// from < event_date <= to.
func GetClassifiedEvents(db *sql.DB, country, from, to string) ([]*ClassifiedEvent, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectClassifiedSQL, country, from, to)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query classified events: %s", country)
	}
	defer rows.Close()

	list := make([]*ClassifiedEvent, 0)
	for rows.Next() {
		c := &ClassifiedEvent{}
		if err := rows.Scan(&c.Date, &c.Category, &c.Sentiment, &c.Severity); err != nil {
			return nil, errors.Wrap(err, "failed to scan classified event row")
		}
		list = append(list, c)
	}

	return list, rows.Err()
}
