package data

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	upsertIndicatorSQL = `INSERT INTO indicator (country_code, indicator_code, year, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(country_code, indicator_code, year) DO UPDATE SET value = ?
	`

	selectIndicatorHistorySQL = `SELECT year, value FROM indicator
		WHERE country_code = ?
		AND indicator_code = ?
		ORDER BY year
	`
)

// Indicator is one (country, code, year) observation, supplied by an
// external indicator source.
type Indicator struct {
	CountryCode   string  `json:"country" yaml:"country"`
	IndicatorCode string  `json:"code" yaml:"code"`
	Year          int     `json:"year" yaml:"year"`
	Value         float64 `json:"value" yaml:"value"`
}

// YearValue is one year of indicator history.
type YearValue struct {
	Year  int     `json:"year" yaml:"year"`
	Value float64 `json:"value" yaml:"value"`
}

// SaveIndicators upserts indicator observations in one transaction.
// Re-delivery of a (country, code, year) key overwrites the value.
func SaveIndicators(db *sql.DB, list []*Indicator) (int, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}
	if len(list) == 0 {
		return 0, nil
	}

	start := time.Now()

	stmt, err := db.Prepare(upsertIndicatorSQL)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prepare indicator upsert statement")
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}

	for i, n := range list {
		if _, err := tx.Stmt(stmt).Exec(n.CountryCode, n.IndicatorCode, n.Year, n.Value, n.Value); err != nil {
			rollbackTransaction(tx)
			return 0, errors.Wrapf(err, "error upserting indicator[%d]: %s/%s/%d", i, n.CountryCode, n.IndicatorCode, n.Year)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit transaction")
	}

	log.Debugf("upserted %d indicators in %s", len(list), time.Since(start).String())

	return len(list), nil
}

// GetIndicatorHistory returns the yearly series for one indicator code,
// oldest year first.
func GetIndicatorHistory(db *sql.DB, country, code string) ([]*YearValue, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectIndicatorHistorySQL, country, code)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query indicator history: %s/%s", country, code)
	}
	defer rows.Close()

	list := make([]*YearValue, 0)
	for rows.Next() {
		v := &YearValue{}
		if err := rows.Scan(&v.Year, &v.Value); err != nil {
			return nil, errors.Wrap(err, "failed to scan indicator row")
		}
		list = append(list, v)
	}

	return list, rows.Err()
}
