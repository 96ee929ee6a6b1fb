package data

import (
	"database/sql"
	"fmt"
	"log/slog"
)

const (
	upsertScoreSQL = `INSERT INTO risk_score (
			country_code, score_date, overall, political, conflict, economic, institutional,
			confidence_lower, confidence_upper, model_version
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(country_code, score_date) DO UPDATE SET
			overall = ?, political = ?, conflict = ?, economic = ?, institutional = ?,
			confidence_lower = ?, confidence_upper = ?, model_version = ?
	`

	selectScoreSQL = `SELECT country_code, score_date, overall, political, conflict, economic, institutional,
			confidence_lower, confidence_upper, model_version
		FROM risk_score
	`

	selectLatestScoreSQL = selectScoreSQL + `WHERE country_code = ?
		ORDER BY score_date DESC
		LIMIT 1
	`

	selectScoreHistorySQL = selectScoreSQL + `WHERE country_code = ?
		AND score_date >= ?
		AND score_date <= ?
		ORDER BY score_date
	`

	selectRegionalAverageSQL = `SELECT AVG(s.overall)
		FROM risk_score s
		INNER JOIN country c ON c.code = s.country_code
		WHERE c.region = ?
		AND s.country_code != ?
		AND s.score_date > date(?, '-30 days')
		AND s.score_date <= ?
	`
)

// RiskScore is the composite and component risk values for one
// (country, date) key, bounded to [0,100] with
// confidence_lower <= overall <= confidence_upper.
type RiskScore struct {
	CountryCode   string  `json:"country" yaml:"country"`
	Date          string  `json:"date" yaml:"date"`
	Overall       float64 `json:"overall" yaml:"overall"`
	Political     float64 `json:"political_stability" yaml:"political_stability"`
	Conflict      float64 `json:"conflict_risk" yaml:"conflict_risk"`
	Economic      float64 `json:"economic_risk" yaml:"economic_risk"`
	Institutional float64 `json:"institutional_quality" yaml:"institutional_quality"`
	Lower         float64 `json:"confidence_lower" yaml:"confidence_lower"`
	Upper         float64 `json:"confidence_upper" yaml:"confidence_upper"`
	ModelVersion  string  `json:"model_version" yaml:"model_version"`
}

// SaveRiskScore upserts the score for its (country, date) key.
func SaveRiskScore(db *sql.DB, s *RiskScore) error {
	if db == nil {
		return errDBNotInitialized
	}
	if s == nil || s.CountryCode == "" || s.Date == "" {
		return fmt.Errorf("risk score with country and date required")
	}

	if _, err := db.Exec(upsertScoreSQL,
		s.CountryCode, s.Date, s.Overall, s.Political, s.Conflict, s.Economic, s.Institutional,
		s.Lower, s.Upper, s.ModelVersion,
		s.Overall, s.Political, s.Conflict, s.Economic, s.Institutional,
		s.Lower, s.Upper, s.ModelVersion); err != nil {
		return fmt.Errorf("failed to upsert risk score %s/%s: %w", s.CountryCode, s.Date, err)
	}

	slog.Debug("saved risk score", "country", s.CountryCode, "date", s.Date, "overall", s.Overall)

	return nil
}

// GetLatestScore returns the most recent score for a country, nil when
// the country has no score yet.
func GetLatestScore(db *sql.DB, country string) (*RiskScore, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	s, err := scanScore(db.QueryRow(selectLatestScoreSQL, country))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest score for %s: %w", country, err)
	}
	return s, nil
}

// GetScoreHistory returns scores for a country with
// from <= score_date <= to, oldest first.
func GetScoreHistory(db *sql.DB, country, from, to string) ([]*RiskScore, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectScoreHistorySQL, country, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history for %s: %w", country, err)
	}
	defer rows.Close()

	list := make([]*RiskScore, 0)
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		list = append(list, s)
	}

	return list, rows.Err()
}

// GetRegionalAverage returns the mean overall score across the region's
// other countries in the 30 days up to asOf, nil when no peer has one.
func GetRegionalAverage(db *sql.DB, region, excludeCountry, asOf string) (*float64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var avg sql.NullFloat64
	err := db.QueryRow(selectRegionalAverageSQL, region, excludeCountry, asOf, asOf).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to query regional average for %s: %w", region, err)
	}

	if !avg.Valid {
		return nil, nil
	}
	v := avg.Float64
	return &v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(r rowScanner) (*RiskScore, error) {
	s := &RiskScore{}
	err := r.Scan(&s.CountryCode, &s.Date, &s.Overall, &s.Political, &s.Conflict,
		&s.Economic, &s.Institutional, &s.Lower, &s.Upper, &s.ModelVersion)
	if err != nil {
		return nil, err
	}
	return s, nil
}
