package data

import (
	"database/sql"
	"fmt"
)

const (
	summaryWindowDays = 30

	selectCategoryCountsSQL = `SELECT p.category, COUNT(*)
		FROM raw_event r
		JOIN processed_event p ON p.raw_event_id = r.id
		WHERE r.country_code = ?
		AND r.event_date > date(?, ?)
		AND r.event_date <= ?
		GROUP BY p.category
	`

	selectLatestIndicatorSQL = `SELECT value
		FROM indicator
		WHERE country_code = ?
		AND indicator_code = ?
		ORDER BY year DESC
		LIMIT 1
	`
)

// World Bank Worldwide Governance Indicator codes rolled into the
// governance composite.
var governanceCodes = []string{
	"PV.EST",
	"GE.EST",
	"RQ.EST",
	"RL.EST",
	"CC.EST",
}

// CountrySummary is the one-page view of a country: its latest risk
// score, recent event mix, and a governance composite.
type CountrySummary struct {
	Country     *Country         `json:"country" yaml:"country"`
	AsOf        string           `json:"as_of" yaml:"as_of"`
	Score       *RiskScore       `json:"score,omitempty" yaml:"score,omitempty"`
	EventCounts map[string]int64 `json:"event_counts" yaml:"event_counts"`
	TotalEvents int64            `json:"total_events" yaml:"total_events"`
	Governance  *float64         `json:"governance,omitempty" yaml:"governance,omitempty"`
}

// GetCountrySummary assembles the summary for a country as of the given
// date. Event counts cover the trailing 30 days. The governance
// composite averages the latest WGI estimates scaled from their native
// -2.5..2.5 range onto 0..100, and is nil when no estimates are stored.
func GetCountrySummary(db *sql.DB, countryCode, asOf string) (*CountrySummary, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	country, err := GetCountry(db, countryCode)
	if err != nil {
		return nil, err
	}
	if country == nil {
		return nil, fmt.Errorf("unknown country code: %s, %w", countryCode, ErrValidation)
	}

	s := &CountrySummary{
		Country:     country,
		AsOf:        asOf,
		EventCounts: make(map[string]int64),
	}

	score, err := GetLatestScore(db, countryCode)
	if err != nil {
		return nil, fmt.Errorf("error getting latest score for %s: %w", countryCode, err)
	}
	s.Score = score

	window := fmt.Sprintf("-%d days", summaryWindowDays)
	rows, err := db.Query(selectCategoryCountsSQL, countryCode, asOf, window, asOf)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("error querying event counts for %s: %w", countryCode, err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("error scanning event count row: %w", err)
		}
		s.EventCounts[category] = count
		s.TotalEvents += count
	}

	gov, err := getGovernanceComposite(db, countryCode)
	if err != nil {
		return nil, err
	}
	s.Governance = gov

	return s, nil
}

// getGovernanceComposite averages the latest stored WGI estimates,
// each scaled from -2.5..2.5 onto 0..100. Codes with no stored value
// are left out; nil means none were available.
func getGovernanceComposite(db *sql.DB, countryCode string) (*float64, error) {
	var sum float64
	var n int

	for _, code := range governanceCodes {
		var v float64
		err := db.QueryRow(selectLatestIndicatorSQL, countryCode, code).Scan(&v)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error querying indicator %s for %s: %w", code, countryCode, err)
		}
		sum += ((v + 2.5) / 5.0) * 100.0
		n++
	}

	if n == 0 {
		return nil, nil
	}

	// estimates occasionally stray past the nominal -2.5..2.5 bounds
	composite := round2(sum / float64(n))
	if composite < 0 {
		composite = 0
	} else if composite > 100 {
		composite = 100
	}
	return &composite, nil
}
