package data

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

const (
	upsertFeatureSQL = `INSERT INTO feature_vector (country_code, feature_date, features)
		VALUES (?, ?, ?)
		ON CONFLICT(country_code, feature_date) DO UPDATE SET features = ?
	`

	selectFeatureSQL = `SELECT features FROM feature_vector
		WHERE country_code = ?
		AND feature_date = ?
	`
)

// FeatureVector holds engineered features for one (country, date) key.
// A nil map value is a real null: the underlying data was absent and
// consumers must treat it as insufficient, never as zero.
type FeatureVector struct {
	CountryCode string              `json:"country" yaml:"country"`
	Date        string              `json:"date" yaml:"date"`
	Features    map[string]*float64 `json:"features" yaml:"features"`
}

// SaveFeatureVector upserts the vector for its (country, date) key.
func SaveFeatureVector(db *sql.DB, v *FeatureVector) error {
	if db == nil {
		return errDBNotInitialized
	}
	if v == nil || v.CountryCode == "" || v.Date == "" {
		return fmt.Errorf("feature vector with country and date required")
	}

	b, err := json.Marshal(v.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features for %s/%s: %w", v.CountryCode, v.Date, err)
	}

	if _, err := db.Exec(upsertFeatureSQL, v.CountryCode, v.Date, string(b), string(b)); err != nil {
		return fmt.Errorf("failed to upsert feature vector %s/%s: %w", v.CountryCode, v.Date, err)
	}

	slog.Debug("saved feature vector", "country", v.CountryCode, "date", v.Date, "features", len(v.Features))

	return nil
}

// GetFeatureVector returns the vector for a key, nil when absent.
func GetFeatureVector(db *sql.DB, country, date string) (*FeatureVector, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var raw string
	err := db.QueryRow(selectFeatureSQL, country, date).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query feature vector %s/%s: %w", country, date, err)
	}

	v := &FeatureVector{
		CountryCode: country,
		Date:        date,
		Features:    make(map[string]*float64),
	}
	if err := json.Unmarshal([]byte(raw), &v.Features); err != nil {
		return nil, fmt.Errorf("failed to unmarshal features %s/%s: %w", country, date, err)
	}

	return v, nil
}
