package data

import (
	"database/sql"

	"github.com/pkg/errors"
)

const (
	selectCountriesSQL = `SELECT code, name, region, population FROM country ORDER BY code`

	selectCountrySQL = `SELECT code, name, region, population FROM country WHERE code = ?`
)

type Country struct {
	Code       string `json:"code" yaml:"code"`
	Name       string `json:"name" yaml:"name"`
	Region     string `json:"region" yaml:"region"`
	Population int64  `json:"population" yaml:"population"`
}

// ListCountries returns the full country reference set.
func ListCountries(db *sql.DB) ([]*Country, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectCountriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query countries")
	}
	defer rows.Close()

	list := make([]*Country, 0)
	for rows.Next() {
		c := &Country{}
		if err := rows.Scan(&c.Code, &c.Name, &c.Region, &c.Population); err != nil {
			return nil, errors.Wrap(err, "failed to scan country row")
		}
		list = append(list, c)
	}

	return list, rows.Err()
}

// GetCountry returns a single country by code, nil when unknown.
func GetCountry(db *sql.DB, code string) (*Country, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	c := &Country{}
	err := db.QueryRow(selectCountrySQL, code).Scan(&c.Code, &c.Name, &c.Region, &c.Population)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to query country: %s", code)
	}

	return c, nil
}

// GetCountryCodes returns the set of known country codes for validation.
func GetCountryCodes(db *sql.DB) (map[string]bool, error) {
	countries, err := ListCountries(db)
	if err != nil {
		return nil, err
	}

	codes := make(map[string]bool, len(countries))
	for _, c := range countries {
		codes[c.Code] = true
	}
	return codes, nil
}
