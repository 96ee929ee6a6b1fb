package data

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

const (
	pageSizeDefault = 100

	selectEventDetailsSQL = `SELECT
			r.id,
			r.country_code,
			r.event_date,
			r.title,
			r.source,
			r.url,
			r.domain,
			r.language,
			p.category,
			p.sentiment,
			p.severity,
			p.confidence
		FROM raw_event r
		JOIN processed_event p ON p.raw_event_id = r.id
		WHERE r.event_date >= COALESCE(?, r.event_date)
		AND r.event_date <= COALESCE(?, r.event_date)
		AND r.country_code = COALESCE(?, r.country_code)
		AND p.category = COALESCE(?, p.category)
		AND r.source = COALESCE(?, r.source)
		AND r.title LIKE COALESCE(?, r.title)
		ORDER BY r.event_date DESC, r.id
		LIMIT ? OFFSET ?
	`

	selectCategorySeriesSQL = `SELECT
			r.event_date,
			SUM(CASE WHEN p.category = 'conflict' THEN 1 ELSE 0 END) as conflict,
			SUM(CASE WHEN p.category = 'protest' THEN 1 ELSE 0 END) as protest,
			SUM(CASE WHEN p.category = 'diplomatic' THEN 1 ELSE 0 END) as diplomatic,
			SUM(CASE WHEN p.category = 'economic' THEN 1 ELSE 0 END) as economic,
			SUM(CASE WHEN p.category = 'other' THEN 1 ELSE 0 END) as other
		FROM raw_event r
		JOIN processed_event p ON p.raw_event_id = r.id
		WHERE r.country_code = ?
		AND r.event_date > ?
		AND r.event_date <= ?
		GROUP BY r.event_date
		ORDER BY 1
	`
)

// EventDetails is a classified event row for query surfaces.
type EventDetails struct {
	EventID     int64   `json:"event_id,omitempty" yaml:"event_id,omitempty"`
	CountryCode string  `json:"country,omitempty" yaml:"country,omitempty"`
	EventDate   string  `json:"event_date,omitempty" yaml:"event_date,omitempty"`
	Title       string  `json:"title,omitempty" yaml:"title,omitempty"`
	Source      string  `json:"source,omitempty" yaml:"source,omitempty"`
	URL         string  `json:"url,omitempty" yaml:"url,omitempty"`
	Domain      string  `json:"domain,omitempty" yaml:"domain,omitempty"`
	Language    string  `json:"language,omitempty" yaml:"language,omitempty"`
	Category    string  `json:"category,omitempty" yaml:"category,omitempty"`
	Sentiment   float64 `json:"sentiment" yaml:"sentiment"`
	Severity    float64 `json:"severity" yaml:"severity"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
}

type EventSearchCriteria struct {
	FromDate *string `json:"from,omitempty"`
	ToDate   *string `json:"to,omitempty"`
	Country  *string `json:"country,omitempty"`
	Category *string `json:"category,omitempty"`
	Source   *string `json:"source,omitempty"`
	Title    *string `json:"title,omitempty"`
	Page     int     `json:"page,omitempty"`
	PageSize int     `json:"page_size,omitempty"`
}

func (c EventSearchCriteria) String() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

func optionalLike(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := fmt.Sprintf("%%%s%%", *s)
	return &v
}

// SearchEvents returns classified events matching the criteria; nil
// criteria fields match everything.
func SearchEvents(db *sql.DB, q *EventSearchCriteria) ([]*EventDetails, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if q == nil {
		q = &EventSearchCriteria{}
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = pageSizeDefault
	}

	stmt, err := db.Prepare(selectEventDetailsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare event search statement")
	}

	offset := (q.Page - 1) * q.PageSize
	rows, err := stmt.Query(q.FromDate, q.ToDate, q.Country, q.Category, q.Source,
		optionalLike(q.Title), q.PageSize, offset)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "failed to execute event search statement")
	}
	defer rows.Close()

	list := make([]*EventDetails, 0)

	for rows.Next() {
		e := &EventDetails{}
		if err := rows.Scan(&e.EventID, &e.CountryCode, &e.EventDate, &e.Title, &e.Source,
			&e.URL, &e.Domain, &e.Language, &e.Category, &e.Sentiment, &e.Severity,
			&e.Confidence); err != nil {
			return nil, errors.Wrapf(err, "failed to scan row")
		}
		list = append(list, e)
	}

	return list, nil
}

// CategorySeries holds per-day event counts by category with a running
// daily-total average.
type CategorySeries struct {
	Dates      []string  `json:"dates"`
	Conflict   []int     `json:"conflict"`
	Protest    []int     `json:"protest"`
	Diplomatic []int     `json:"diplomatic"`
	Economic   []int     `json:"economic"`
	Other      []int     `json:"other"`
	Avg        []float32 `json:"avg"`
}

// GetCategorySeries returns daily category counts for a country over
// (from, to].
func GetCategorySeries(db *sql.DB, country, from, to string) (*CategorySeries, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	stmt, err := db.Prepare(selectCategorySeriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare category series statement")
	}

	rows, err := stmt.Query(country, from, to)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "failed to execute category series statement")
	}
	defer rows.Close()

	series := &CategorySeries{
		Dates:      make([]string, 0),
		Conflict:   make([]int, 0),
		Protest:    make([]int, 0),
		Diplomatic: make([]int, 0),
		Economic:   make([]int, 0),
		Other:      make([]int, 0),
		Avg:        make([]float32, 0),
	}

	var runSum float32 = 0
	var runCount int = 0
	for rows.Next() {
		var date string
		var conflict, protest, diplomatic, economic, other int
		if err := rows.Scan(&date, &conflict, &protest, &diplomatic, &economic, &other); err != nil {
			return nil, errors.Wrapf(err, "failed to scan row")
		}
		series.Dates = append(series.Dates, date)
		series.Conflict = append(series.Conflict, conflict)
		series.Protest = append(series.Protest, protest)
		series.Diplomatic = append(series.Diplomatic, diplomatic)
		series.Economic = append(series.Economic, economic)
		series.Other = append(series.Other, other)

		// running mean of the daily totals
		runCount++
		runSum += float32(conflict + protest + diplomatic + economic + other)
		series.Avg = append(series.Avg, runSum/float32(runCount))
	}

	return series, nil
}
