package data

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

const (
	importBatchSize = 500

	titleMaxLen    = 1000
	urlMaxLen      = 500
	domainMaxLen   = 100
	languageMaxLen = 10

	insertEventSQL = `INSERT INTO raw_event (
			country_code, event_date, title, title_norm, source, url, domain, language, tone
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(country_code, event_date, title_norm) DO NOTHING
	`

	selectNearDuplicateSQL = `SELECT COUNT(1) FROM raw_event
		WHERE country_code = ?
		AND title_norm = ?
		AND event_date BETWEEN date(?, '-1 day') AND date(?, '+1 day')
	`
)

// RawEvent is one ingested event record, immutable once stored.
type RawEvent struct {
	ID          int64    `json:"id,omitempty" yaml:"id,omitempty"`
	CountryCode string   `json:"country" yaml:"country"`
	Date        string   `json:"date" yaml:"date"`
	Title       string   `json:"title" yaml:"title"`
	TitleNorm   string   `json:"-" yaml:"-"`
	Source      string   `json:"source" yaml:"source"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Domain      string   `json:"domain,omitempty" yaml:"domain,omitempty"`
	Language    string   `json:"language,omitempty" yaml:"language,omitempty"`
	Tone        *float64 `json:"tone,omitempty" yaml:"tone,omitempty"`
}

// EventImportCounts summarizes one import pass.
type EventImportCounts struct {
	Fetched    int `json:"fetched" yaml:"fetched"`
	Inserted   int `json:"inserted" yaml:"inserted"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Invalid    int `json:"invalid" yaml:"invalid"`
}

// EventImporter validates, deduplicates, and batch-writes raw events.
// Two records with the same (country, normalized title) within a day of
// each other collapse to one row.
type EventImporter struct {
	mu     sync.Mutex
	db     *sql.DB
	codes  map[string]bool
	list   []*RawEvent
	counts EventImportCounts
}

func NewEventImporter(db *sql.DB) (*EventImporter, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	codes, err := GetCountryCodes(db)
	if err != nil {
		return nil, errors.Wrap(err, "error loading country codes")
	}

	return &EventImporter{
		db:    db,
		codes: codes,
		list:  make([]*RawEvent, 0),
	}, nil
}

// Add validates and buffers one raw event. Validation failures return
// ErrValidation after being counted; they never leave a row behind.
func (e *EventImporter) Add(raw *RawEvent) error {
	if raw == nil {
		return errors.New("raw event required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.counts.Fetched++

	if err := e.normalize(raw); err != nil {
		e.counts.Invalid++
		log.Debugf("dropping invalid event (%s): %v", raw.Title, err)
		return err
	}

	dup, err := e.isDuplicate(raw)
	if err != nil {
		return errors.Wrap(err, "error checking for duplicate event")
	}
	if dup {
		e.counts.Duplicates++
		return nil
	}

	e.list = append(e.list, raw)

	if len(e.list) >= importBatchSize {
		if err := e.flush(); err != nil {
			return errors.Wrap(err, "error flushing events")
		}
	}
	return nil
}

// Flush writes any buffered events and returns the running counts.
func (e *EventImporter) Flush() (EventImportCounts, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.flush(); err != nil {
		return e.counts, err
	}
	return e.counts, nil
}

// Counts returns the running counters without flushing.
func (e *EventImporter) Counts() EventImportCounts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts
}

func (e *EventImporter) normalize(raw *RawEvent) error {
	raw.CountryCode = strings.ToUpper(strings.TrimSpace(raw.CountryCode))
	if !e.codes[raw.CountryCode] {
		return errors.Wrapf(ErrValidation, "unknown country: %q", raw.CountryCode)
	}

	if raw.Date == "" {
		return errors.Wrap(ErrValidation, "missing event date")
	}
	if _, err := time.Parse(DateFormat, raw.Date); err != nil {
		return errors.Wrapf(ErrValidation, "unparseable event date: %q", raw.Date)
	}

	raw.Title = strings.TrimSpace(raw.Title)
	if raw.Title == "" {
		return errors.Wrap(ErrValidation, "missing title")
	}

	raw.Title = truncate(raw.Title, titleMaxLen)
	raw.URL = truncate(raw.URL, urlMaxLen)
	raw.Domain = truncate(raw.Domain, domainMaxLen)
	raw.Language = truncate(raw.Language, languageMaxLen)
	raw.TitleNorm = NormalizeTitle(raw.Title)

	return nil
}

func (e *EventImporter) isDuplicate(raw *RawEvent) (bool, error) {
	for _, b := range e.list {
		if b.CountryCode == raw.CountryCode && b.TitleNorm == raw.TitleNorm && withinOneDay(b.Date, raw.Date) {
			return true, nil
		}
	}

	var count int
	err := e.db.QueryRow(selectNearDuplicateSQL, raw.CountryCode, raw.TitleNorm, raw.Date, raw.Date).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "failed to query near duplicates")
	}
	return count > 0, nil
}

// flush writes the buffered batch. Callers must hold the mutex.
func (e *EventImporter) flush() error {
	if len(e.list) == 0 {
		return nil
	}

	start := time.Now()

	events := e.list
	e.list = make([]*RawEvent, 0)

	log.Debugf("flushing %d events to db...", len(events))

	stmt, err := e.db.Prepare(insertEventSQL)
	if err != nil {
		return errors.Wrap(err, "failed to prepare event insert statement")
	}

	tx, err := e.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	inserted := 0
	for i, ev := range events {
		res, err := tx.Stmt(stmt).Exec(ev.CountryCode, ev.Date, ev.Title, ev.TitleNorm,
			ev.Source, ev.URL, ev.Domain, ev.Language, toNullFloat(ev.Tone))
		if err != nil {
			rollbackTransaction(tx)
			return errors.Wrapf(err, "error inserting event[%d]: %s/%s", i, ev.CountryCode, ev.Date)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		} else {
			e.counts.Duplicates++
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	e.counts.Inserted += inserted

	log.Debugf("successfully flushed in %s", time.Since(start).String())

	return nil
}

func rollbackTransaction(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		log.Errorf("error rolling back transaction: %s", err)
	}
}

// NormalizeTitle case-folds and collapses whitespace for dedup matching.
func NormalizeTitle(title string) string {
	folded := cases.Fold().String(title)
	return strings.TrimSpace(spaceRegEx.ReplaceAllString(folded, " "))
}

func withinOneDay(a, b string) bool {
	ta, errA := time.Parse(DateFormat, a)
	tb, errB := time.Parse(DateFormat, b)
	if errA != nil || errB != nil {
		return false
	}

	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return diff <= 24*time.Hour
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
