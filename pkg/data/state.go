package data

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

var (
	stateQueries = map[string]string{
		"countries":        "SELECT COUNT(*) FROM country",
		"raw_events":       "SELECT COUNT(*) FROM raw_event",
		"processed_events": "SELECT COUNT(*) FROM processed_event",
		"indicators":       "SELECT COUNT(*) FROM indicator",
		"feature_vectors":  "SELECT COUNT(*) FROM feature_vector",
		"risk_scores":      "SELECT COUNT(*) FROM risk_score",
	}

	insertTaskStateSQL = `INSERT INTO task_state (task, last_run) VALUES (?, ?)
		ON CONFLICT(task) DO UPDATE SET last_run = ?
	`

	selectTaskStateSQL = `SELECT last_run FROM task_state WHERE task = ?`
)

// GetTaskRun returns the last recorded run time for a task, zero time
// when the task has never run.
func GetTaskRun(db *sql.DB, task string) (time.Time, error) {
	if db == nil {
		return time.Time{}, errDBNotInitialized
	}

	var raw string
	err := db.QueryRow(selectTaskStateSQL, task).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, errors.Wrapf(err, "failed to query task state: %s", task)
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse task state time: %s", raw)
	}

	return t, nil
}

// SaveTaskRun records the last run time for a task.
func SaveTaskRun(db *sql.DB, task string, at time.Time) error {
	if db == nil {
		return errDBNotInitialized
	}
	if task == "" {
		return errors.New("task is required")
	}

	v := at.UTC().Format(time.RFC3339)
	if _, err := db.Exec(insertTaskStateSQL, task, v, v); err != nil {
		return errors.Wrapf(err, "failed to save task state: %s", task)
	}

	return nil
}

// GetDataState returns row counts for the main tables.
func GetDataState(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64)
	for k, q := range stateQueries {
		var count int64
		if err := db.QueryRow(q).Scan(&count); err != nil {
			if err == sql.ErrNoRows {
				state[k] = 0
				continue
			}
			return nil, errors.Wrapf(err, "error getting %s count", k)
		}
		state[k] = count
	}

	return state, nil
}
