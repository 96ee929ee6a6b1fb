package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mchmarny/georisk/pkg/data"
)

const (
	historyFromDefault = "0001-01-01"
	historyToDefault   = "9999-12-31"

	seriesWindowDays = 30
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathCountry(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.PathValue("country")))
}

func healthAPIHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
	})
}

func countriesAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		list, err := data.ListCountries(db)
		if err != nil {
			slog.Error("failed to list countries", "error", err)
			writeError(w, http.StatusInternalServerError, "error listing countries")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func latestScoreAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		country := pathCountry(r)
		s, err := data.GetLatestScore(db, country)
		if err != nil {
			slog.Error("failed to get latest score", "country", country, "error", err)
			writeError(w, http.StatusInternalServerError, "error querying score")
			return
		}
		if s == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no score data for %s", country))
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func scoreHistoryAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		country := pathCountry(r)

		from, ok := dateParam(w, r, "from", historyFromDefault)
		if !ok {
			return
		}
		to, ok := dateParam(w, r, "to", historyToDefault)
		if !ok {
			return
		}

		list, err := data.GetScoreHistory(db, country, from, to)
		if err != nil {
			slog.Error("failed to get score history", "country", country, "error", err)
			writeError(w, http.StatusInternalServerError, "error querying score history")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func summaryAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		country := pathCountry(r)
		asOf := time.Now().UTC().Format(data.DateFormat)

		s, err := data.GetCountrySummary(db, country, asOf)
		if err != nil {
			if errors.Is(err, data.ErrValidation) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("unknown country %s", country))
				return
			}
			slog.Error("failed to get country summary", "country", country, "error", err)
			writeError(w, http.StatusInternalServerError, "error querying summary")
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func eventSeriesAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		country := pathCountry(r)

		to, ok := dateParam(w, r, "to", time.Now().UTC().Format(data.DateFormat))
		if !ok {
			return
		}
		// dateParam guarantees to parses
		ref, _ := time.Parse(data.DateFormat, to)
		from, ok := dateParam(w, r, "from", ref.AddDate(0, 0, -seriesWindowDays).Format(data.DateFormat))
		if !ok {
			return
		}

		s, err := data.GetCategorySeries(db, country, from, to)
		if err != nil {
			slog.Error("failed to get event series", "country", country, "error", err)
			writeError(w, http.StatusInternalServerError, "error querying event series")
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// dateParam reads an optional YYYY-MM-DD query parameter, writing a
// 400 response and returning ok=false when the value does not parse.
func dateParam(w http.ResponseWriter, r *http.Request, name, fallback string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	if _, err := time.Parse(data.DateFormat, v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s date: %s", name, v))
		return "", false
	}
	return v, true
}
