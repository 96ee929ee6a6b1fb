package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mchmarny/georisk/pkg/auth"
	"github.com/mchmarny/georisk/pkg/config"
	"github.com/mchmarny/georisk/pkg/data"
	"github.com/mchmarny/georisk/pkg/fetch"
	"github.com/mchmarny/georisk/pkg/net"
)

const (
	SourceGDELT = "gdelt"

	gdeltBaseURL    = "https://api.gdeltproject.org/api/v2/doc/doc"
	gdeltMaxRecords = "250"
	gdeltDateFormat = "20060102"
)

type gdeltArticle struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	SeenDate string `json:"seendate"`
	Domain   string `json:"domain"`
	Language string `json:"language"`
}

type gdeltResponse struct {
	Articles []gdeltArticle `json:"articles"`
}

// GDELT reads news events from the GDELT DOC 2.0 article list API.
type GDELT struct {
	fetcher *fetch.Fetcher
	baseURL string
}

// NewGDELT creates the GDELT source. An API key stored for the source
// attaches as a bearer token; without one the API is queried anonymously.
func NewGDELT(ctx context.Context, sc config.SourceConfig, homeDir string, limiter *fetch.Limiter) (*GDELT, error) {
	var hc *http.Client
	key, err := auth.GetKey(homeDir, SourceGDELT)
	switch {
	case err == nil:
		hc = net.GetOAuthClient(ctx, key)
	case errors.Is(err, auth.ErrNoKey):
		hc, err = net.GetHTTPClient()
		if err != nil {
			return nil, errors.Wrap(err, "error creating HTTP client")
		}
	default:
		return nil, errors.Wrap(err, "error reading API key")
	}

	return &GDELT{
		fetcher: fetch.New(SourceGDELT, hc, limiter, sourceTimeout(sc), sc.MaxRetries, sourceBackoff(sc)),
		baseURL: gdeltBaseURL,
	}, nil
}

func (g *GDELT) Name() string {
	return SourceGDELT
}

// Events returns articles mentioning the country over the trailing
// window. Articles without a title or seen date are skipped.
func (g *GDELT) Events(ctx context.Context, country *data.Country, windowDays int) ([]*data.RawEvent, error) {
	if country == nil {
		return nil, errors.New("country required")
	}
	if windowDays < 1 {
		windowDays = 1
	}

	params := map[string]string{
		"query":      fmt.Sprintf("country:%s sourcelang:eng", country.Code),
		"mode":       "artlist",
		"timespan":   fmt.Sprintf("%dd", windowDays),
		"maxrecords": gdeltMaxRecords,
		"format":     "json",
	}

	var res gdeltResponse
	if err := g.fetcher.GetJSON(ctx, g.baseURL, params, &res); err != nil {
		return nil, err
	}

	events := make([]*data.RawEvent, 0, len(res.Articles))
	for _, a := range res.Articles {
		if a.Title == "" || len(a.SeenDate) < 8 {
			continue
		}
		d, err := time.Parse(gdeltDateFormat, a.SeenDate[:8])
		if err != nil {
			log.Debugf("skipping article with bad seendate %q: %v", a.SeenDate, err)
			continue
		}

		events = append(events, &data.RawEvent{
			CountryCode: country.Code,
			Date:        d.Format(data.DateFormat),
			Title:       a.Title,
			Source:      SourceGDELT,
			URL:         a.URL,
			Domain:      a.Domain,
			Language:    a.Language,
		})
	}

	log.Debugf("gdelt returned %d articles for %s, kept %d", len(res.Articles), country.Code, len(events))

	return events, nil
}
