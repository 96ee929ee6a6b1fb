package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mchmarny/georisk/pkg/config"
	"github.com/mchmarny/georisk/pkg/data"
	"github.com/mchmarny/georisk/pkg/fetch"
	"github.com/mchmarny/georisk/pkg/net"
)

const (
	SourceWorldBank = "worldbank"

	worldBankBaseURL = "https://api.worldbank.org/v2"
	worldBankPerPage = "500"
)

// IndicatorNames maps World Bank indicator codes to the canonical
// names used across features and summaries.
var IndicatorNames = map[string]string{
	"PV.EST":            "political_stability",
	"GE.EST":            "government_effectiveness",
	"RQ.EST":            "regulatory_quality",
	"RL.EST":            "rule_of_law",
	"CC.EST":            "control_of_corruption",
	"NY.GDP.MKTP.KD.ZG": "gdp_growth",
	"FP.CPI.TOTL.ZG":    "inflation",
	"GC.DOD.TOTL.GD.ZS": "debt_to_gdp",
	"NE.TRD.GNFS.ZS":    "trade_gdp_ratio",
}

// IndicatorCodes returns all tracked World Bank indicator codes.
func IndicatorCodes() []string {
	codes := make([]string, 0, len(IndicatorNames))
	for code := range IndicatorNames {
		codes = append(codes, code)
	}
	return codes
}

type worldBankRecord struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// WorldBank reads yearly macro indicators from the World Bank v2 API.
type WorldBank struct {
	fetcher *fetch.Fetcher
	baseURL string
}

func NewWorldBank(sc config.SourceConfig, limiter *fetch.Limiter) (*WorldBank, error) {
	hc, err := net.GetHTTPClient()
	if err != nil {
		return nil, errors.Wrap(err, "error creating HTTP client")
	}

	return &WorldBank{
		fetcher: fetch.New(SourceWorldBank, hc, limiter, sourceTimeout(sc), sc.MaxRetries, sourceBackoff(sc)),
		baseURL: worldBankBaseURL,
	}, nil
}

func (w *WorldBank) Name() string {
	return SourceWorldBank
}

// Indicators returns yearly observations for each code over the year
// range. Records with a null value are skipped.
func (w *WorldBank) Indicators(ctx context.Context, country *data.Country, codes []string, years YearRange) ([]*data.Indicator, error) {
	if country == nil {
		return nil, errors.New("country required")
	}

	list := make([]*data.Indicator, 0)
	for _, code := range codes {
		recs, err := w.indicator(ctx, country, code, years)
		if err != nil {
			return nil, err
		}
		list = append(list, recs...)
	}
	return list, nil
}

func (w *WorldBank) indicator(ctx context.Context, country *data.Country, code string, years YearRange) ([]*data.Indicator, error) {
	url := fmt.Sprintf("%s/country/%s/indicator/%s", w.baseURL, strings.ToLower(country.Code), code)
	params := map[string]string{
		"format":   "json",
		"date":     fmt.Sprintf("%d:%d", years.From, years.To),
		"per_page": worldBankPerPage,
	}

	// response is a two element array: [metadata, records]
	var envelope []json.RawMessage
	if err := w.fetcher.GetJSON(ctx, url, params, &envelope); err != nil {
		return nil, err
	}
	if len(envelope) < 2 {
		return nil, errors.Wrapf(fetch.ErrSourceUnavailable, "%s: unexpected response shape for %s", SourceWorldBank, code)
	}

	var records []worldBankRecord
	if err := json.Unmarshal(envelope[1], &records); err != nil {
		return nil, errors.Wrapf(fetch.ErrSourceUnavailable, "%s: parsing %s records: %v", SourceWorldBank, code, err)
	}

	list := make([]*data.Indicator, 0, len(records))
	for _, r := range records {
		if r.Value == nil {
			continue
		}
		year, err := strconv.Atoi(r.Date)
		if err != nil {
			log.Debugf("skipping record with non-annual date %q for %s", r.Date, code)
			continue
		}
		list = append(list, &data.Indicator{
			CountryCode:   country.Code,
			IndicatorCode: code,
			Year:          year,
			Value:         *r.Value,
		})
	}

	log.Debugf("worldbank returned %d records for %s/%s, kept %d", len(records), country.Code, code, len(list))

	return list, nil
}
