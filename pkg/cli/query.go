package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mchmarny/georisk/pkg/classify"
	"github.com/mchmarny/georisk/pkg/data"
)

const queryPageSizeDefault = 100

var (
	countryFlag = &cli.StringFlag{
		Name:     "country",
		Aliases:  []string{"c"},
		Usage:    "ISO alpha-2 country code",
		Required: true,
	}

	fromDateFlag = &cli.StringFlag{
		Name:  "from",
		Usage: "Start date (YYYY-MM-DD)",
	}

	toDateFlag = &cli.StringFlag{
		Name:  "to",
		Usage: "End date (YYYY-MM-DD)",
	}

	eventCountryFlag = &cli.StringFlag{
		Name:    "country",
		Aliases: []string{"c"},
		Usage:   "ISO alpha-2 country code",
	}

	eventCategoryFlag = &cli.StringFlag{
		Name:  "category",
		Usage: fmt.Sprintf("Event category [%s]", strings.Join(classify.Categories, ", ")),
	}

	eventSourceFlag = &cli.StringFlag{
		Name:  "source",
		Usage: "Event source name",
	}

	eventLikeFlag = &cli.StringFlag{
		Name:  "like",
		Usage: "Fuzzy search on event titles",
	}

	pageFlag = &cli.IntFlag{
		Name:  "page",
		Usage: "Result page, starting at 1",
		Value: 1,
	}

	pageSizeFlag = &cli.IntFlag{
		Name:  "page-size",
		Usage: "Results per page",
		Value: queryPageSizeDefault,
	}

	countriesCmd = &cli.Command{
		Name:   "countries",
		Usage:  "List the known countries",
		Action: cmdCountries,
	}

	scoresCmd = &cli.Command{
		Name:            "scores",
		HideHelpCommand: true,
		Usage:           "Query stored risk scores",
		Subcommands: []*cli.Command{
			{
				Name:    "latest",
				Usage:   "Get the most recent score for a country",
				Aliases: []string{"l"},
				Action:  cmdScoresLatest,
				Flags: []cli.Flag{
					countryFlag,
				},
			},
			{
				Name:    "history",
				Usage:   "List scores for a country over a date range",
				Aliases: []string{"h"},
				Action:  cmdScoresHistory,
				Flags: []cli.Flag{
					countryFlag,
					fromDateFlag,
					toDateFlag,
				},
			},
		},
	}

	summaryCmd = &cli.Command{
		Name:   "summary",
		Usage:  "Country profile: latest score, recent events, governance",
		Action: cmdSummary,
		Flags: []cli.Flag{
			countryFlag,
		},
	}

	eventsCmd = &cli.Command{
		Name:    "events",
		Aliases: []string{"e"},
		Usage:   "Search stored events",
		Action:  cmdEvents,
		Flags: []cli.Flag{
			eventCountryFlag,
			eventCategoryFlag,
			eventSourceFlag,
			eventLikeFlag,
			fromDateFlag,
			toDateFlag,
			pageFlag,
			pageSizeFlag,
		},
	}

	statusCmd = &cli.Command{
		Name:   "status",
		Usage:  "Show stored row counts per table",
		Action: cmdStatus,
	}
)

func optional(val string) *string {
	if val == "" || val == "undefined" {
		return nil
	}
	return &val
}

func cmdCountries(c *cli.Context) error {
	cfg := getConfig(c)

	list, err := data.ListCountries(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to list countries: %w", err)
	}
	return encode(list)
}

func cmdScoresLatest(c *cli.Context) error {
	cfg := getConfig(c)
	country := countryArg(c)

	s, err := data.GetLatestScore(cfg.DB, country)
	if err != nil {
		return fmt.Errorf("failed to query latest score: %w", err)
	}
	if s == nil {
		fmt.Fprint(os.Stdout, "{}\n")
		return nil
	}
	return encode(s)
}

func cmdScoresHistory(c *cli.Context) error {
	cfg := getConfig(c)
	country := countryArg(c)

	from := c.String(fromDateFlag.Name)
	if from == "" {
		from = historyFromDefault
	}
	to := c.String(toDateFlag.Name)
	if to == "" {
		to = historyToDefault
	}

	list, err := data.GetScoreHistory(cfg.DB, country, from, to)
	if err != nil {
		return fmt.Errorf("failed to query score history: %w", err)
	}
	return encode(list)
}

func cmdSummary(c *cli.Context) error {
	cfg := getConfig(c)
	country := countryArg(c)
	asOf := time.Now().UTC().Format(data.DateFormat)

	s, err := data.GetCountrySummary(cfg.DB, country, asOf)
	if err != nil {
		return fmt.Errorf("failed to query summary: %w", err)
	}
	return encode(s)
}

func cmdEvents(c *cli.Context) error {
	cfg := getConfig(c)

	pageSize := c.Int(pageSizeFlag.Name)
	if pageSize < 1 || pageSize > queryPageSizeDefault {
		pageSize = queryPageSizeDefault
	}

	category := c.String(eventCategoryFlag.Name)
	if category != "" && !data.Contains(classify.Categories, category) {
		return fmt.Errorf("unknown category %q, expected one of: %s",
			category, strings.Join(classify.Categories, ", "))
	}

	q := &data.EventSearchCriteria{
		Country:  optional(normalizeCountry(c.String(eventCountryFlag.Name))),
		Category: optional(category),
		Source:   optional(c.String(eventSourceFlag.Name)),
		Title:    optional(c.String(eventLikeFlag.Name)),
		FromDate: optional(c.String(fromDateFlag.Name)),
		ToDate:   optional(c.String(toDateFlag.Name)),
		Page:     c.Int(pageFlag.Name),
		PageSize: pageSize,
	}

	slog.Debug("searching events", "criteria", q)

	list, err := data.SearchEvents(cfg.DB, q)
	if err != nil {
		return fmt.Errorf("failed to search events: %w", err)
	}
	return encode(list)
}

func cmdStatus(c *cli.Context) error {
	cfg := getConfig(c)

	state, err := data.GetDataState(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to query data state: %w", err)
	}
	return encode(state)
}

func countryArg(c *cli.Context) string {
	return normalizeCountry(c.String(countryFlag.Name))
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
