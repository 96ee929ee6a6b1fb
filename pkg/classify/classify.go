// Package classify assigns categories, sentiment, severity, and
// confidence to raw event titles. Classification is pure: the same
// title always yields the same result.
package classify

import (
	"math"
	"strings"

	"github.com/jonreiter/govader"

	"github.com/mchmarny/georisk/pkg/data"
)

type Classifier struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func New() *Classifier {
	return &Classifier{
		analyzer: govader.NewSentimentIntensityAnalyzer(),
	}
}

// Classify scores one raw event.
func (c *Classifier) Classify(ev *data.RawEvent) *data.ProcessedEvent {
	if ev == nil {
		return nil
	}

	category, confidence := categorize(ev.Title)
	sentiment := c.analyzer.PolarityScores(ev.Title).Compound

	return &data.ProcessedEvent{
		RawEventID: ev.ID,
		Category:   category,
		Sentiment:  sentiment,
		Severity:   Severity(ev.Title, sentiment),
		Confidence: confidence,
	}
}

// categorize picks the highest-priority rule with at least one keyword
// hit. Confidence is the margin between the winner's hit count and the
// strongest other rule, normalized by the larger of the two; a
// lower-priority rule with more hits pushes confidence to zero.
func categorize(title string) (string, float64) {
	strengths := make([]int, len(rules))
	for i, r := range rules {
		strengths[i] = r.strength(title)
	}

	win := -1
	for i, s := range strengths {
		if s > 0 {
			win = i
			break
		}
	}
	if win == -1 {
		return CategoryOther, 0
	}

	runnerUp := 0
	for i, s := range strengths {
		if i != win && s > runnerUp {
			runnerUp = s
		}
	}

	winStrength := strengths[win]
	margin := float64(winStrength-runnerUp) / float64(maxInt(winStrength, runnerUp))

	return rules[win].category, clamp01(margin)
}

// Severity estimates impact from negative sentiment and the number of
// conflict keywords contained in the title. Containment is substring
// based, so "wartime" counts for "war".
func Severity(title string, sentiment float64) float64 {
	lower := strings.ToLower(title)

	hits := 0
	for _, k := range rules[0].keywords {
		if strings.Contains(lower, k) {
			hits++
		}
	}

	s := 0.5 + 0.3*math.Abs(math.Min(0, sentiment)) + 0.1*float64(hits)
	return clamp01(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
