package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/georisk/pkg/data"
)

func TestClassify_Categories(t *testing.T) {
	c := New()

	tests := []struct {
		title    string
		category string
	}{
		{"Military attack on border post", CategoryConflict},
		{"Protesters rally downtown against new law", CategoryProtest},
		{"Leaders hold summit talks on security", CategoryDiplomatic},
		{"New trade tariff announced on imports", CategoryEconomic},
		{"Local festival opens to record crowds", CategoryOther},
	}

	for _, tc := range tests {
		t.Run(tc.title, func(t *testing.T) {
			got := c.Classify(&data.RawEvent{ID: 1, Title: tc.title})
			require.NotNil(t, got)
			assert.Equal(t, tc.category, got.Category)
			assert.Equal(t, int64(1), got.RawEventID)
		})
	}
}

func TestClassify_PriorityBeatsHitCount(t *testing.T) {
	c := New()

	// protest matches twice, conflict once; conflict still wins
	got := c.Classify(&data.RawEvent{Title: "Protest march turns to violence"})
	assert.Equal(t, CategoryConflict, got.Category)
	// outmatched winner has no margin
	assert.Equal(t, 0.0, got.Confidence)
}

func TestClassify_Confidence(t *testing.T) {
	c := New()

	// single unambiguous hit
	got := c.Classify(&data.RawEvent{Title: "Bombing reported in the north"})
	assert.Equal(t, CategoryConflict, got.Category)
	assert.InDelta(t, 1.0, got.Confidence, 0.001)

	// tie between conflict and economic
	got = c.Classify(&data.RawEvent{Title: "War and trade"})
	assert.Equal(t, CategoryConflict, got.Category)
	assert.InDelta(t, 0.0, got.Confidence, 0.001)

	// no hits at all
	got = c.Classify(&data.RawEvent{Title: "Sunny weather expected"})
	assert.Equal(t, CategoryOther, got.Category)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestClassify_WordBoundaries(t *testing.T) {
	c := New()

	// "wars" and "marching" should not hit "war" or "march"
	got := c.Classify(&data.RawEvent{Title: "Warsaw hosts marching band festival"})
	assert.Equal(t, CategoryOther, got.Category)
}

func TestClassify_Sentiment(t *testing.T) {
	c := New()

	neg := c.Classify(&data.RawEvent{Title: "Deadly attack kills dozens in the capital"})
	assert.Less(t, neg.Sentiment, 0.0)
	assert.GreaterOrEqual(t, neg.Sentiment, -1.0)

	pos := c.Classify(&data.RawEvent{Title: "Historic peace agreement celebrated by all sides"})
	assert.Greater(t, pos.Sentiment, 0.0)
	assert.LessOrEqual(t, pos.Sentiment, 1.0)
}

func TestClassify_Idempotent(t *testing.T) {
	c := New()

	ev := &data.RawEvent{ID: 7, Title: "Army strikes rebel positions near the border"}
	first := c.Classify(ev)
	second := c.Classify(ev)
	assert.Equal(t, first, second)
}

func TestClassify_Nil(t *testing.T) {
	c := New()
	assert.Nil(t, c.Classify(nil))
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		sentiment float64
		want      float64
	}{
		{"neutral no keywords", "quiet day in the capital", 0, 0.5},
		{"fully negative no keywords", "grim outlook everywhere", -1, 0.8},
		{"two conflict keywords neutral", "war and battle lines drawn", 0, 0.7},
		{"positive sentiment ignored", "happy war anniversary parade", 1, 0.6},
		{"clamped at one", "war battle attack bombing violence", -1, 1.0},
		{"substring containment", "wartime economy struggles", 0, 0.6},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Severity(tc.title, tc.sentiment), 0.001)
		})
	}
}
