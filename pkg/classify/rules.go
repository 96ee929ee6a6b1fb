package classify

import (
	"fmt"
	"regexp"
)

// Event categories, highest classification priority first.
const (
	CategoryConflict   = "conflict"
	CategoryProtest    = "protest"
	CategoryDiplomatic = "diplomatic"
	CategoryEconomic   = "economic"
	CategoryOther      = "other"
)

// Categories lists every category a classified event can carry.
var Categories = []string{
	CategoryConflict,
	CategoryProtest,
	CategoryDiplomatic,
	CategoryEconomic,
	CategoryOther,
}

type rule struct {
	category string
	keywords []string
	patterns []*regexp.Regexp
}

// rules is the ordered classification table. The first rule with at
// least one keyword hit wins, regardless of hit counts further down.
var rules = []*rule{
	newRule(CategoryConflict,
		"attack", "violence", "fight", "battle", "war", "conflict",
		"assault", "military", "bombing", "terrorism", "insurgency"),
	newRule(CategoryProtest,
		"protest", "demonstration", "rally", "march", "strike", "riot",
		"unrest", "civil"),
	newRule(CategoryDiplomatic,
		"meeting", "summit", "negotiation", "treaty", "agreement", "talks",
		"diplomatic", "embassy", "ambassador"),
	newRule(CategoryEconomic,
		"trade", "economic", "sanctions", "embargo", "tariff", "commerce",
		"inflation", "gdp", "financial", "market"),
}

func newRule(category string, keywords ...string) *rule {
	r := &rule{
		category: category,
		keywords: keywords,
		patterns: make([]*regexp.Regexp, 0, len(keywords)),
	}
	for _, k := range keywords {
		p := regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\b`, regexp.QuoteMeta(k)))
		r.patterns = append(r.patterns, p)
	}
	return r
}

// strength counts how many of the rule's keywords appear in the text.
func (r *rule) strength(text string) int {
	hits := 0
	for _, p := range r.patterns {
		if p.MatchString(text) {
			hits++
		}
	}
	return hits
}
