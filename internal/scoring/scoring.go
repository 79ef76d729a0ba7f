// Package scoring implements the keyword feedback policy used in static mode.
package scoring

import (
	"strings"

	"github.com/spigell/prepmate/internal/questionbank"
)

// Tier classifies a response by its keyword coverage.
type Tier string

const (
	TierExcellent   Tier = "excellent"
	TierGood        Tier = "good"
	TierExploratory Tier = "exploratory"
)

const (
	excellentRatio = 0.7
	goodRatio      = 0.4
)

var prefixes = map[Tier]string{
	TierExcellent:   "Excellent answer! You've covered the key concepts well.",
	TierGood:        "Good answer! You've touched on several important points.",
	TierExploratory: "Thank you for your response. Let's explore this topic further.",
}

// Result is the outcome of scoring one response.
type Result struct {
	Tier     Tier
	Ratio    float64
	Matched  []string
	Missing  []string
	Feedback string
}

// Rank orders tiers so that a better tier has a higher rank.
func (t Tier) Rank() int {
	switch t {
	case TierExcellent:
		return 2
	case TierGood:
		return 1
	default:
		return 0
	}
}

// TierFor maps a match ratio to a tier.
func TierFor(ratio float64) Tier {
	switch {
	case ratio >= excellentRatio:
		return TierExcellent
	case ratio >= goodRatio:
		return TierGood
	default:
		return TierExploratory
	}
}

// Score counts case-insensitive keyword substrings of response and renders
// the tier prefix, the missing keywords and the follow-up of q.
func Score(response string, q questionbank.Question) Result {
	haystack := strings.ToLower(response)

	var matched, missing []string
	for _, keyword := range q.Keywords {
		if strings.Contains(haystack, strings.ToLower(keyword)) {
			matched = append(matched, keyword)
		} else {
			missing = append(missing, keyword)
		}
	}

	total := len(q.Keywords)
	if total < 1 {
		total = 1
	}
	ratio := float64(len(matched)) / float64(total)
	tier := TierFor(ratio)

	parts := []string{prefixes[tier]}
	if len(missing) > 0 {
		parts = append(parts, "Consider discussing: "+strings.Join(missing, ", ")+".")
	}
	if q.FollowUp != "" {
		parts = append(parts, q.FollowUp)
	}

	return Result{
		Tier:     tier,
		Ratio:    ratio,
		Matched:  matched,
		Missing:  missing,
		Feedback: strings.Join(parts, " "),
	}
}
