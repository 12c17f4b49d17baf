package fate

import (
	"math"
	"strconv"
	"strings"
)

const defaultElementScore = 50

// Elements is the five-element (wood, fire, earth, metal, water) balance.
type Elements struct {
	Wood  int `json:"wood" dynamodbav:"wood"`
	Fire  int `json:"fire" dynamodbav:"fire"`
	Earth int `json:"earth" dynamodbav:"earth"`
	Metal int `json:"metal" dynamodbav:"metal"`
	Water int `json:"water" dynamodbav:"water"`
}

// Result is the reading returned to the caller and stored with the record.
type Result struct {
	Category    Category  `json:"category" dynamodbav:"category"`
	Fortune     string    `json:"fortune" dynamodbav:"fortune"`
	Description string    `json:"description" dynamodbav:"description"`
	Year        int       `json:"year,omitempty" dynamodbav:"year,omitempty"`
	Month       int       `json:"month,omitempty" dynamodbav:"month,omitempty"`
	Day         int       `json:"day,omitempty" dynamodbav:"day,omitempty"`
	Gender      Gender    `json:"gender,omitempty" dynamodbav:"gender,omitempty"`
	Elements    *Elements `json:"elements,omitempty" dynamodbav:"elements,omitempty"`
}

// Shape merges normalized generator fields with the validated input. Birth
// data is echoed from the input, never taken from the generator.
func Shape(in *Input, fields map[string]any) Result {
	fallback := FallbackPhrase(in.Language)
	res := Result{
		Category:    in.Category,
		Fortune:     text(fields["fortune"], fallback),
		Description: text(fields["description"], fallback),
	}

	if in.Category.UsesSubject() && in.Subject != nil {
		res.Year, res.Month, res.Day = in.Subject.Year, in.Subject.Month, in.Subject.Day
		res.Gender = in.Subject.Gender
	}

	if in.Category.UsesElements() {
		scores, _ := fields["elements"].(map[string]any)
		res.Elements = &Elements{
			Wood:  score(scores["wood"]),
			Fire:  score(scores["fire"]),
			Earth: score(scores["earth"]),
			Metal: score(scores["metal"]),
			Water: score(scores["water"]),
		}
	}
	return res
}

func text(v any, fallback string) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return fallback
}

// score reads one element score. Missing or non-numeric values become 50;
// numbers are rounded and clamped to 0..100.
func score(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return defaultElementScore
		}
		f = parsed
	default:
		return defaultElementScore
	}
	if math.IsNaN(f) {
		return defaultElementScore
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}
