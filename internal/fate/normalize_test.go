package fate

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFallback = "analysis complete"

func TestNormalize_WellFormed(t *testing.T) {
	inputs := []string{
		`{"fortune":"A","description":"B"}`,
		"```json\n{\"fortune\":\"A\",\"description\":\"B\"}\n```",
		"```\n{\"fortune\":\"A\",\"description\":\"B\"}\n```",
		"Sure! Here is your reading:\n{\"fortune\":\"A\",\"description\":\"B\"}\nEnjoy.",
	}
	for _, raw := range inputs {
		got := Normalize(raw, testFallback)
		assert.Equal(t, StrategyDirect, got.Strategy, raw)
		if diff := cmp.Diff(map[string]any{"fortune": "A", "description": "B"}, got.Fields); diff != "" {
			t.Errorf("fields for %q (-want +got):\n%s", raw, diff)
		}
	}
}

func TestNormalize_BracesInsideStrings(t *testing.T) {
	raw := `{"fortune":"use {curly} words","description":"B"} trailing }`
	got := Normalize(raw, testFallback)
	assert.Equal(t, StrategyDirect, got.Strategy)
	assert.Equal(t, "use {curly} words", got.Fields["fortune"])
}

func TestNormalize_MissingClosingBrace(t *testing.T) {
	got := Normalize(`{"fortune":"A","description":"B"`, testFallback)
	assert.Equal(t, StrategyBraceRepair, got.Strategy)
	assert.Equal(t, "A", got.Fields["fortune"])
	assert.Equal(t, "B", got.Fields["description"])
}

func TestNormalize_NestedTruncation(t *testing.T) {
	raw := `{"fortune":"A","description":"B","elements":{"wood":20,"fire":30,`
	got := Normalize(raw, testFallback)
	assert.Equal(t, StrategyBraceRepair, got.Strategy)
	elements, ok := got.Fields["elements"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(30), elements["fire"])
}

func TestNormalize_UnterminatedString(t *testing.T) {
	got := Normalize(`{"fortune":"A","description":"cut off mid sent`, testFallback)
	assert.Equal(t, StrategyQuoteRepair, got.Strategy)
	assert.Equal(t, "A", got.Fields["fortune"])
	assert.Equal(t, "cut off mid sent", got.Fields["description"])
}

func TestNormalize_LastResort(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fortune  string
		strategy string
	}{
		{"unterminated with brace", `noise {"fortune": "Good luck`, "Good luck", StrategyQuoteRepair},
		{"unterminated without brace", `garbage "fortune": "Good luck`, "Good luck", StrategyFieldExtract},
		{"broken structure", `{"fortune": "Be bold", "description": "Go" oops, ]`, "Be bold", StrategyFieldExtract},
		{"plain prose", "The stars are quiet today.", testFallback, StrategyFieldExtract},
		{"empty", "", testFallback, StrategyFieldExtract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw, testFallback)
			assert.Equal(t, tt.strategy, got.Strategy)
			assert.Equal(t, tt.fortune, got.Fields["fortune"])
			assert.NotEmpty(t, got.Fields["description"])

			_, err := json.Marshal(got.Fields)
			require.NoError(t, err)
		})
	}
}

func TestNormalize_BraceInProseBeforeObject(t *testing.T) {
	raw := "Format: {fortune}\n{\"fortune\":\"F\",\"description\":\"D\",\"elements\":{\"wood\":10,\"fire\":20}}"
	got := Normalize(raw, testFallback)
	assert.Equal(t, StrategyLaterObject, got.Strategy)
	want := map[string]any{
		"fortune":     "F",
		"description": "D",
		"elements":    map[string]any{"wood": 10.0, "fire": 20.0},
	}
	if diff := cmp.Diff(want, got.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}

	// A truncated object after the prose brace is still closed.
	got = Normalize("Use {braces}: {\"fortune\":\"F\",\"elements\":{\"wood\":1}", testFallback)
	assert.Equal(t, StrategyLaterObject, got.Strategy)
	assert.Equal(t, "F", got.Fields["fortune"])
	assert.Equal(t, map[string]any{"wood": 1.0}, got.Fields["elements"])
}

func TestLaterObject_IgnoresNestedObjectsWithoutReading(t *testing.T) {
	_, err := laterObject(`{broken "x": {"wood": 10}}`)
	assert.Error(t, err)
}

func TestNormalize_EmptyFieldsGetFallback(t *testing.T) {
	got := Normalize(`{"fortune":"  ","description":42}`, testFallback)
	assert.Equal(t, StrategyDirect, got.Strategy)
	assert.Equal(t, testFallback, got.Fields["fortune"])
	assert.Equal(t, testFallback, got.Fields["description"])
}

func TestNormalize_DefaultFallback(t *testing.T) {
	got := Normalize("nothing useful", "")
	assert.Equal(t, FallbackPhrase(LangKorean), got.Fields["fortune"])
}

func TestNormalize_ArrayIsNotAnObject(t *testing.T) {
	got := Normalize(`["fortune","A"]`, testFallback)
	assert.Equal(t, StrategyFieldExtract, got.Strategy)
	assert.Equal(t, testFallback, got.Fields["fortune"])
}

func TestExtractFields_Unescapes(t *testing.T) {
	obj, err := extractFields(`{"fortune": "line one\nline \"two\"", "description": "x" ,,,`)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline \"two\"", obj["fortune"])
	assert.Equal(t, "x", obj["description"])
}

func TestCloseBraces(t *testing.T) {
	assert.Equal(t, `{"a":{"b":1}}`, closeBraces(`{"a":{"b":1},`))
	assert.Equal(t, `{"a":"}"}`, closeBraces(`{"a":"}"`))
	assert.Equal(t, `{}`, closeBraces(`{}`))
}
