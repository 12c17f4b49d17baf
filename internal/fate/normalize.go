package fate

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Strategy is one step of the recovery chain. Apply is pure: it inspects the
// raw generator text and either returns a decoded JSON object or an error.
type Strategy struct {
	Name  string
	Apply func(raw string) (map[string]any, error)
}

const (
	StrategyDirect       = "direct"
	StrategyBraceRepair  = "brace_repair"
	StrategyQuoteRepair  = "quote_repair"
	StrategyLaterObject  = "later_object"
	StrategyFieldExtract = "field_extract"
)

// RecoveryChain is tried in order; the first strategy that yields an object
// wins. The last strategy never fails.
var RecoveryChain = []Strategy{
	{Name: StrategyDirect, Apply: parseDirect},
	{Name: StrategyBraceRepair, Apply: repairBraces},
	{Name: StrategyQuoteRepair, Apply: repairQuotes},
	{Name: StrategyLaterObject, Apply: laterObject},
	{Name: StrategyFieldExtract, Apply: extractFields},
}

// Normalized is the outcome of Normalize.
type Normalized struct {
	Fields   map[string]any
	Strategy string
}

// Normalize coerces free-form generator output into a JSON object whose
// "fortune" and "description" entries are non-empty strings. It never fails:
// fields that cannot be recovered are set to fallback.
func Normalize(raw, fallback string) Normalized {
	if strings.TrimSpace(fallback) == "" {
		fallback = FallbackPhrase(LangKorean)
	}
	for _, s := range RecoveryChain {
		obj, err := s.Apply(raw)
		if err != nil || obj == nil {
			continue
		}
		ensureText(obj, "fortune", fallback)
		ensureText(obj, "description", fallback)
		return Normalized{Fields: obj, Strategy: s.Name}
	}
	// Unreachable while extractFields terminates the chain.
	return Normalized{
		Fields:   map[string]any{"fortune": fallback, "description": fallback},
		Strategy: StrategyFieldExtract,
	}
}

func ensureText(obj map[string]any, key, fallback string) {
	if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
		obj[key] = strings.TrimSpace(s)
		return
	}
	obj[key] = fallback
}

var fenceRe = regexp.MustCompile("(?i)^```[a-z]*\\s*|\\s*```$")

// stripFences removes a leading ```json (or bare ```) and a trailing ```.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
}

// candidate slices the first JSON object out of raw. When the object is never
// closed (the generator ran out of tokens) everything from the first brace on
// is returned.
func candidate(raw string) string {
	s := stripFences(raw)
	start := strings.Index(s, "{")
	if start < 0 {
		return s
	}
	return sliceObject(s, start)
}

// sliceObject returns the object opened at s[start], or the rest of s when it
// never closes.
func sliceObject(s string, start int) string {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

var errNotObject = errors.New("not a JSON object")

func parseObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotObject
	}
	return obj, nil
}

func isTruncated(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unexpected end of JSON input")
}

func parseDirect(raw string) (map[string]any, error) {
	return parseObject(candidate(raw))
}

func repairBraces(raw string) (map[string]any, error) {
	c := candidate(raw)
	obj, err := parseObject(c)
	if err == nil {
		return obj, nil
	}
	if !isTruncated(err) {
		return nil, err
	}
	return parseObject(closeBraces(c))
}

// laterObject retries from each later opening brace, for output whose prose
// uses a brace before the real object ("Format: {fortune}\n{...}"). Only an
// object carrying fortune or description counts, so a nested elements object
// is never taken for the reading.
func laterObject(raw string) (map[string]any, error) {
	s := stripFences(raw)
	first := strings.Index(s, "{")
	if first < 0 {
		return nil, errNotObject
	}
	for i := first + 1; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		c := sliceObject(s, i)
		obj, err := parseObject(c)
		if isTruncated(err) {
			obj, err = parseObject(closeBraces(c))
		}
		if err != nil {
			continue
		}
		_, hasFortune := obj["fortune"]
		_, hasDescription := obj["description"]
		if hasFortune || hasDescription {
			return obj, nil
		}
	}
	return nil, errNotObject
}

func repairQuotes(raw string) (map[string]any, error) {
	c := candidate(raw)
	if countQuotes(c)%2 == 0 {
		return nil, errors.New("quotes are balanced")
	}
	return parseObject(closeBraces(c + `"`))
}

// closeBraces appends the closing braces an object is short of, after
// dropping a dangling comma.
func closeBraces(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimRight(s, ",")
	open, closed := 0, 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			open++
		case '}':
			closed++
		}
	}
	if open > closed {
		s += strings.Repeat("}", open-closed)
	}
	return s
}

// countQuotes counts double quotes that are not escaped.
func countQuotes(s string) int {
	n := 0
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			n++
		}
	}
	return n
}

var (
	fortuneRe             = regexp.MustCompile(`"fortune"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	fortuneUnterminatedRe = regexp.MustCompile(`"fortune"\s*:\s*"((?:[^"\\]|\\.)*)$`)
	descriptionRe         = regexp.MustCompile(`"description"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	descUnterminatedRe    = regexp.MustCompile(`"description"\s*:\s*"((?:[^"\\]|\\.)*)$`)
)

// extractFields is the last resort: it pulls fortune and description out by
// pattern and always returns an object, possibly empty.
func extractFields(raw string) (map[string]any, error) {
	s := stripFences(raw)
	obj := map[string]any{}
	if v, ok := firstMatch(s, fortuneRe, fortuneUnterminatedRe); ok {
		obj["fortune"] = v
	}
	if v, ok := firstMatch(s, descriptionRe, descUnterminatedRe); ok {
		obj["description"] = v
	}
	return obj, nil
}

func firstMatch(s string, res ...*regexp.Regexp) (string, bool) {
	for _, re := range res {
		m := re.FindStringSubmatch(s)
		if len(m) < 2 {
			continue
		}
		v := strings.TrimSpace(unescape(m[1]))
		if v != "" {
			return v, true
		}
	}
	return "", false
}

// unescape decodes JSON string escapes, keeping the raw text if it is not a
// valid JSON string body (for example a trailing lone backslash).
func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return strings.TrimSuffix(s, `\`)
	}
	return out
}
