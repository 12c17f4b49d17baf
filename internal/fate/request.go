package fate

import (
	"fmt"
	"strings"
	"time"
)

// Request is the body accepted by POST /fate.
type Request struct {
	BirthDate        string `json:"birthDate,omitempty"`
	BirthTime        string `json:"birthTime,omitempty"`
	Gender           string `json:"gender,omitempty"`
	Language         string `json:"language,omitempty"`
	Category         string `json:"category"`
	PartnerBirthDate string `json:"partnerBirthDate,omitempty"`
	PartnerBirthTime string `json:"partnerBirthTime,omitempty"`
	PartnerGender    string `json:"partnerGender,omitempty"`
	ZodiacSign       string `json:"zodiacSign,omitempty"`
	ZodiacYear       string `json:"zodiacYear,omitempty"` // older web clients send the sign here
	Constellation    string `json:"constellation,omitempty"`
}

// Person is a parsed set of birth data.
type Person struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	HasTime bool
	Gender  Gender
}

// Input is a Request that passed validation.
type Input struct {
	Category      Category
	Language      Language
	Subject       *Person
	Partner       *Person
	ZodiacSign    string
	Constellation string
}

// ValidationError reports a request that cannot be served. Missing lists the
// absent fields by their wire names.
type ValidationError struct {
	Category string
	Missing  []string
	Reason   string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required fields for category %q: %s", e.Category, strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// Validate checks the category-specific required fields and parses birth data.
func Validate(r Request) (*Input, error) {
	cat, ok := ParseCategory(r.Category)
	if !ok {
		if strings.TrimSpace(r.Category) == "" {
			return nil, &ValidationError{Reason: "category is required"}
		}
		return nil, &ValidationError{Category: r.Category, Reason: fmt.Sprintf("unsupported category %q", r.Category)}
	}
	req := requirements[cat]

	in := &Input{Category: cat, Language: ParseLanguage(r.Language)}

	sign := strings.ToLower(strings.TrimSpace(r.ZodiacSign))
	if sign == "" {
		sign = strings.ToLower(strings.TrimSpace(r.ZodiacYear))
	}
	constellation := strings.ToLower(strings.TrimSpace(r.Constellation))

	var missing []string
	need := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if req.subject {
		need("birthDate", r.BirthDate)
		need("gender", r.Gender)
	}
	if req.partner {
		need("partnerBirthDate", r.PartnerBirthDate)
		need("partnerGender", r.PartnerGender)
	}
	if req.zodiac {
		need("zodiacSign", sign)
	}
	if req.constellation {
		need("constellation", constellation)
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Category: string(cat), Missing: missing}
	}

	var err error
	if in.Subject, err = parsePerson("birthDate", r.BirthDate, "birthTime", r.BirthTime, "gender", r.Gender); err != nil {
		return nil, err
	}
	if req.partner {
		if in.Partner, err = parsePerson("partnerBirthDate", r.PartnerBirthDate, "partnerBirthTime", r.PartnerBirthTime, "partnerGender", r.PartnerGender); err != nil {
			return nil, err
		}
	}

	if sign != "" {
		if !contains(zodiacSigns, sign) {
			return nil, &ValidationError{Category: string(cat), Reason: fmt.Sprintf("unknown zodiacSign %q", sign)}
		}
		in.ZodiacSign = sign
	}
	if constellation != "" {
		if !contains(constellations, constellation) {
			return nil, &ValidationError{Category: string(cat), Reason: fmt.Sprintf("unknown constellation %q", constellation)}
		}
		in.Constellation = constellation
	}
	return in, nil
}

// parsePerson returns nil when no birth date was given.
func parsePerson(dateField, date, timeField, tm, genderField, gender string) (*Person, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, nil
	}
	// 2006-01-02T15:04:05Z from date pickers: keep the calendar day.
	if len(date) > 10 && date[10] == 'T' {
		date = date[:10]
	}
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("%s must be YYYY-MM-DD", dateField)}
	}
	p := &Person{Year: d.Year(), Month: int(d.Month()), Day: d.Day()}

	if tm = strings.TrimSpace(tm); tm != "" {
		t, err := parseClock(tm)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("%s must be HH:MM", timeField)}
		}
		p.Hour, p.Minute, p.HasTime = t.Hour(), t.Minute(), true
	}

	switch g := Gender(strings.ToLower(strings.TrimSpace(gender))); g {
	case "":
	case GenderMale, GenderFemale:
		p.Gender = g
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("%s must be male or female", genderField)}
	}
	return p, nil
}

func parseClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err == nil {
		return t, nil
	}
	return time.Parse("15:04:05", s)
}
