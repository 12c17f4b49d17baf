package fate

import "strings"

type Category string

const (
	CategoryTojeong       Category = "tojeong"
	CategorySaju          Category = "saju"
	CategoryCompatibility Category = "compatibility"
	CategoryLove          Category = "love"
	CategoryConstellation Category = "constellation"
	CategoryMoney         Category = "money"
	CategoryHealth        Category = "health"
	CategoryCareer        Category = "career"
	CategoryStudy         Category = "study"
	CategoryRelationship  Category = "relationship"
	CategoryToday         Category = "today"
	CategoryZodiac        Category = "zodiac"
	CategoryNewYear       Category = "newyear"
)

// requirement describes what a category needs from the caller and what the
// shaped result carries back.
type requirement struct {
	subject       bool // birthDate + gender
	partner       bool // partnerBirthDate + partnerGender
	zodiac        bool
	constellation bool
	elements      bool
}

var requirements = map[Category]requirement{
	CategoryTojeong:       {subject: true},
	CategorySaju:          {subject: true, elements: true},
	CategoryCompatibility: {subject: true, partner: true, elements: true},
	CategoryLove:          {subject: true},
	CategoryConstellation: {constellation: true},
	CategoryMoney:         {subject: true},
	CategoryHealth:        {subject: true},
	CategoryCareer:        {subject: true},
	CategoryStudy:         {subject: true},
	CategoryRelationship:  {subject: true},
	CategoryToday:         {},
	CategoryZodiac:        {zodiac: true},
	CategoryNewYear:       {subject: true},
}

// Categories lists every supported category in display order.
func Categories() []Category {
	return []Category{
		CategoryTojeong, CategorySaju, CategoryCompatibility, CategoryLove,
		CategoryConstellation, CategoryMoney, CategoryHealth, CategoryCareer,
		CategoryStudy, CategoryRelationship, CategoryToday, CategoryZodiac,
		CategoryNewYear,
	}
}

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := requirements[c]
	return c, ok
}

// UsesElements reports whether the category asks for a five-element breakdown.
func (c Category) UsesElements() bool { return requirements[c].elements }

// UsesSubject reports whether the category reads the subject's birth data.
func (c Category) UsesSubject() bool { return requirements[c].subject }

type Language string

const (
	LangKorean   Language = "ko"
	LangEnglish  Language = "en"
	LangJapanese Language = "ja"
)

func Languages() []Language { return []Language{LangKorean, LangEnglish, LangJapanese} }

// ParseLanguage falls back to Korean for empty or unsupported codes.
func ParseLanguage(s string) Language {
	switch l := Language(strings.ToLower(strings.TrimSpace(s))); l {
	case LangKorean, LangEnglish, LangJapanese:
		return l
	}
	return LangKorean
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

var zodiacSigns = []string{
	"rat", "ox", "tiger", "rabbit", "dragon", "snake",
	"horse", "goat", "monkey", "rooster", "dog", "pig",
}

var constellations = []string{
	"aries", "taurus", "gemini", "cancer", "leo", "virgo",
	"libra", "scorpio", "sagittarius", "capricorn", "aquarius", "pisces",
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
