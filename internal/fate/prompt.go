package fate

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

type languageDoc struct {
	Persona             string            `yaml:"persona"`
	SubjectHeader       string            `yaml:"subjectHeader"`
	PartnerHeader       string            `yaml:"partnerHeader"`
	BirthDate           string            `yaml:"birthDate"`
	BirthTime           string            `yaml:"birthTime"`
	Gender              string            `yaml:"gender"`
	Zodiac              string            `yaml:"zodiac"`
	Constellation       string            `yaml:"constellation"`
	Today               string            `yaml:"today"`
	Genders             map[string]string `yaml:"genders"`
	ZodiacLabels        map[string]string `yaml:"zodiacLabels"`
	ConstellationLabels map[string]string `yaml:"constellationLabels"`
	Output              string            `yaml:"output"`
	OutputElements      string            `yaml:"outputElements"`
	Fallback            string            `yaml:"fallback"`
}

type templatesDoc struct {
	Languages  map[Language]languageDoc           `yaml:"languages"`
	Categories map[Category]map[Language]string `yaml:"categories"`
}

// languagePack holds the parsed line templates for one language.
type languagePack struct {
	doc           languageDoc
	birthDate     *template.Template
	birthTime     *template.Template
	gender        *template.Template
	zodiac        *template.Template
	constellation *template.Template
	today         *template.Template
}

type templateKey struct {
	category Category
	language Language
}

// templateTable is the (category, language) -> template lookup.
type templateTable struct {
	languages map[Language]*languagePack
	tasks     map[templateKey]string
}

var table = mustLoadTable(templatesYAML)

func mustLoadTable(raw []byte) *templateTable {
	t, err := loadTable(raw)
	if err != nil {
		panic(fmt.Sprintf("fate: prompt templates: %v", err))
	}
	return t
}

func loadTable(raw []byte) (*templateTable, error) {
	var doc templatesDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	t := &templateTable{
		languages: map[Language]*languagePack{},
		tasks:     map[templateKey]string{},
	}
	for _, lang := range Languages() {
		ld, ok := doc.Languages[lang]
		if !ok {
			return nil, fmt.Errorf("language %q missing", lang)
		}
		p := &languagePack{doc: ld}
		lines := []struct {
			dst  **template.Template
			name string
			src  string
		}{
			{&p.birthDate, "birthDate", ld.BirthDate},
			{&p.birthTime, "birthTime", ld.BirthTime},
			{&p.gender, "gender", ld.Gender},
			{&p.zodiac, "zodiac", ld.Zodiac},
			{&p.constellation, "constellation", ld.Constellation},
			{&p.today, "today", ld.Today},
		}
		for _, l := range lines {
			if strings.TrimSpace(l.src) == "" {
				return nil, fmt.Errorf("%s.%s is empty", lang, l.name)
			}
			tpl, err := template.New(string(lang) + "." + l.name).Option("missingkey=error").Parse(l.src)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", lang, l.name, err)
			}
			*l.dst = tpl
		}
		if ld.Output == "" || ld.OutputElements == "" || ld.Fallback == "" {
			return nil, fmt.Errorf("%s: output instructions and fallback are required", lang)
		}
		t.languages[lang] = p

		for _, c := range Categories() {
			task := strings.TrimSpace(doc.Categories[c][lang])
			if task == "" {
				return nil, fmt.Errorf("category %q has no %s template", c, lang)
			}
			t.tasks[templateKey{c, lang}] = task
		}
	}
	return t, nil
}

// PromptInput is everything the prompt depends on. Today is a YYYY-MM-DD
// reference date used by day- and year-scoped categories; passing it in keeps
// BuildPrompt free of clock reads.
type PromptInput struct {
	Category      Category
	Language      Language
	Subject       *Person
	Partner       *Person
	ZodiacSign    string
	Constellation string
	Today         string
}

// NewPromptInput derives a PromptInput from a validated request.
func NewPromptInput(in *Input, today string) PromptInput {
	return PromptInput{
		Category:      in.Category,
		Language:      in.Language,
		Subject:       in.Subject,
		Partner:       in.Partner,
		ZodiacSign:    in.ZodiacSign,
		Constellation: in.Constellation,
		Today:         today,
	}
}

// BuildPrompt renders the instruction sent to the text generator. It is a
// pure function of its input.
func BuildPrompt(in PromptInput) string {
	lang := ParseLanguage(string(in.Language))
	p := table.languages[lang]

	var b strings.Builder
	b.WriteString(p.doc.Persona)
	b.WriteString("\n\n")
	b.WriteString(table.tasks[templateKey{in.Category, lang}])
	b.WriteString("\n")

	if in.Subject != nil {
		b.WriteString("\n")
		b.WriteString(p.doc.SubjectHeader)
		b.WriteString("\n")
		p.writePerson(&b, in.Subject)
	}
	if in.Partner != nil {
		b.WriteString("\n")
		b.WriteString(p.doc.PartnerHeader)
		b.WriteString("\n")
		p.writePerson(&b, in.Partner)
	}

	var extra []string
	if in.ZodiacSign != "" {
		extra = append(extra, render(p.zodiac, label(p.doc.ZodiacLabels, in.ZodiacSign)))
	}
	if in.Constellation != "" {
		extra = append(extra, render(p.constellation, label(p.doc.ConstellationLabels, in.Constellation)))
	}
	if in.Today != "" && (in.Category == CategoryToday || in.Category == CategoryNewYear) {
		extra = append(extra, render(p.today, in.Today))
	}
	if len(extra) > 0 {
		b.WriteString("\n")
		for _, line := range extra {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if in.Category.UsesElements() {
		b.WriteString(p.doc.OutputElements)
	} else {
		b.WriteString(p.doc.Output)
	}
	b.WriteString("\n")
	return b.String()
}

// FallbackPhrase is the stock text used when the generator's output yields
// no usable fortune or description.
func FallbackPhrase(lang Language) string {
	return table.languages[ParseLanguage(string(lang))].doc.Fallback
}

type personLine struct {
	Year, Month, Day int
	Hour, Minute     int
	Gender           string
}

func (p *languagePack) writePerson(b *strings.Builder, person *Person) {
	data := personLine{
		Year: person.Year, Month: person.Month, Day: person.Day,
		Hour: person.Hour, Minute: person.Minute,
		Gender: label(p.doc.Genders, string(person.Gender)),
	}
	b.WriteString(render(p.birthDate, data))
	b.WriteString("\n")
	if person.HasTime {
		b.WriteString(render(p.birthTime, data))
		b.WriteString("\n")
	}
	if person.Gender != "" {
		b.WriteString(render(p.gender, data))
		b.WriteString("\n")
	}
}

func render(t *template.Template, data any) string {
	var sb strings.Builder
	// Templates are checked at load and data shapes are fixed, so Execute
	// cannot fail on well-formed input.
	_ = t.Execute(&sb, data)
	return sb.String()
}

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok {
		return v
	}
	return key
}
