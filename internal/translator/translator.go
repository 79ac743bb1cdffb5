// Package translator turns structured athletic experience into résumé prose.
//
// A Translator is built once from a catalog snapshot and is then a pure
// function: no I/O, no shared mutable state, safe for concurrent use.
package translator

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/cespare/xxhash/v2"

	"github.com/next-chapter/resume-engine/internal/models"
)

// Fallbacks applied when a phrasebook leaves a limit or default unset
const (
	DefaultYearsPlayed = 4
	DefaultMaxBullets  = 7
	DefaultMaxSkills   = 3
	DefaultTeamSize    = "40"
	DefaultGPA         = "3.2+"
	DefaultSummaryGPA  = "strong"

	figureMin  = 50
	figureSpan = 50
)

// FigureFunc returns the dollar figure (in thousands) quoted by leadership
// templates. Implementations must return values in [50, 99].
type FigureFunc func(role, sport string) int

// Option configures a Translator
type Option func(*Translator)

// WithFigure overrides the dollar figure source
func WithFigure(fn FigureFunc) Option {
	return func(t *Translator) {
		if fn != nil {
			t.figure = fn
		}
	}
}

// WithRandom draws dollar figures from r, making output nondeterministic.
// Access to r is serialized.
func WithRandom(r *rand.Rand) Option {
	var mu sync.Mutex
	return WithFigure(func(string, string) int {
		mu.Lock()
		defer mu.Unlock()
		return figureMin + r.IntN(figureSpan)
	})
}

// StableFigure derives the figure from the role and sport so identical input
// always renders the same bullet.
func StableFigure(role, sport string) int {
	h := xxhash.Sum64String(sport + "|" + strings.ToLower(role))
	return figureMin + int(h%figureSpan)
}

type leadershipRule struct {
	keyword string
	tmpl    *template.Template
}

// Translator renders TranslationResults from a fixed catalog
type Translator struct {
	version      string
	sports       map[string]models.Sport
	competencies string

	defaultTeamSize string
	defaultGPA      string
	summaryGPA      string
	defaultYears    int
	maxBullets      int
	maxSkills       int

	summary     *template.Template
	leadership  []leadershipRule
	generic     *template.Template
	video       *template.Template
	timeMgmt    *template.Template
	achievement *template.Template

	figure FigureFunc
}

// templateData is the value every phrasebook template is executed against
type templateData struct {
	Years        int
	Sport        string
	SportName    string
	Position     string
	Competencies string
	Major        string
	GPA          string
	TeamSize     string
	Role         string
	Figure       int
	Achievement  string
}

// New compiles the catalog's templates. It fails only on a malformed catalog.
func New(cat models.Catalog, opts ...Option) (*Translator, error) {
	book := cat.Phrasebook

	t := &Translator{
		version:         cat.Version,
		sports:          make(map[string]models.Sport, len(cat.Sports)),
		competencies:    joinList(book.Competencies),
		defaultTeamSize: orDefault(book.DefaultTeamSize, DefaultTeamSize),
		defaultGPA:      orDefault(book.DefaultGPA, DefaultGPA),
		summaryGPA:      orDefault(book.SummaryGPA, DefaultSummaryGPA),
		defaultYears:    positiveOr(book.DefaultYears, DefaultYearsPlayed),
		maxBullets:      positiveOr(book.MaxBullets, DefaultMaxBullets),
		maxSkills:       positiveOr(book.MaxSkills, DefaultMaxSkills),
		figure:          StableFigure,
	}

	for key, sport := range cat.Sports {
		sport.Skills = append([]string(nil), sport.Skills...)
		t.sports[models.NormalizeSportKey(key)] = sport
	}

	var err error
	if t.summary, err = compile("summary", book.Summary); err != nil {
		return nil, err
	}
	if t.generic, err = compile("generic_leadership", book.GenericLeadership); err != nil {
		return nil, err
	}
	if t.video, err = compile("video_analysis", book.VideoAnalysis); err != nil {
		return nil, err
	}
	if t.timeMgmt, err = compile("time_management", book.TimeManagement); err != nil {
		return nil, err
	}
	if t.achievement, err = compile("achievement", book.Achievement); err != nil {
		return nil, err
	}

	for i, rule := range book.Leadership {
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if keyword == "" {
			return nil, fmt.Errorf("leadership rule %d: keyword is required", i)
		}
		tmpl, err := compile("leadership_"+keyword, rule.Template)
		if err != nil {
			return nil, err
		}
		t.leadership = append(t.leadership, leadershipRule{keyword: keyword, tmpl: tmpl})
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Version returns the catalog version the translator was built from
func (t *Translator) Version() string {
	return t.version
}

// Sport looks up a catalog entry by user-supplied sport text
func (t *Translator) Sport(sport string) (models.Sport, bool) {
	s, ok := t.sports[models.NormalizeSportKey(sport)]
	return s, ok
}

// Sports returns every catalog entry ordered by key
func (t *Translator) Sports() []models.Sport {
	out := make([]models.Sport, 0, len(t.sports))
	for _, s := range t.sports {
		s.Skills = append([]string(nil), s.Skills...)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Translate renders the summary and bullet points for in. It never fails:
// unknown sports get no skill bullets and missing fields fall back to defaults.
func (t *Translator) Translate(in models.AthleteInput) models.TranslationResult {
	in = in.Normalized()

	sport := t.sports[in.Sport]
	data := templateData{
		Years:        in.YearsPlayed,
		Sport:        in.Sport,
		SportName:    orDefault(sport.Name, in.Sport),
		Position:     in.Position,
		Competencies: t.competencies,
		Major:        in.Major,
		GPA:          orDefault(in.GPA, t.summaryGPA),
		TeamSize:     orDefault(sport.TeamSize, t.defaultTeamSize),
	}
	if data.Years <= 0 {
		data.Years = t.defaultYears
	}
	if data.Sport == "" {
		data.Sport = "collegiate"
	}

	result := models.TranslationResult{
		Summary:      render(t.summary, data),
		BulletPoints: make([]string, 0, t.maxBullets),
	}

	add := func(text string) {
		if text != "" {
			result.BulletPoints = append(result.BulletPoints, text)
		}
	}

	for _, role := range in.Leadership {
		d := data
		d.Role = role
		d.Figure = t.figure(role, in.Sport)
		add(render(t.leadershipTemplate(role), d))
	}

	add(render(t.video, data))

	gpa := data
	gpa.GPA = orDefault(in.GPA, t.defaultGPA)
	add(render(t.timeMgmt, gpa))

	skills := 0
	for _, skill := range sport.Skills {
		if skills == t.maxSkills {
			break
		}
		if s := strings.TrimSpace(skill); s != "" {
			add(s)
			skills++
		}
	}

	if len(in.Achievements) > 0 {
		d := data
		d.Achievement = in.Achievements[0]
		add(render(t.achievement, d))
	}

	if len(result.BulletPoints) > t.maxBullets {
		result.BulletPoints = result.BulletPoints[:t.maxBullets]
	}

	return result
}

// leadershipTemplate picks the first rule whose keyword occurs in role
func (t *Translator) leadershipTemplate(role string) *template.Template {
	lower := strings.ToLower(role)
	for _, rule := range t.leadership {
		if strings.Contains(lower, rule.keyword) {
			return rule.tmpl
		}
	}
	return t.generic
}

func compile(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("template %s is empty", name)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	// Surfaces references to unknown fields before any real input arrives.
	if err := tmpl.Execute(&strings.Builder{}, templateData{}); err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return tmpl, nil
}

// render executes tmpl and collapses whitespace; a failed render yields ""
func render(tmpl *template.Template, data templateData) string {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return ""
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// joinList renders ["a","b","c"] as "a, b, and c"
func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
