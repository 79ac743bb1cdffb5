package models

import "strings"

// AthleteInput is the structured athletic experience a student-athlete submits
// for translation. Only Sport is required; every other field degrades to a
// default when missing.
type AthleteInput struct {
	AthleteID    string   `json:"athleteId,omitempty" yaml:"athlete_id"`
	Sport        string   `json:"sport" yaml:"sport"`
	Position     string   `json:"position,omitempty" yaml:"position"`
	YearsPlayed  int      `json:"yearsPlayed,omitempty" yaml:"years_played"`
	Leadership   []string `json:"leadership,omitempty" yaml:"leadership"`
	Achievements []string `json:"achievements,omitempty" yaml:"achievements"`
	Stats        string   `json:"stats,omitempty" yaml:"stats"`
	GPA          string   `json:"gpa,omitempty" yaml:"gpa"`
	Major        string   `json:"major,omitempty" yaml:"major"`
}

// Normalized returns a copy with trimmed text fields, a lower-cased sport key
// and blank leadership/achievement entries removed.
func (in AthleteInput) Normalized() AthleteInput {
	out := in
	out.AthleteID = strings.TrimSpace(in.AthleteID)
	out.Sport = NormalizeSportKey(in.Sport)
	out.Position = strings.TrimSpace(in.Position)
	out.Stats = strings.TrimSpace(in.Stats)
	out.GPA = strings.TrimSpace(in.GPA)
	out.Major = strings.TrimSpace(in.Major)
	out.Leadership = compact(in.Leadership)
	out.Achievements = compact(in.Achievements)
	return out
}

// NormalizeSportKey maps user-supplied sport text to a catalog key.
func NormalizeSportKey(sport string) string {
	return strings.ToLower(strings.TrimSpace(sport))
}

func compact(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TranslationResult is the résumé text produced for an AthleteInput.
type TranslationResult struct {
	Summary      string   `json:"summary"`
	BulletPoints []string `json:"bulletPoints"`
}
