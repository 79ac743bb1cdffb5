package models

// Sport is one entry of the sport catalog: display name, team-size flavor text
// and the ordered transferable skills offered as résumé bullets.
type Sport struct {
	Key      string   `json:"key" yaml:"key"`
	Name     string   `json:"name" yaml:"name"`
	TeamSize string   `json:"teamSize,omitempty" yaml:"team_size"`
	Skills   []string `json:"skills" yaml:"skills"`
}

// LeadershipRule maps a case-insensitive keyword found in a leadership role to
// the sentence template used for that role.
type LeadershipRule struct {
	Keyword  string `json:"keyword" yaml:"keyword"`
	Template string `json:"template" yaml:"template"`
}

// Phrasebook holds every sentence template and default used by the translator.
// Templates use text/template syntax.
type Phrasebook struct {
	Summary           string           `json:"summary" yaml:"summary"`
	Competencies      []string         `json:"competencies" yaml:"competencies"`
	Leadership        []LeadershipRule `json:"leadership" yaml:"leadership"`
	GenericLeadership string           `json:"genericLeadership" yaml:"generic_leadership"`
	VideoAnalysis     string           `json:"videoAnalysis" yaml:"video_analysis"`
	TimeManagement    string           `json:"timeManagement" yaml:"time_management"`
	Achievement       string           `json:"achievement" yaml:"achievement"`
	DefaultTeamSize   string           `json:"defaultTeamSize" yaml:"default_team_size"`
	DefaultGPA        string           `json:"defaultGpa" yaml:"default_gpa"`
	SummaryGPA        string           `json:"summaryGpa" yaml:"summary_gpa"`
	DefaultYears      int              `json:"defaultYears" yaml:"default_years"`
	MaxBullets        int              `json:"maxBullets" yaml:"max_bullets"`
	MaxSkills         int              `json:"maxSkills" yaml:"max_skills"`
}

// Catalog is an immutable snapshot of sports and phrasebook handed to the
// translator. Version changes whenever any content changes.
type Catalog struct {
	Version    string           `json:"version"`
	Sports     map[string]Sport `json:"sports"`
	Phrasebook Phrasebook       `json:"phrasebook"`
}
