package templates

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/next-chapter/resume-engine/internal/models"
)

//go:embed defaults
var defaultsFS embed.FS

const (
	phrasebookFile = "phrasebook.yaml"
	sportsDir      = "sports"
)

// Loader manages loading and caching of the sport catalog and phrasebook
type Loader struct {
	mu         sync.RWMutex
	sports     map[string]*models.Sport
	phrasebook *models.Phrasebook
}

// NewLoader creates a new, empty loader
func NewLoader() *Loader {
	return &Loader{
		sports: make(map[string]*models.Sport),
	}
}

// LoadDefaults loads the catalog compiled into the binary
func (l *Loader) LoadDefaults() error {
	sub, err := fs.Sub(defaultsFS, "defaults")
	if err != nil {
		return fmt.Errorf("failed to open embedded catalog: %w", err)
	}
	return l.loadFS(sub, "embedded")
}

// LoadFromDir overlays the catalog found in dir: an optional phrasebook.yaml
// and any sports/*.yaml files. Sports already loaded with the same key are replaced.
func (l *Loader) LoadFromDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to stat catalog dir: %w", err)
	}
	return l.loadFS(os.DirFS(dir), dir)
}

func (l *Loader) loadFS(fsys fs.FS, source string) error {
	slog.Info("loading catalog", "source", source)

	data, err := fs.ReadFile(fsys, phrasebookFile)
	switch {
	case err == nil:
		book, err := ParsePhrasebook(data)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", phrasebookFile, err)
		}
		l.mu.Lock()
		l.phrasebook = book
		l.mu.Unlock()
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("no phrasebook in catalog source", "source", source)
	default:
		return fmt.Errorf("failed to read %s: %w", phrasebookFile, err)
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, path.Join(sportsDir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			slog.Warn("failed to read sport file", "file", file, "error", err)
			continue
		}
		sport, err := ParseSport(data)
		if err != nil {
			slog.Warn("failed to load sport", "file", file, "error", err)
			continue
		}
		l.Add(sport)
		loaded++
	}

	slog.Info("catalog loaded", "source", source, "sports", loaded, "total_files", len(files))
	return nil
}

// ParseSport decodes and validates one sport YAML document
func ParseSport(data []byte) (*models.Sport, error) {
	var sf sportFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	key := models.NormalizeSportKey(sf.Key)
	if key == "" {
		return nil, fmt.Errorf("sport key is required")
	}

	skills := make([]string, 0, len(sf.Skills))
	for _, s := range sf.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	if len(skills) == 0 {
		return nil, fmt.Errorf("sport %s: at least one skill is required", key)
	}

	name := strings.TrimSpace(sf.Name)
	if name == "" {
		name = key
	}

	return &models.Sport{
		Key:      key,
		Name:     name,
		TeamSize: strings.TrimSpace(sf.TeamSize),
		Skills:   skills,
	}, nil
}

// ParsePhrasebook decodes and validates a phrasebook YAML document
func ParsePhrasebook(data []byte) (*models.Phrasebook, error) {
	var book models.Phrasebook
	if err := yaml.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	required := map[string]string{
		"summary":            book.Summary,
		"generic_leadership": book.GenericLeadership,
		"video_analysis":     book.VideoAnalysis,
		"time_management":    book.TimeManagement,
		"achievement":        book.Achievement,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s is required", field)
		}
	}

	if book.DefaultTeamSize != "" {
		if _, err := strconv.Atoi(book.DefaultTeamSize); err != nil {
			return nil, fmt.Errorf("default_team_size must be numeric: %q", book.DefaultTeamSize)
		}
	}

	return &book, nil
}

// Add programmatically adds or replaces a sport
func (l *Loader) Add(sport *models.Sport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sports[models.NormalizeSportKey(sport.Key)] = sport
}

// Catalog returns a deep copy of the loaded catalog, stamped with a content version
func (l *Loader) Catalog() (models.Catalog, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.phrasebook == nil {
		return models.Catalog{}, fmt.Errorf("no phrasebook loaded")
	}

	cat := models.Catalog{
		Sports:     make(map[string]models.Sport, len(l.sports)),
		Phrasebook: *l.phrasebook,
	}
	cat.Phrasebook.Competencies = append([]string(nil), l.phrasebook.Competencies...)
	cat.Phrasebook.Leadership = append([]models.LeadershipRule(nil), l.phrasebook.Leadership...)

	for key, s := range l.sports {
		sport := *s
		sport.Skills = append([]string(nil), s.Skills...)
		cat.Sports[key] = sport
	}

	// json.Marshal sorts map keys, so equal content hashes equally.
	data, err := json.Marshal(cat)
	if err != nil {
		return models.Catalog{}, fmt.Errorf("failed to hash catalog: %w", err)
	}
	cat.Version = strconv.FormatUint(xxhash.Sum64(data), 16)

	return cat, nil
}

// --- YAML file structs ---

// sportFile represents the YAML structure of a sport file
type sportFile struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	TeamSize string   `yaml:"team_size"`
	Skills   []string `yaml:"skills"`
}
