// Package emergency flags queries that mention clinical red-flag phrases.
//
// Matching is a case-insensitive substring test. Negations are not
// understood: "no chest pain" still matches "chest pain". Over-triggering is
// the accepted failure mode for a safety gate.
package emergency

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultKeywords are the built-in red-flag phrases
var DefaultKeywords = []string{
	"chest pain",
	"difficulty breathing",
	"severe bleeding",
	"unconscious",
	"heart attack",
	"stroke",
	"seizure",
	"severe allergic reaction",
	"suicidal thoughts",
	"overdose",
	"can't breathe",
	"choking",
	"severe headache",
	"loss of consciousness",
	"severe abdominal pain",
	"severe burns",
	"poisoning",
	"drug overdose",
	"suicide",
	"kill myself",
}

// Detection is the outcome of a single check
type Detection struct {
	IsEmergency bool
	Matched     []string
}

// Confidence mirrors the coarse label exposed in logs
func (d Detection) Confidence() string {
	if d.IsEmergency {
		return "high"
	}
	return "low"
}

// Detector holds an immutable, lower-cased keyword list and is safe for concurrent use
type Detector struct {
	keywords []string
}

// NewDetector creates a detector for the given keywords.
// Empty and duplicate entries are dropped.
func NewDetector(keywords []string) *Detector {
	seen := make(map[string]struct{}, len(keywords))
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		normalized = append(normalized, k)
	}
	return &Detector{keywords: normalized}
}

// NewDefaultDetector creates a detector with DefaultKeywords
func NewDefaultDetector() *Detector {
	return NewDetector(DefaultKeywords)
}

// Detect reports every keyword contained in the query, in keyword-list order
func (d *Detector) Detect(query string) Detection {
	lower := strings.ToLower(query)

	var matched []string
	for _, k := range d.keywords {
		if strings.Contains(lower, k) {
			matched = append(matched, k)
		}
	}

	return Detection{
		IsEmergency: len(matched) > 0,
		Matched:     matched,
	}
}

// Keywords returns a copy of the active keyword list
func (d *Detector) Keywords() []string {
	out := make([]string, len(d.keywords))
	copy(out, d.keywords)
	return out
}

// keywordFile is the YAML layout accepted by LoadKeywords
type keywordFile struct {
	Keywords []string `yaml:"keywords"`
}

// LoadKeywords reads a YAML file of the form `keywords: [...]`.
// The file replaces the built-in list; it does not extend it.
func LoadKeywords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read emergency keywords: %w", err)
	}

	var f keywordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse emergency keywords: %w", err)
	}
	if len(f.Keywords) == 0 {
		return nil, fmt.Errorf("emergency keywords file %s has no keywords", path)
	}
	return f.Keywords, nil
}
