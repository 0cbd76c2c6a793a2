package emergency

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_Detect(t *testing.T) {
	d := NewDefaultDetector()

	tests := []struct {
		name        string
		query       string
		isEmergency bool
		matched     []string
	}{
		{
			name:        "no red flags",
			query:       "What does the literature say about metformin dosing?",
			isEmergency: false,
		},
		{
			name:        "chest pain",
			query:       "I have severe chest pain",
			isEmergency: true,
			matched:     []string{"chest pain"},
		},
		{
			name:        "case insensitive",
			query:       "SUDDEN HEART ATTACK symptoms",
			isEmergency: true,
			matched:     []string{"heart attack"},
		},
		{
			name:        "multiple phrases in list order",
			query:       "took a drug overdose and now choking",
			isEmergency: true,
			matched:     []string{"overdose", "choking", "drug overdose"},
		},
		{
			name:        "negation still matches",
			query:       "I have no chest pain at all",
			isEmergency: true,
			matched:     []string{"chest pain"},
		},
		{
			name:        "substring inside a word",
			query:       "post-stroke rehabilitation guidelines",
			isEmergency: true,
			matched:     []string{"stroke"},
		},
		{
			name:        "apostrophe phrase",
			query:       "I can't breathe properly",
			isEmergency: true,
			matched:     []string{"can't breathe"},
		},
		{
			name:        "empty query",
			query:       "",
			isEmergency: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.query)
			assert.Equal(t, tt.isEmergency, got.IsEmergency)
			assert.Equal(t, tt.matched, got.Matched)
		})
	}
}

func TestDetection_Confidence(t *testing.T) {
	assert.Equal(t, "high", Detection{IsEmergency: true}.Confidence())
	assert.Equal(t, "low", Detection{}.Confidence())
}

func TestNewDetector_Normalizes(t *testing.T) {
	d := NewDetector([]string{"  Sepsis ", "sepsis", "", "Anaphylaxis"})

	assert.Equal(t, []string{"sepsis", "anaphylaxis"}, d.Keywords())
	assert.True(t, d.Detect("signs of SEPSIS in adults").IsEmergency)
}

func TestLoadKeywords(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "keywords.yaml")
		require.NoError(t, os.WriteFile(path, []byte("keywords:\n  - chest pain\n  - sepsis\n"), 0o600))

		keywords, err := LoadKeywords(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"chest pain", "sepsis"}, keywords)
	})

	t.Run("empty list", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("keywords: []\n"), 0o600))

		_, err := LoadKeywords(path)
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("keywords: [unterminated\n"), 0o600))

		_, err := LoadKeywords(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadKeywords(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
