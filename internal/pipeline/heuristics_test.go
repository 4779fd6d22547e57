package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHeuristics(t *testing.T) {
	t.Parallel()

	h := DefaultHeuristics()

	assert.NotEmpty(t, h.AppointmentKeywords)
	assert.NotEmpty(t, h.ObjectionKeywords)
	assert.NotEmpty(t, h.InterestKeywords)
	assert.NotEmpty(t, h.MarketKeywords)
	assert.NotEmpty(t, h.FloorPlanKeywords)
	assert.NotEmpty(t, h.DistrictNames)
	assert.NotEmpty(t, h.GenericReply)
}

func TestLoadHeuristics_PartialOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "heuristics.yaml")
	content := "appointment_keywords:\n  - rendezvous\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	h, err := LoadHeuristics(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"rendezvous"}, h.AppointmentKeywords)
	// Unset lists fall back to the embedded defaults.
	assert.Equal(t, DefaultHeuristics().ObjectionKeywords, h.ObjectionKeywords)
	assert.Equal(t, DefaultHeuristics().GenericReply, h.GenericReply)
}

func TestLoadHeuristics_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadHeuristics(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadHeuristics_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("appointment_keywords: {broken"), 0o644))

	_, err := LoadHeuristics(path)
	require.Error(t, err)
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	keywords := []string{"floor plan", "layout"}

	assert.True(t, containsAny("Can I see the Floor Plan?", keywords))
	assert.True(t, containsAny("what's the layout like", keywords))
	assert.False(t, containsAny("how much is it", keywords))
	assert.False(t, containsAny("", keywords))
}
