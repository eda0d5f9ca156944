package curriculumfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
)

const robloxGreen = `
paths:
  roblox:
    green: [10, 10, 12]
`

func TestParse(t *testing.T) {
	rows, err := Parse([]byte(robloxGreen))
	require.NoError(t, err)

	assert.Equal(t, progression.Rows{
		progression.PathRoblox: {progression.BeltGreen: {10, 10, 12}},
	}, rows)
}

func TestParse_Empty(t *testing.T) {
	rows, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":  "belts: {}\n",
		"unknown path": "paths:\n  cobol:\n    white: [1]\n",
		"unknown belt": "paths:\n  roblox:\n    plaid: [1]\n",
		"not a list":   "paths:\n  roblox:\n    green: 3\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidFile)
		})
	}
}

func TestApply(t *testing.T) {
	rows, err := Parse([]byte(robloxGreen))
	require.NoError(t, err)

	c, err := Apply(nil, rows)
	require.NoError(t, err)

	assert.Equal(t, 3, c.MaxLevels(progression.PathRoblox, progression.BeltGreen))
	assert.Equal(t, 12, c.MaxLessons(progression.PathRoblox, progression.BeltGreen, 3))
	assert.False(t, c.LookupLevels(progression.PathRoblox, progression.BeltGreen).Fallback)

	// the built-in table is untouched
	assert.Equal(t, progression.FallbackBound, progression.MaxLevels(progression.PathRoblox, progression.BeltGreen))
}

func TestApply_InvalidCounts(t *testing.T) {
	rows := progression.Rows{progression.PathRoblox: {progression.BeltGreen: {4, 0}}}

	_, err := Apply(nil, rows)
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.ErrorIs(t, err, progression.ErrInvalidCurriculum)
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Same(t, progression.DefaultCurriculum(), c)

	name := filepath.Join(t.TempDir(), "curriculum.yaml")
	require.NoError(t, os.WriteFile(name, []byte(robloxGreen), 0o600))

	c, err = Load(name)
	require.NoError(t, err)
	assert.Equal(t, 3, c.MaxLevels(progression.PathRoblox, progression.BeltGreen))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncode_RoundTrips(t *testing.T) {
	data, err := Encode(progression.DefaultCurriculum())
	require.NoError(t, err)

	rows, err := Parse(data)
	require.NoError(t, err)

	c, err := progression.NewCurriculum(rows)
	require.NoError(t, err)
	for _, path := range progression.Paths {
		assert.Equal(t, progression.DefaultCurriculum().TotalLessons(path), c.TotalLessons(path), path)
	}
}
