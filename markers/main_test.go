package markers_test

import (
	"os"
	"path/filepath"
	"testing"

	"coachmastery/markers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadCatalog(t *testing.T) *markers.Catalog {
	t.Helper()
	catalog, err := markers.Load("../markers.json")
	require.NoError(t, err)
	return catalog
}

func TestLoadCatalog(t *testing.T) {
	catalog := loadCatalog(t)

	assert.Len(t, catalog.Competencies, 8)

	total := 0
	for _, comp := range catalog.Competencies {
		total += len(comp.Markers)
		if expected, ok := markers.ExpectedCounts[comp.ID]; ok {
			assert.Len(t, comp.Markers, expected, "competency %s", comp.ID)
		} else {
			assert.Empty(t, comp.Markers, "competency %s carries no enumerated markers", comp.ID)
		}
	}
	assert.Equal(t, markers.TotalMarkers, total)
}

func TestLoadRejectsWrongTotal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"competencies": [{"id": "C3", "name": "Agreements", "markers": [{"id": "3.1", "text": "x"}]}]}`), 0o644))

	_, err := markers.Load(path)
	assert.ErrorContains(t, err, "37")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := markers.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestFindAndCompetency(t *testing.T) {
	catalog := loadCatalog(t)

	marker := catalog.Find("7.1")
	require.NotNil(t, marker)
	assert.Equal(t, "7.1", marker.ID)
	assert.NotEmpty(t, marker.Text)

	assert.Nil(t, catalog.Find("9.9"))

	comp := catalog.Competency("C6")
	require.NotNil(t, comp)
	assert.Equal(t, "Listens Actively", comp.Name)
	assert.Nil(t, catalog.Competency("C9"))
}

func TestRandomReturnsEnumeratedMarker(t *testing.T) {
	catalog := loadCatalog(t)

	for i := 0; i < 20; i++ {
		marker := catalog.Random()
		assert.NotNil(t, catalog.Find(marker.ID))
	}
}
