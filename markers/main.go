package markers

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

// TotalMarkers is the fixed number of enumerated PCC markers across the
// eight competencies. C1 and C2 are cross-cutting and carry none.
const TotalMarkers = 37

// ExpectedCounts maps each enumerable competency to the number of
// markers the catalog (and every marker analysis) must contain for it.
var ExpectedCounts = map[string]int{
	"C3": 4,
	"C4": 4,
	"C5": 5,
	"C6": 7,
	"C7": 8,
	"C8": 9,
}

type Marker struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Competency struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Markers []Marker `json:"markers"`
}

// Catalog is the immutable marker reference data, loaded once at
// startup and embedded into every assessment prompt.
type Catalog struct {
	Competencies []Competency `json:"competencies"`
}

// Load reads the catalog from a JSON file. A missing or malformed file
// is a configuration error the caller surfaces; it never panics.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading marker catalog %s: %w", path, err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing marker catalog %s: %w", path, err)
	}

	count := 0
	for _, comp := range catalog.Competencies {
		count += len(comp.Markers)
	}
	if count != TotalMarkers {
		return nil, fmt.Errorf("marker catalog %s holds %d markers, want %d", path, count, TotalMarkers)
	}

	return &catalog, nil
}

// JSON renders the catalog for embedding into prompts.
func (c *Catalog) JSON() string {
	data, _ := json.Marshal(c)
	return string(data)
}

// Competency returns the competency with the given ID, or nil.
func (c *Catalog) Competency(id string) *Competency {
	for i := range c.Competencies {
		if c.Competencies[i].ID == id {
			return &c.Competencies[i]
		}
	}
	return nil
}

// Find returns the marker with the given ID (e.g. "7.1"), or nil.
func (c *Catalog) Find(markerID string) *Marker {
	for _, comp := range c.Competencies {
		for i := range comp.Markers {
			if comp.Markers[i].ID == markerID {
				return &comp.Markers[i]
			}
		}
	}
	return nil
}

// Random picks a random marker from a random competency that has
// enumerated markers. Used by the quiz generator.
func (c *Catalog) Random() Marker {
	var withMarkers []Competency
	for _, comp := range c.Competencies {
		if len(comp.Markers) > 0 {
			withMarkers = append(withMarkers, comp)
		}
	}
	comp := withMarkers[rand.Intn(len(withMarkers))]
	return comp.Markers[rand.Intn(len(comp.Markers))]
}
