package collector

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-landscape/landscaper/models"
)

// coordinateEntry is one row of the coordinates file.
type coordinateEntry struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinates maps component types and names to geographic positions,
// loaded from a JSON file of the form:
//
//	{
//	  "machine": [
//	    {"name": "machine-A", "latitude": 53.35, "longitude": -6.27},
//	    {"name": "*", "latitude": 48.14, "longitude": 11.58}
//	  ]
//	}
//
// The "*" name is a per-type fallback for components without their own
// entry.
type Coordinates struct {
	entries map[string][]coordinateEntry
}

// LoadCoordinates reads the coordinates file. A missing file is not an
// error; the landscape simply starts without geographic positions.
func LoadCoordinates(path string) (*Coordinates, error) {
	c := &Coordinates{entries: map[string][]coordinateEntry{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read coordinates file: %w", err)
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("failed to parse coordinates file %s: %w", path, err)
	}
	return c, nil
}

// Lookup returns the position of a component, preferring an exact name
// match over the per-type "*" fallback. Nil when neither exists.
func (c *Coordinates) Lookup(componentType, name string) *models.Geometry {
	var fallback *models.Geometry
	for _, entry := range c.entries[componentType] {
		if entry.Name == name {
			return models.Point(entry.Latitude, entry.Longitude)
		}
		if entry.Name == "*" && fallback == nil {
			fallback = models.Point(entry.Latitude, entry.Longitude)
		}
	}
	return fallback
}
