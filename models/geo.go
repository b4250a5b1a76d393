package models

import "encoding/json"

// Geometry is a GeoJSON geometry object. Coordinates are kept raw since
// their nesting depth depends on the geometry type.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Point builds a GeoJSON point geometry from a latitude/longitude pair.
// GeoJSON positions are longitude first.
func Point(lat, lon float64) *Geometry {
	coords, _ := json.Marshal([2]float64{lon, lat})
	return &Geometry{Type: "Point", Coordinates: coords}
}

// Feature is a GeoJSON feature wrapping a node's geometry.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   any            `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is the GeoJSON rendering of a landscape graph.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// CoordinateUpdate is one entry of a PUT /coordinates request body.
type CoordinateUpdate struct {
	ID  string    `json:"id" validate:"required"`
	Geo *Geometry `json:"geo" validate:"required"`
}
