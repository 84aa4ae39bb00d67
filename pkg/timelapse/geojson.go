package timelapse

import (
	"encoding/json"
	"fmt"
	"os"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string                 `json:"type"`
	Geometry   PolygonGeometry        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// PolygonGeometry is a GeoJSON Polygon: an exterior ring followed by any
// holes, positions as [lon, lat]
type PolygonGeometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// WriteGeoJSON writes the accumulated polygons out as a GeoJSON file
func WriteGeoJSON(path string, collection *FeatureCollection) error {
	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
