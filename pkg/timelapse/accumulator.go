package timelapse

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/transitkit/shapedist/pkg/geometry"
)

// Run solves the service area once per time of day in the window and
// accumulates every polygon, tagged with its time of day, into a single
// feature collection. A failed solve aborts the run.
func Run(ctx context.Context, solver Solver, window Window) (*FeatureCollection, error) {
	times, err := window.Times()
	if err != nil {
		return nil, err
	}

	log.Info().Int("solves", len(times)).Msg("Solving service area across time window")

	collection := &FeatureCollection{Type: "FeatureCollection"}

	for _, timeOfDay := range times {
		log.Info().Str("time", timeOfDay.Format(time.RFC3339)).Msg("Solving service area")

		polygons, err := solver.Solve(ctx, timeOfDay)
		if err != nil {
			return nil, fmt.Errorf("solve failed at %s: %w", timeOfDay.Format(time.RFC3339), err)
		}

		for _, polygon := range polygons {
			collection.Features = append(collection.Features, polygonFeature(polygon, timeOfDay))
		}
	}

	return collection, nil
}

func polygonFeature(polygon ReachPolygon, timeOfDay time.Time) Feature {
	rings := make([][][2]float64, 0, len(polygon.Holes)+1)
	rings = append(rings, ringCoordinates(polygon.Exterior))
	for _, hole := range polygon.Holes {
		rings = append(rings, ringCoordinates(hole))
	}

	return Feature{
		Type: "Feature",
		Geometry: PolygonGeometry{
			Type:        "Polygon",
			Coordinates: rings,
		},
		Properties: map[string]interface{}{
			"Name":       polygon.Name,
			"FacilityID": polygon.FacilityID,
			"FromBreak":  polygon.FromBreak,
			"ToBreak":    polygon.ToBreak,
			"TimeOfDay":  timeOfDay.Format(time.RFC3339),
		},
	}
}

func ringCoordinates(ring []geometry.Point) [][2]float64 {
	coordinates := make([][2]float64, len(ring))
	for i, point := range ring {
		coordinates[i] = [2]float64{point.Longitude, point.Latitude}
	}

	return coordinates
}
