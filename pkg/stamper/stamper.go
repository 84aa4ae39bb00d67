package stamper

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/transitkit/shapedist/pkg/geometry"
	"github.com/transitkit/shapedist/pkg/gtfs"
	"github.com/transitkit/shapedist/pkg/linearref"
	"golang.org/x/exp/maps"
)

type Options struct {
	InputPath       string
	OutputDirectory string
	Unit            geometry.Unit
	Threads         int
	// Seed fixes the resolver's random source for reproducible runs. Zero
	// means seed from the clock
	Seed int64
}

type Result struct {
	ShapesProcessed int

	// Shapes whose measured stop order disagrees with the nominal stop
	// sequence, usually a sign of bad shape geometry
	OrderInconsistentShapes []string

	// Shapes with no geometry or zero length. Their distance values are all 0
	EmptyShapes []string

	// (shape_id, stop_id) pairs with no calculated distance. Their
	// shape_dist_traveled fields are left blank
	UnmatchedPairs [][2]string
}

type shapeResult struct {
	ShapeID   string
	Distances map[string]float64
	OrderOK   bool
	Forced    int
	Empty     bool
}

// Run stamps shape_dist_traveled values into a GTFS dataset, writing
// trips_new.txt, shapes_new.txt and stop_times_new.txt into the output
// directory. Problems with individual shapes are reported, never fatal.
func Run(options Options) (*Result, error) {
	schedule, err := gtfs.ParseDataset(options.InputPath)
	if err != nil {
		return nil, err
	}

	if len(schedule.Shapes) == 0 {
		return nil, fmt.Errorf("dataset %s has no shapes.txt entries", options.InputPath)
	}

	if err := os.MkdirAll(options.OutputDirectory, 0755); err != nil {
		return nil, err
	}

	threads := options.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	lines := schedule.ShapeLines()
	candidatesByShape := buildCandidates(schedule)

	log.Info().
		Int("shapes", len(lines)).
		Int("threads", threads).
		Str("units", string(options.Unit)).
		Msg("Linear referencing stops along shapes")

	// Shapes are independent of each other so resolve them on a pool. Each
	// task gets its own resolver as the random source is stateful
	p := pool.NewWithResults[shapeResult]()
	p.WithMaxGoroutines(threads)

	shapeIDs := maps.Keys(lines)
	sort.Strings(shapeIDs)

	for _, shapeID := range shapeIDs {
		line := lines[shapeID]
		candidates := candidatesByShape[shapeID]

		p.Go(func() shapeResult {
			resolver := linearref.NewResolver(randSource(options.Seed, shapeID))

			if line.Length() == 0 {
				distances := map[string]float64{}
				for _, candidate := range candidates {
					distances[candidate.StopID] = 0
				}
				return shapeResult{ShapeID: shapeID, Distances: distances, OrderOK: true, Empty: true}
			}

			assignment := resolver.Resolve(line, candidates, options.Unit)

			return shapeResult{
				ShapeID:   shapeID,
				Distances: assignment.Distances,
				OrderOK:   assignment.OrderOK,
				Forced:    len(assignment.Forced),
			}
		})
	}

	resolved := p.Wait()

	result := &Result{ShapesProcessed: len(resolved)}
	distancesByShape := map[string]map[string]float64{}
	for _, shape := range resolved {
		distancesByShape[shape.ShapeID] = shape.Distances

		if !shape.OrderOK {
			result.OrderInconsistentShapes = append(result.OrderInconsistentShapes, shape.ShapeID)
		}
		if shape.Empty {
			result.EmptyShapes = append(result.EmptyShapes, shape.ShapeID)
		}
		if shape.Forced > 0 {
			log.Debug().Str("shape", shape.ShapeID).Int("stops", shape.Forced).Msg("Stops resolved without neighbour constraints")
		}
	}
	sort.Strings(result.OrderInconsistentShapes)
	sort.Strings(result.EmptyShapes)

	if err := writeTrips(schedule, options.OutputDirectory); err != nil {
		return nil, err
	}
	if err := writeShapes(schedule, options.OutputDirectory, options.Unit); err != nil {
		return nil, err
	}
	if err := writeStopTimes(schedule, distancesByShape, options.OutputDirectory, result); err != nil {
		return nil, err
	}

	reportWarnings(result)

	return result, nil
}

// buildCandidates derives each shape's stop candidates from a representative
// trip using that shape. Trips sharing a shape are expected to share a stop
// sequence; the lexicographically first trip keeps the choice deterministic.
func buildCandidates(schedule *gtfs.Schedule) map[string][]linearref.Candidate {
	tripShapes := schedule.TripShapes()
	stopTimesByTrip := schedule.StopTimesByTrip()
	stopLocations := schedule.StopLocations()

	representative := map[string]string{}
	for tripID, shapeID := range tripShapes {
		if current, exists := representative[shapeID]; !exists || tripID < current {
			representative[shapeID] = tripID
		}
	}

	candidatesByShape := map[string][]linearref.Candidate{}
	for shapeID, tripID := range representative {
		for _, stopTime := range stopTimesByTrip[tripID] {
			location, exists := stopLocations[stopTime.StopID]
			if !exists {
				log.Warn().
					Str("shape", shapeID).
					Str("stop", stopTime.StopID).
					Msg("Stop has no location in stops.txt")
				continue
			}

			candidatesByShape[shapeID] = append(candidatesByShape[shapeID], linearref.Candidate{
				StopID:   stopTime.StopID,
				Sequence: stopTime.StopSequence,
				Point:    location,
			})
		}
	}

	return candidatesByShape
}

func writeTrips(schedule *gtfs.Schedule, outputDirectory string) error {
	log.Info().Msg("Generating new trips.txt file")

	return gtfs.WriteFile(filepath.Join(outputDirectory, "trips_new.txt"), &schedule.Trips)
}

func writeShapes(schedule *gtfs.Schedule, outputDirectory string, unit geometry.Unit) error {
	log.Info().Msg("Generating new shapes.txt file")

	grouped := map[string][]gtfs.ShapePoint{}
	for _, point := range schedule.Shapes {
		grouped[point.ShapeID] = append(grouped[point.ShapeID], point)
	}

	shapeIDs := maps.Keys(grouped)
	sort.Strings(shapeIDs)

	var output []gtfs.ShapePoint
	for _, shapeID := range shapeIDs {
		points := grouped[shapeID]
		sort.Slice(points, func(i, j int) bool { return points[i].Sequence < points[j].Sequence })

		distanceTraveled := 0.0
		var previous geometry.Point
		for i, point := range points {
			current := geometry.Point{Latitude: point.Latitude, Longitude: point.Longitude}
			if i > 0 {
				distanceTraveled += unit.FromMeters(geometry.HaversineMeters(previous, current))
			}

			output = append(output, gtfs.ShapePoint{
				ShapeID:           shapeID,
				Latitude:          point.Latitude,
				Longitude:         point.Longitude,
				Sequence:          i + 1,
				ShapeDistTraveled: gtfs.FormatDistance(distanceTraveled),
			})

			previous = current
		}
	}

	return gtfs.WriteFile(filepath.Join(outputDirectory, "shapes_new.txt"), &output)
}

func writeStopTimes(schedule *gtfs.Schedule, distancesByShape map[string]map[string]float64, outputDirectory string, result *Result) error {
	log.Info().Msg("Generating new stop_times.txt file")

	tripShapes := schedule.TripShapes()

	output := make([]gtfs.StopTime, len(schedule.StopTimes))
	for i, stopTime := range schedule.StopTimes {
		shapeID, hasShape := tripShapes[stopTime.TripID]
		if hasShape {
			if distance, exists := distancesByShape[shapeID][stopTime.StopID]; exists {
				stopTime.ShapeDistTraveled = gtfs.FormatDistance(distance)
			} else {
				stopTime.ShapeDistTraveled = ""
				result.UnmatchedPairs = append(result.UnmatchedPairs, [2]string{shapeID, stopTime.StopID})
			}
		}

		output[i] = stopTime
	}

	return gtfs.WriteFile(filepath.Join(outputDirectory, "stop_times_new.txt"), &output)
}

func reportWarnings(result *Result) {
	if len(result.EmptyShapes) > 0 {
		log.Warn().
			Strs("shapes", result.EmptyShapes).
			Msg("Some shapes had no geometry or 0 length - all their shape_dist_traveled values are 0")
	}

	if len(result.OrderInconsistentShapes) > 0 {
		log.Warn().
			Strs("shapes", result.OrderInconsistentShapes).
			Msg("The measured shape_dist_traveled order does not match the stop sequence for some shapes - review the shape geometry and run again")
	}

	for _, pair := range result.UnmatchedPairs {
		log.Warn().
			Str("shape", pair[0]).
			Str("stop", pair[1]).
			Msg("Could not calculate shape_dist_traveled - field left blank")
	}
}

// randSource derives a per-shape random source so runs with a fixed seed are
// reproducible regardless of which pool worker picks the shape up
func randSource(seed int64, shapeID string) *rand.Rand {
	if seed == 0 {
		return nil
	}

	hash := fnv.New64a()
	hash.Write([]byte(shapeID))

	return rand.New(rand.NewSource(seed ^ int64(hash.Sum64())))
}
