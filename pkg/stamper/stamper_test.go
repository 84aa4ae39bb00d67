package stamper

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitkit/shapedist/pkg/geometry"
	"github.com/transitkit/shapedist/pkg/gtfs"
	"github.com/transitkit/shapedist/pkg/linearref"
)

// one degree of longitude along the equator in meters
const degreeMeters = 111194.93

func writeDataset(t *testing.T) string {
	t.Helper()

	files := map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"AG,Example Transit,https://example.com,Europe/London\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"S1,First,0.0,0.1\n" +
			"S2,Second,0.0,0.4\n" +
			"S3,Third,0.0,0.8\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_type\n" +
			"R1,AG,1,3\n",
		"trips.txt": "route_id,service_id,trip_id,shape_id\n" +
			"R1,WEEK,T1,SH1\n" +
			"R1,WEEK,T2,SH2\n",
		// S4 has no entry in stops.txt so its distance can't be calculated
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"T1,08:00:00,08:00:00,S1,1\n" +
			"T1,08:05:00,08:05:00,S2,2\n" +
			"T1,08:10:00,08:10:00,S4,3\n" +
			"T2,09:00:00,09:00:00,S3,1\n",
		// SH2 collapses to a single location
		"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
			"SH1,0.0,0.0,1\n" +
			"SH1,0.0,1.0,2\n" +
			"SH2,0.0,5.0,1\n" +
			"SH2,0.0,5.0,2\n",
	}

	directory := t.TempDir()
	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(directory, name), []byte(contents), 0644))
	}

	return directory
}

func readStopTimes(t *testing.T, path string) []gtfs.StopTime {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var stopTimes []gtfs.StopTime
	require.NoError(t, gocsv.Unmarshal(file, &stopTimes))

	return stopTimes
}

func TestRun(t *testing.T) {
	output := t.TempDir()

	result, err := Run(Options{
		InputPath:       writeDataset(t),
		OutputDirectory: output,
		Unit:            geometry.UnitMeters,
		Seed:            42,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ShapesProcessed)
	assert.Equal(t, []string{"SH2"}, result.EmptyShapes)
	assert.Contains(t, result.UnmatchedPairs, [2]string{"SH1", "S4"})
	assert.Empty(t, result.OrderInconsistentShapes)

	// Every output file exists
	for _, name := range []string{"trips_new.txt", "shapes_new.txt", "stop_times_new.txt"} {
		_, err := os.Stat(filepath.Join(output, name))
		require.NoError(t, err)
	}

	stopTimes := readStopTimes(t, filepath.Join(output, "stop_times_new.txt"))
	require.Len(t, stopTimes, 4)

	byStop := map[string]gtfs.StopTime{}
	for _, stopTime := range stopTimes {
		byStop[stopTime.TripID+"/"+stopTime.StopID] = stopTime
	}

	s1, err := strconv.ParseFloat(byStop["T1/S1"].ShapeDistTraveled, 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.1*degreeMeters, s1, 30)

	s2, err := strconv.ParseFloat(byStop["T1/S2"].ShapeDistTraveled, 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.4*degreeMeters, s2, 30)

	// Unmatched pair stays blank
	assert.Equal(t, "", byStop["T1/S4"].ShapeDistTraveled)

	// Stops on a zero length shape all get 0
	assert.Equal(t, "0.0000", byStop["T2/S3"].ShapeDistTraveled)
}

func TestRunStampsShapeVertices(t *testing.T) {
	output := t.TempDir()

	_, err := Run(Options{
		InputPath:       writeDataset(t),
		OutputDirectory: output,
		Unit:            geometry.UnitKilometers,
		Seed:            42,
	})
	require.NoError(t, err)

	file, err := os.Open(filepath.Join(output, "shapes_new.txt"))
	require.NoError(t, err)
	defer file.Close()

	var points []gtfs.ShapePoint
	require.NoError(t, gocsv.Unmarshal(file, &points))
	require.Len(t, points, 4)

	// Shapes come out sorted, vertices resequenced from 1
	assert.Equal(t, "SH1", points[0].ShapeID)
	assert.Equal(t, 1, points[0].Sequence)
	assert.Equal(t, "0.0000", points[0].ShapeDistTraveled)

	distance, err := strconv.ParseFloat(points[1].ShapeDistTraveled, 64)
	require.NoError(t, err)
	assert.InDelta(t, degreeMeters/1000, distance, 0.05)

	// The zero length shape is stamped all zeros
	assert.Equal(t, "SH2", points[2].ShapeID)
	assert.Equal(t, "0.0000", points[3].ShapeDistTraveled)
}

func TestRunIsReproducibleWithSeed(t *testing.T) {
	input := writeDataset(t)

	first, err := Run(Options{InputPath: input, OutputDirectory: t.TempDir(), Unit: geometry.UnitMeters, Seed: 7})
	require.NoError(t, err)

	second, err := Run(Options{InputPath: input, OutputDirectory: t.TempDir(), Unit: geometry.UnitMeters, Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunRequiresShapes(t *testing.T) {
	directory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(directory, "trips.txt"), []byte("route_id,service_id,trip_id,shape_id\n"), 0644))

	_, err := Run(Options{InputPath: directory, OutputDirectory: t.TempDir(), Unit: geometry.UnitMeters})
	assert.Error(t, err)
}

func TestBuildCandidatesUsesRepresentativeTrip(t *testing.T) {
	schedule := &gtfs.Schedule{
		Stops: []gtfs.Stop{
			{ID: "S1", Latitude: 0, Longitude: 0.1},
			{ID: "S2", Latitude: 0, Longitude: 0.5},
		},
		Trips: []gtfs.Trip{
			{ID: "T2", ShapeID: "SH1"},
			{ID: "T1", ShapeID: "SH1"},
		},
		StopTimes: []gtfs.StopTime{
			{TripID: "T1", StopID: "S1", StopSequence: 1},
			{TripID: "T1", StopID: "S2", StopSequence: 2},
			{TripID: "T2", StopID: "S2", StopSequence: 1},
		},
	}

	candidates := buildCandidates(schedule)

	// T1 sorts before T2 so its stop sequence defines the shape's candidates
	require.Len(t, candidates["SH1"], 2)
	assert.Equal(t, linearref.Candidate{StopID: "S1", Sequence: 1, Point: geometry.Point{Latitude: 0, Longitude: 0.1}}, candidates["SH1"][0])
}
