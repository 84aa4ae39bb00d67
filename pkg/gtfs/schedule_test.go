package gtfs

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtureFiles = map[string]string{
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
		"R1,WEEK,T2,\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:00:00,08:00:00,S1,1\n" +
		"T1,08:05:00,08:05:00,S2,2\n" +
		"T1,08:10:00,08:10:00,S3,3\n",
	// Shape points deliberately out of file order
	"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"SH1,0.0,1.0,2\n" +
		"SH1,0.0,0.0,1\n" +
		"SH1,0.0,2.0,3\n",
}

func writeFixtureDirectory(t *testing.T) string {
	t.Helper()

	directory := t.TempDir()
	for name, contents := range fixtureFiles {
		require.NoError(t, os.WriteFile(filepath.Join(directory, name), []byte(contents), 0644))
	}

	return directory
}

func TestParseDirectory(t *testing.T) {
	schedule, err := ParseDataset(writeFixtureDirectory(t))
	require.NoError(t, err)

	assert.Len(t, schedule.Agencies, 1)
	assert.Len(t, schedule.Stops, 3)
	assert.Len(t, schedule.Routes, 1)
	assert.Len(t, schedule.Trips, 2)
	assert.Len(t, schedule.StopTimes, 3)
	assert.Len(t, schedule.Shapes, 3)

	assert.Equal(t, "Example Transit", schedule.Agencies[0].Name)
	assert.Equal(t, 0.4, schedule.Stops[1].Longitude)
}

func TestParseZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gtfs.zip")

	file, err := os.Create(path)
	require.NoError(t, err)
	writer := zip.NewWriter(file)
	for name, contents := range fixtureFiles {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, file.Close())

	schedule, err := ParseDataset(path)
	require.NoError(t, err)

	assert.Len(t, schedule.Stops, 3)
	assert.Len(t, schedule.Shapes, 3)
}

func TestShapeLinesOrdersBySequence(t *testing.T) {
	schedule, err := ParseDataset(writeFixtureDirectory(t))
	require.NoError(t, err)

	lines := schedule.ShapeLines()
	require.Contains(t, lines, "SH1")

	line := lines["SH1"]
	require.Len(t, line.Points, 3)
	assert.Equal(t, 0.0, line.Points[0].Longitude)
	assert.Equal(t, 1.0, line.Points[1].Longitude)
	assert.Equal(t, 2.0, line.Points[2].Longitude)
}

func TestTripShapesSkipsShapelessTrips(t *testing.T) {
	schedule, err := ParseDataset(writeFixtureDirectory(t))
	require.NoError(t, err)

	tripShapes := schedule.TripShapes()
	assert.Equal(t, map[string]string{"T1": "SH1"}, tripShapes)
}

func TestStopTimesByTrip(t *testing.T) {
	schedule := &Schedule{StopTimes: []StopTime{
		{TripID: "T1", StopID: "S3", StopSequence: 3},
		{TripID: "T1", StopID: "S1", StopSequence: 1},
		{TripID: "T2", StopID: "S1", StopSequence: 1},
	}}

	grouped := schedule.StopTimesByTrip()
	require.Len(t, grouped["T1"], 2)
	assert.Equal(t, "S1", grouped["T1"][0].StopID)
	assert.Equal(t, "S3", grouped["T1"][1].StopID)
	assert.Len(t, grouped["T2"], 1)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stops.txt")

	stops := []Stop{
		{ID: "S1", Name: "First", Latitude: 1.5, Longitude: -0.25},
	}
	require.NoError(t, WriteFile(path, &stops))

	setupCSVReader()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var reread []Stop
	require.NoError(t, gocsv.Unmarshal(file, &reread))
	require.Len(t, reread, 1)
	assert.Equal(t, stops[0], reread[0])
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "0.0000", FormatDistance(0))
	assert.Equal(t, "12345.6789", FormatDistance(12345.67891))
}
