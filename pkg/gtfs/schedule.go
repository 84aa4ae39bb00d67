package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/transitkit/shapedist/pkg/geometry"
)

type Schedule struct {
	Agencies      []Agency
	Stops         []Stop
	Routes        []Route
	Trips         []Trip
	StopTimes     []StopTime
	Calendars     []Calendar
	CalendarDates []CalendarDate
	Shapes        []ShapePoint
}

func (schedule *Schedule) fileMap() map[string]interface{} {
	return map[string]interface{}{
		"agency.txt":         &schedule.Agencies,
		"stops.txt":          &schedule.Stops,
		"routes.txt":         &schedule.Routes,
		"trips.txt":          &schedule.Trips,
		"stop_times.txt":     &schedule.StopTimes,
		"calendar.txt":       &schedule.Calendars,
		"calendar_dates.txt": &schedule.CalendarDates,
		"shapes.txt":         &schedule.Shapes,
	}
}

// ParseDataset loads a GTFS dataset from either a zip archive or a directory
// of txt files
func ParseDataset(path string) (*Schedule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}

	if info.IsDir() {
		return ParseDirectory(path)
	}

	return ParseZip(path)
}

func ParseZip(path string) (*Schedule, error) {
	setupCSVReader()

	schedule := &Schedule{}
	fileMap := schedule.fileMap()

	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	for _, zipFile := range archive.File {
		fileName := strings.ToLower(zipFile.Name)
		destination, exists := fileMap[fileName]
		if !exists {
			log.Debug().Str("file", zipFile.Name).Msg("Skipping unknown gtfs file")
			continue
		}

		log.Info().Str("file", zipFile.Name).Msg("Loading file")

		fileReader, err := zipFile.Open()
		if err != nil {
			return nil, err
		}

		err = gocsv.Unmarshal(fileReader, destination)
		fileReader.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", zipFile.Name, err)
		}
	}

	return schedule, nil
}

func ParseDirectory(path string) (*Schedule, error) {
	setupCSVReader()

	schedule := &Schedule{}

	for fileName, destination := range schedule.fileMap() {
		file, err := os.Open(filepath.Join(path, fileName))
		if os.IsNotExist(err) {
			log.Debug().Str("file", fileName).Msg("Dataset has no such file")
			continue
		} else if err != nil {
			return nil, err
		}

		log.Info().Str("file", fileName).Msg("Loading file")

		err = gocsv.Unmarshal(file, destination)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", fileName, err)
		}
	}

	return schedule, nil
}

// Allow us to ignore those naughty records that have missing columns
func setupCSVReader() {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		return r
	})
}

// ShapeLines groups shape points by shape_id into polylines, vertices in
// sequence order
func (schedule *Schedule) ShapeLines() map[string]geometry.Polyline {
	grouped := map[string][]ShapePoint{}
	for _, point := range schedule.Shapes {
		grouped[point.ShapeID] = append(grouped[point.ShapeID], point)
	}

	lines := map[string]geometry.Polyline{}
	for shapeID, points := range grouped {
		sort.Slice(points, func(i, j int) bool { return points[i].Sequence < points[j].Sequence })

		line := geometry.Polyline{Points: make([]geometry.Point, len(points))}
		for i, point := range points {
			line.Points[i] = geometry.Point{Latitude: point.Latitude, Longitude: point.Longitude}
		}

		lines[shapeID] = line
	}

	return lines
}

// TripShapes maps trip_id to shape_id for every trip that has a shape
func (schedule *Schedule) TripShapes() map[string]string {
	tripShapes := map[string]string{}
	for _, trip := range schedule.Trips {
		if trip.ShapeID != "" {
			tripShapes[trip.ID] = trip.ShapeID
		}
	}

	return tripShapes
}

// StopLocations maps stop_id to its location
func (schedule *Schedule) StopLocations() map[string]geometry.Point {
	locations := map[string]geometry.Point{}
	for _, stop := range schedule.Stops {
		locations[stop.ID] = geometry.Point{Latitude: stop.Latitude, Longitude: stop.Longitude}
	}

	return locations
}

// StopTimesByTrip groups stop_times rows by trip, ordered by stop_sequence
func (schedule *Schedule) StopTimesByTrip() map[string][]StopTime {
	grouped := map[string][]StopTime{}
	for _, stopTime := range schedule.StopTimes {
		grouped[stopTime.TripID] = append(grouped[stopTime.TripID], stopTime)
	}

	for _, stopTimes := range grouped {
		sort.Slice(stopTimes, func(i, j int) bool { return stopTimes[i].StopSequence < stopTimes[j].StopSequence })
	}

	return grouped
}
