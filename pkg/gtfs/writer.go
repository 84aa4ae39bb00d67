package gtfs

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"
)

// WriteFile marshals GTFS records out to a csv text file
func WriteFile(path string, records interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := gocsv.Marshal(records, file); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// FormatDistance renders a distance value the way it appears in GTFS files
func FormatDistance(distance float64) string {
	return strconv.FormatFloat(distance, 'f', 4, 64)
}
