package timelapse

import (
	"context"
	"time"

	"github.com/transitkit/shapedist/pkg/geometry"
)

// ReachPolygon is one service area polygon produced by a solver: the area
// reachable from a facility between two travel cost breaks at a given time
type ReachPolygon struct {
	Name       string
	FacilityID string
	FromBreak  float64
	ToBreak    float64

	Exterior []geometry.Point
	Holes    [][]geometry.Point
}

// Solver is the external network analysis engine. Implementations are
// expected to hold the network dataset, facilities and break settings; the
// accumulator only varies the time of day between solves.
type Solver interface {
	Solve(ctx context.Context, timeOfDay time.Time) ([]ReachPolygon, error)
}
