package linearref

import (
	"math/rand"
	"sort"
	"time"

	"github.com/transitkit/shapedist/pkg/geometry"
	"github.com/transitkit/shapedist/pkg/util"
	"golang.org/x/exp/maps"
)

// Candidate is a stop to be located along a shape. The sequence number comes
// from the schedule data and may be wrong or duplicated - the resolver treats
// it as a hint, not a guarantee.
type Candidate struct {
	StopID   string
	Sequence int
	Point    geometry.Point
}

// State tracks how a candidate ended up with its measure
type State int

const (
	StateUnresolved State = iota
	StateResolved
	// StateForced marks a candidate that exhausted its retry budget and was
	// projected directly onto the full line with no neighbour constraint
	StateForced
)

// Assignment maps every input stop to its geodesic distance traveled from the
// shape's start. OrderOK reports whether sorting stops by measured distance
// agrees with sorting them by nominal sequence.
type Assignment struct {
	Distances map[string]float64
	Forced    []int
	OrderOK   bool
}

// Resolver linear references stops along shapes. Not safe for concurrent use;
// create one per goroutine.
type Resolver struct {
	rand *rand.Rand
}

// NewResolver creates a resolver driven by the given random source. A nil
// source gets seeded from the clock.
func NewResolver(source *rand.Rand) *Resolver {
	if source == nil {
		source = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Resolver{rand: source}
}

// Resolve assigns a distance along the line to every candidate and converts it
// to a geodesic distance traveled in the given unit.
//
// Stops are processed in random order. Each stop is projected onto the
// sub-segment bounded by its already resolved neighbours (by nominal
// sequence), so a shape that self-intersects or backtracks can't pull a stop
// to the wrong pass of the line. When a projection lands exactly on a
// neighbour's location the neighbour is evicted and redone later, since one
// of the two must have been referenced badly. Stops that exceed their retry
// budget are force-projected onto the full line so the loop always
// terminates. This is best effort: pathological shapes may still come out
// order-inconsistent, which is reported through OrderOK rather than fixed.
func (r *Resolver) Resolve(line geometry.Polyline, candidates []Candidate, unit geometry.Unit) Assignment {
	assignment := Assignment{
		Distances: map[string]float64{},
		OrderOK:   true,
	}

	// Duplicated sequence numbers collapse to the last candidate seen
	bySequence := map[int]Candidate{}
	for _, candidate := range candidates {
		bySequence[candidate.Sequence] = candidate
	}

	if len(bySequence) == 0 {
		return assignment
	}

	maxMeasure := line.Length()
	if maxMeasure == 0 {
		// Degenerate shape. Every stop sits at the start
		for _, candidate := range bySequence {
			assignment.Distances[candidate.StopID] = 0
		}
		return assignment
	}

	totalCandidates := len(bySequence)
	worklist := maps.Keys(bySequence)
	attempts := map[int]int{}
	resolved := map[int]float64{}
	states := map[int]State{}

	for len(worklist) > 0 {
		sequence := worklist[r.rand.Intn(len(worklist))]
		candidate := bySequence[sequence]

		if attempts[sequence] > totalCandidates {
			// Retry budget exhausted - assume the ordering conflict can't be
			// untangled and take the raw projection
			resolved[sequence] = line.MeasureAlongLine(candidate.Point)
			states[sequence] = StateForced
			util.InPlaceFilter(&worklist, func(s int) bool { return s != sequence })
			continue
		}
		attempts[sequence]++

		used := append(maps.Keys(resolved), sequence)
		sort.Ints(used)
		position := sort.SearchInts(used, sequence)

		startMeasure := 0.0
		previousSequence := 0
		hasPrevious := position > 0
		if hasPrevious {
			previousSequence = used[position-1]
			startMeasure = resolved[previousSequence]
		}

		endMeasure := maxMeasure
		nextSequence := 0
		hasNext := position < len(used)-1
		if hasNext {
			nextSequence = used[position+1]
			endMeasure = resolved[nextSequence]
		}

		segment := line.SubSegment(startMeasure, endMeasure)
		segmentLength := segment.Length()

		if segmentLength == 0 {
			// Both neighbours resolved to the same measure, which can't be
			// interpreted. Throw them back and retry everyone later
			if hasPrevious {
				delete(resolved, previousSequence)
				states[previousSequence] = StateUnresolved
				worklist = append(worklist, previousSequence)
			}
			if hasNext {
				delete(resolved, nextSequence)
				states[nextSequence] = StateUnresolved
				worklist = append(worklist, nextSequence)
			}
			continue
		}

		measure := segment.MeasureAlongLine(candidate.Point)

		if hasPrevious && measure == 0 {
			if candidate.Point.Equals(bySequence[previousSequence].Point) {
				// Co-located with the previous stop, share its measure
				resolved[sequence] = resolved[previousSequence]
				states[sequence] = StateResolved
				util.InPlaceFilter(&worklist, func(s int) bool { return s != sequence })
				continue
			}

			// Snapped to the very start of the segment, so this stop or the
			// previous one was referenced badly. Evict the previous one
			delete(resolved, previousSequence)
			states[previousSequence] = StateUnresolved
			worklist = append(worklist, previousSequence)
			continue
		}

		if hasNext && measure == segmentLength {
			if candidate.Point.Equals(bySequence[nextSequence].Point) {
				resolved[sequence] = resolved[nextSequence]
				states[sequence] = StateResolved
				util.InPlaceFilter(&worklist, func(s int) bool { return s != sequence })
				continue
			}

			delete(resolved, nextSequence)
			states[nextSequence] = StateUnresolved
			worklist = append(worklist, nextSequence)
			continue
		}

		resolved[sequence] = startMeasure + measure
		states[sequence] = StateResolved
		util.InPlaceFilter(&worklist, func(s int) bool { return s != sequence })
	}

	// Convert planar measures to geodesic distance traveled
	type sequenceDistance struct {
		Sequence int
		Distance float64
	}
	var pairs []sequenceDistance

	sequences := maps.Keys(resolved)
	sort.Ints(sequences)
	for _, sequence := range sequences {
		distance := line.SubSegment(0, resolved[sequence]).GeodesicLength(unit)
		assignment.Distances[bySequence[sequence].StopID] = distance
		pairs = append(pairs, sequenceDistance{Sequence: sequence, Distance: distance})

		if states[sequence] == StateForced {
			assignment.Forced = append(assignment.Forced, sequence)
		}
	}

	// Forced resolutions go through the same check as everything else - a
	// forced value that lands out of order flags the shape
	bySequenceOrder := make([]sequenceDistance, len(pairs))
	byDistanceOrder := make([]sequenceDistance, len(pairs))
	copy(bySequenceOrder, pairs)
	copy(byDistanceOrder, pairs)
	sort.Slice(bySequenceOrder, func(i, j int) bool {
		if bySequenceOrder[i].Sequence != bySequenceOrder[j].Sequence {
			return bySequenceOrder[i].Sequence < bySequenceOrder[j].Sequence
		}
		return bySequenceOrder[i].Distance < bySequenceOrder[j].Distance
	})
	sort.Slice(byDistanceOrder, func(i, j int) bool {
		if byDistanceOrder[i].Distance != byDistanceOrder[j].Distance {
			return byDistanceOrder[i].Distance < byDistanceOrder[j].Distance
		}
		return byDistanceOrder[i].Sequence < byDistanceOrder[j].Sequence
	})

	for i := range bySequenceOrder {
		if bySequenceOrder[i] != byDistanceOrder[i] {
			assignment.OrderOK = false
			break
		}
	}

	return assignment
}
