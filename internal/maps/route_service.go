package maps

import (
	"context"
	"fmt"
	"math"
	"time"

	"googlemaps.github.io/maps"
)

const placeIDPrefix = "place_id:"

// ComputeRoute measures the driving route through the ordered place IDs.
// The first ID is the origin, the last the destination, everything in between
// is a waypoint. Distance and duration are summed over every leg and rounded
// up to whole kilometres and minutes.
func (r *Resolver) ComputeRoute(ctx context.Context, placeIDs []string) (RouteMetrics, error) {
	if len(placeIDs) < 2 {
		return RouteMetrics{}, ErrInvalidRoute
	}

	req := &maps.DirectionsRequest{
		Origin:      placeIDPrefix + placeIDs[0],
		Destination: placeIDPrefix + placeIDs[len(placeIDs)-1],
		Mode:        maps.TravelModeDriving,
	}
	for _, id := range placeIDs[1 : len(placeIDs)-1] {
		req.Waypoints = append(req.Waypoints, placeIDPrefix+id)
	}

	routes, _, err := r.client.Directions(ctx, req)
	if err != nil {
		return RouteMetrics{}, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return RouteMetrics{}, fmt.Errorf("%w: no route found", ErrUnreachable)
	}

	var meters int
	var elapsed time.Duration
	for _, leg := range routes[0].Legs {
		if leg == nil {
			continue
		}
		meters += leg.Distance.Meters
		elapsed += leg.Duration
	}

	return RouteMetrics{
		DistanceKm:  int(math.Ceil(float64(meters) / 1000)),
		DurationMin: int(math.Ceil(elapsed.Minutes())),
	}, nil
}
