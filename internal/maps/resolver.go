// README: Route/distance resolver over the Google Maps Places and Directions APIs.
package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

var (
	ErrPlaceNotFound = errors.New("place not found")
	ErrUnreachable   = errors.New("route unreachable")
	ErrInvalidRoute  = errors.New("route needs at least two locations")
)

// Client is the subset of *maps.Client the resolver uses.
type Client interface {
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// Place is a validated location with the key used by the tariff tables.
type Place struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"name"`
	CityKey string `json:"city_key"`
}

// RouteMetrics are whole kilometres and whole minutes, both rounded up.
type RouteMetrics struct {
	DistanceKm  int
	DurationMin int
}

// Resolver validates place IDs and measures driving routes between them.
type Resolver struct {
	client Client
}

// NewResolver creates a Resolver backed by the Google Maps API with the given key.
func NewResolver(apiKey string) (*Resolver, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Resolver{client: client}, nil
}

func NewResolverWithClient(client Client) *Resolver {
	return &Resolver{client: client}
}
