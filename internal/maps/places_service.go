package maps

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"googlemaps.github.io/maps"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeKey lower-cases a place name and joins its words with hyphens,
// matching how city and transfer names are keyed in the tariff tables.
func NormalizeKey(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ResolveLocation looks up a place ID and derives its city key from the first
// locality or administrative_area_level_1 address component. Any provider
// failure, including a non-OK status, is reported as ErrPlaceNotFound.
func (r *Resolver) ResolveLocation(ctx context.Context, placeID string) (Place, error) {
	if strings.TrimSpace(placeID) == "" {
		return Place{}, ErrPlaceNotFound
	}
	res, err := r.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskName,
			maps.PlaceDetailsFieldMaskPlaceID,
			maps.PlaceDetailsFieldMaskAddressComponent,
		},
	})
	if err != nil {
		return Place{}, fmt.Errorf("%w: %w", ErrPlaceNotFound, err)
	}

	id := res.PlaceID
	if id == "" {
		id = placeID
	}
	return Place{
		PlaceID: id,
		Name:    res.Name,
		CityKey: cityKey(res.AddressComponents),
	}, nil
}

func cityKey(components []maps.AddressComponent) string {
	for _, c := range components {
		if hasType(c.Types, "locality") || hasType(c.Types, "administrative_area_level_1") {
			return NormalizeKey(c.LongName)
		}
	}
	return ""
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
