package maps

import (
	"context"
	"errors"
	"testing"
	"time"

	"googlemaps.github.io/maps"
)

type fakeClient struct {
	details    maps.PlaceDetailsResult
	detailsErr error
	legs       []*maps.Leg
	dirErr     error
	lastDir    *maps.DirectionsRequest
}

func (f *fakeClient) PlaceDetails(_ context.Context, _ *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error) {
	return f.details, f.detailsErr
}

func (f *fakeClient) Directions(_ context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error) {
	f.lastDir = r
	if f.dirErr != nil {
		return nil, nil, f.dirErr
	}
	if f.legs == nil {
		return nil, nil, nil
	}
	return []maps.Route{{Legs: f.legs}}, nil, nil
}

func leg(meters int, d time.Duration) *maps.Leg {
	l := &maps.Leg{Duration: d}
	l.Distance.Meters = meters
	return l
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"New Delhi", "new-delhi"},
		{"  Shimla ", "shimla"},
		{"Navi   Mumbai\tWest", "navi-mumbai-west"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveLocation_CityKeyFromFirstLocality(t *testing.T) {
	client := &fakeClient{details: maps.PlaceDetailsResult{
		PlaceID: "p1",
		Name:    "Connaught Place",
		AddressComponents: []maps.AddressComponent{
			{LongName: "Connaught Place", Types: []string{"sublocality"}},
			{LongName: "New Delhi", Types: []string{"locality", "political"}},
			{LongName: "Delhi", Types: []string{"administrative_area_level_1"}},
		},
	}}
	r := NewResolverWithClient(client)

	p, err := r.ResolveLocation(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ResolveLocation() error = %v", err)
	}
	if p.CityKey != "new-delhi" {
		t.Errorf("CityKey = %q, want new-delhi", p.CityKey)
	}
	if p.Name != "Connaught Place" || p.PlaceID != "p1" {
		t.Errorf("unexpected place: %+v", p)
	}
}

func TestResolveLocation_FallsBackToAdminArea(t *testing.T) {
	client := &fakeClient{details: maps.PlaceDetailsResult{
		Name: "Rohtang Pass",
		AddressComponents: []maps.AddressComponent{
			{LongName: "Himachal Pradesh", Types: []string{"administrative_area_level_1"}},
		},
	}}
	p, err := NewResolverWithClient(client).ResolveLocation(context.Background(), "p2")
	if err != nil {
		t.Fatalf("ResolveLocation() error = %v", err)
	}
	if p.CityKey != "himachal-pradesh" {
		t.Errorf("CityKey = %q, want himachal-pradesh", p.CityKey)
	}
	if p.PlaceID != "p2" {
		t.Errorf("PlaceID = %q, want request id p2", p.PlaceID)
	}
}

func TestResolveLocation_ProviderFailure(t *testing.T) {
	client := &fakeClient{detailsErr: errors.New("maps: INVALID_REQUEST - ")}
	_, err := NewResolverWithClient(client).ResolveLocation(context.Background(), "bad")
	if !errors.Is(err, ErrPlaceNotFound) {
		t.Fatalf("expected ErrPlaceNotFound, got %v", err)
	}

	_, err = NewResolverWithClient(client).ResolveLocation(context.Background(), " ")
	if !errors.Is(err, ErrPlaceNotFound) {
		t.Fatalf("blank id: expected ErrPlaceNotFound, got %v", err)
	}
}

func TestResolveLocation_TimeoutIsNotFound(t *testing.T) {
	client := &fakeClient{detailsErr: context.DeadlineExceeded}
	_, err := NewResolverWithClient(client).ResolveLocation(context.Background(), "p1")
	if !errors.Is(err, ErrPlaceNotFound) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrPlaceNotFound wrapping deadline, got %v", err)
	}
}

func TestComputeRoute_SumsEveryLegAndRoundsUp(t *testing.T) {
	client := &fakeClient{legs: []*maps.Leg{
		leg(120_400, 90*time.Minute+10*time.Second),
		leg(80_001, 60*time.Minute),
		leg(999, 30*time.Second),
	}}
	r := NewResolverWithClient(client)

	got, err := r.ComputeRoute(context.Background(), []string{"a", "b", "c", "a"})
	if err != nil {
		t.Fatalf("ComputeRoute() error = %v", err)
	}
	// 201400 m -> 202 km, 150m40s -> 151 min
	if got.DistanceKm != 202 {
		t.Errorf("DistanceKm = %d, want 202", got.DistanceKm)
	}
	if got.DurationMin != 151 {
		t.Errorf("DurationMin = %d, want 151", got.DurationMin)
	}

	if client.lastDir.Origin != "place_id:a" || client.lastDir.Destination != "place_id:a" {
		t.Errorf("unexpected origin/destination: %s -> %s", client.lastDir.Origin, client.lastDir.Destination)
	}
	wantWaypoints := []string{"place_id:b", "place_id:c"}
	if len(client.lastDir.Waypoints) != len(wantWaypoints) {
		t.Fatalf("waypoints = %v, want %v", client.lastDir.Waypoints, wantWaypoints)
	}
	for i, w := range wantWaypoints {
		if client.lastDir.Waypoints[i] != w {
			t.Errorf("waypoint[%d] = %s, want %s", i, client.lastDir.Waypoints[i], w)
		}
	}
}

func TestComputeRoute_TwoPointsHasNoWaypoints(t *testing.T) {
	client := &fakeClient{legs: []*maps.Leg{leg(35_000, 40*time.Minute)}}
	got, err := NewResolverWithClient(client).ComputeRoute(context.Background(), []string{"home", "station"})
	if err != nil {
		t.Fatalf("ComputeRoute() error = %v", err)
	}
	if got.DistanceKm != 35 || got.DurationMin != 40 {
		t.Errorf("got %+v, want 35km/40min", got)
	}
	if len(client.lastDir.Waypoints) != 0 {
		t.Errorf("expected no waypoints, got %v", client.lastDir.Waypoints)
	}
}

func TestComputeRoute_MonotonicInWaypoints(t *testing.T) {
	base := []*maps.Leg{leg(10_000, 10*time.Minute)}
	extended := []*maps.Leg{leg(10_000, 10*time.Minute), leg(0, 0)}

	r1, err := NewResolverWithClient(&fakeClient{legs: base}).ComputeRoute(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := NewResolverWithClient(&fakeClient{legs: extended}).ComputeRoute(context.Background(), []string{"a", "b", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if r2.DistanceKm < r1.DistanceKm {
		t.Errorf("adding a waypoint decreased distance: %d < %d", r2.DistanceKm, r1.DistanceKm)
	}
}

func TestComputeRoute_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
		ids    []string
		want   error
	}{
		{"single point", &fakeClient{}, []string{"a"}, ErrInvalidRoute},
		{"no points", &fakeClient{}, nil, ErrInvalidRoute},
		{"non-OK status", &fakeClient{dirErr: errors.New("maps: ZERO_RESULTS - ")}, []string{"a", "b"}, ErrUnreachable},
		{"empty routes", &fakeClient{}, []string{"a", "b"}, ErrUnreachable},
		{"cancelled", &fakeClient{dirErr: context.Canceled}, []string{"a", "b"}, ErrUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolverWithClient(tt.client).ComputeRoute(context.Background(), tt.ids)
			if !errors.Is(err, tt.want) {
				t.Errorf("ComputeRoute() error = %v, want %v", err, tt.want)
			}
		})
	}
}
