// README: Quote orchestrator; resolves locations and tariffs, then prices every active category.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cabnex/internal/maps"
	"cabnex/internal/types"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("not found")
	ErrInvalidLocation  = errors.New("invalid pickup location")
	ErrRouteUnavailable = errors.New("error fetching distance data")
)

const (
	msgNoCategories = "no categories available"
	msgNoActivities = "no activities available"
)

type Repository interface {
	ActiveTariffsFor(ctx context.Context, cityKey string) (TariffSet, error)
	ActiveTariffsForRoute(ctx context.Context, placeID, routeKey string) (TariffSet, error)
	CityCharges(ctx context.Context, cityKey string) (CityCharges, bool, error)
	RentalPackage(ctx context.Context, id types.ID) (RentalPackage, error)
	ActiveActivities(ctx context.Context, cityKey string) ([]Activity, error)
}

type Service struct {
	repo     Repository
	resolver maps.LocationResolver
	calc     Calculator
}

func NewService(repo Repository, resolver maps.LocationResolver, currency string) *Service {
	return &Service{repo: repo, resolver: resolver, calc: NewCalculator(currency)}
}

// Quote prices a trip request for every active category of the resolved city
// or transfer route. Resolver failures surface as ErrInvalidLocation or
// ErrRouteUnavailable; a missing package is ErrNotFound; an empty tariff set
// is a successful response with a message.
func (s *Service) Quote(ctx context.Context, req TripRequest) (QuoteResult, error) {
	if err := validate(req); err != nil {
		return QuoteResult{}, err
	}

	if req.ServiceType == ServiceTransfer {
		return s.quoteTransfer(ctx, req)
	}

	pickup, err := s.resolveLocation(ctx, req.PickupLocation)
	if err != nil {
		return QuoteResult{}, err
	}

	switch {
	case len(req.Destinations) > 0:
		return s.quoteOutstation(ctx, req, pickup)
	case req.ServiceType == ServiceRental:
		return s.quoteRental(ctx, req, pickup)
	case req.ServiceType == ServiceActivity:
		return s.quoteActivities(ctx, req, pickup)
	default:
		return s.browse(ctx, req, pickup)
	}
}

func validate(req TripRequest) error {
	if !req.ServiceType.Valid() {
		return fmt.Errorf("%w: unknown serviceType %q", ErrBadRequest, req.ServiceType)
	}
	if strings.TrimSpace(req.PickupLocation) == "" {
		return fmt.Errorf("%w: pickupLocation is required", ErrBadRequest)
	}
	for _, d := range req.Destinations {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("%w: destinations must not contain empty ids", ErrBadRequest)
		}
	}
	if req.ServiceType == ServiceTransfer && len(req.Destinations) == 0 {
		return fmt.Errorf("%w: transfer needs a destination", ErrBadRequest)
	}
	if req.ServiceType == ServiceRental && len(req.Destinations) == 0 {
		if req.PackageID == "" {
			return fmt.Errorf("%w: packageId is required", ErrBadRequest)
		}
		if _, err := uuid.Parse(req.PackageID); err != nil {
			return fmt.Errorf("%w: invalid packageId", ErrBadRequest)
		}
	}
	return nil
}

func (s *Service) quoteTransfer(ctx context.Context, req TripRequest) (QuoteResult, error) {
	station := req.Destinations[0]
	validated := req.PickupLocation
	if req.TransferDirection == DirectionHomeToStation {
		validated = station
	}

	place, err := s.resolveLocation(ctx, validated)
	if err != nil {
		return QuoteResult{}, err
	}

	set, err := s.repo.ActiveTariffsForRoute(ctx, place.PlaceID, maps.NormalizeKey(place.Name))
	if err != nil {
		return QuoteResult{}, fmt.Errorf("transfer tariffs: %w", err)
	}

	metrics, err := s.computeRoute(ctx, []string{req.PickupLocation, station})
	if err != nil {
		return QuoteResult{}, err
	}

	shape := FixedRoute(metrics.DistanceKm)
	res := s.newResult(req, place.CityKey, set)
	res.DistanceKm = metrics.DistanceKm
	res.DurationMin = metrics.DurationMin
	for _, rule := range set.Rules {
		q := s.calc.Quote(rule, shape)
		res.Categories = append(res.Categories, CategoryQuote{Rule: rule, Quote: &q})
	}
	return res, nil
}

func (s *Service) quoteOutstation(ctx context.Context, req TripRequest, pickup maps.Place) (QuoteResult, error) {
	set, err := s.repo.ActiveTariffsFor(ctx, pickup.CityKey)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("city tariffs: %w", err)
	}

	chain := make([]string, 0, len(req.Destinations)+2)
	chain = append(chain, req.PickupLocation)
	chain = append(chain, req.Destinations...)
	if !req.OneWay {
		chain = append(chain, req.PickupLocation)
	}
	metrics, err := s.computeRoute(ctx, chain)
	if err != nil {
		return QuoteResult{}, err
	}

	touched, err := s.destinationCharges(ctx, req.Destinations)
	if err != nil {
		return QuoteResult{}, err
	}

	distance := metrics.DistanceKm + touched.BufferKm
	shape := MultiStop(distance, TripDays(req.PickupTime, req.ReturnTime))

	res := s.newResult(req, pickup.CityKey, set)
	res.DistanceKm = distance
	res.DurationMin = metrics.DurationMin
	for _, rule := range set.Rules {
		q := s.calc.Quote(withCityCharges(rule, touched), shape)
		res.Categories = append(res.Categories, CategoryQuote{Rule: rule, Quote: &q})
	}
	return res, nil
}

// withCityCharges returns the rule a multi-city trip is billed on: the hill
// charge is the sum over the destination cities and the permit is the
// pickup city's plus every destination city's permit for the same category.
func withCityCharges(rule TariffRule, touched CityCharges) TariffRule {
	eff := rule
	eff.HillCharge = touched.HillCharge
	eff.PermitCharge = rule.PermitCharge + touched.Permits[rule.Category.ID]
	return eff
}

// destinationCharges looks up every destination's city concurrently and sums
// their buffers, hill charges and permits. Unknown cities contribute nothing.
func (s *Service) destinationCharges(ctx context.Context, destinations []string) (CityCharges, error) {
	found := make([]CityCharges, len(destinations))

	g, gctx := errgroup.WithContext(ctx)
	for i, placeID := range destinations {
		i, placeID := i, placeID
		g.Go(func() error {
			place, err := s.resolver.ResolveLocation(gctx, placeID)
			if err != nil {
				log.Printf("pricing: destination lookup failed: place_id=%s err=%v", placeID, err)
				return ErrRouteUnavailable
			}
			charges, ok, err := s.repo.CityCharges(gctx, place.CityKey)
			if err != nil {
				return fmt.Errorf("city charges %s: %w", place.CityKey, err)
			}
			if ok {
				found[i] = charges
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CityCharges{}, err
	}

	total := CityCharges{Permits: map[types.ID]float64{}}
	for _, c := range found {
		total.BufferKm += c.BufferKm
		total.HillCharge += c.HillCharge
		for id, permit := range c.Permits {
			total.Permits[id] += permit
		}
	}
	return total, nil
}

func (s *Service) quoteRental(ctx context.Context, req TripRequest, pickup maps.Place) (QuoteResult, error) {
	pkg, err := s.repo.RentalPackage(ctx, types.ID(req.PackageID))
	if errors.Is(err, ErrNotFound) {
		return QuoteResult{}, fmt.Errorf("%w: selected rental package not found", ErrNotFound)
	}
	if err != nil {
		return QuoteResult{}, fmt.Errorf("rental package: %w", err)
	}

	set, err := s.repo.ActiveTariffsFor(ctx, pickup.CityKey)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("city tariffs: %w", err)
	}

	shape := Rental(pkg)
	res := s.newResult(req, pickup.CityKey, set)
	res.DistanceKm = pkg.DistanceKm
	res.DurationMin = pkg.DurationHours * 60
	for _, rule := range set.Rules {
		q := s.calc.Quote(rule, shape)
		res.Categories = append(res.Categories, CategoryQuote{Rule: rule, Quote: &q})
	}
	return res, nil
}

func (s *Service) quoteActivities(ctx context.Context, req TripRequest, pickup maps.Place) (QuoteResult, error) {
	activities, err := s.repo.ActiveActivities(ctx, pickup.CityKey)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("activities: %w", err)
	}

	res := QuoteResult{ServiceType: req.ServiceType, City: pickup.CityKey, Source: SourceMatched}
	if len(activities) == 0 {
		res.Source = SourceNone
		res.Message = msgNoActivities
	}
	for _, a := range activities {
		res.Activities = append(res.Activities, ActivityQuote{
			Activity: a,
			Quote:    s.calc.Quote(TariffRule{}, Flat(a.Price)),
		})
	}
	return res, nil
}

// browse lists the active categories unpriced.
func (s *Service) browse(ctx context.Context, req TripRequest, pickup maps.Place) (QuoteResult, error) {
	set, err := s.repo.ActiveTariffsFor(ctx, pickup.CityKey)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("city tariffs: %w", err)
	}
	res := s.newResult(req, pickup.CityKey, set)
	for _, rule := range set.Rules {
		res.Categories = append(res.Categories, CategoryQuote{Rule: rule})
	}
	return res, nil
}

func (s *Service) newResult(req TripRequest, city string, set TariffSet) QuoteResult {
	res := QuoteResult{
		ServiceType: req.ServiceType,
		City:        city,
		Source:      set.Source,
		Categories:  make([]CategoryQuote, 0, len(set.Rules)),
	}
	if set.Empty() {
		res.Message = msgNoCategories
	}
	return res
}

func (s *Service) resolveLocation(ctx context.Context, placeID string) (maps.Place, error) {
	place, err := s.resolver.ResolveLocation(ctx, placeID)
	if err != nil {
		log.Printf("pricing: resolve location failed: place_id=%s err=%v", placeID, err)
		return maps.Place{}, ErrInvalidLocation
	}
	return place, nil
}

func (s *Service) computeRoute(ctx context.Context, placeIDs []string) (maps.RouteMetrics, error) {
	metrics, err := s.resolver.ComputeRoute(ctx, placeIDs)
	if err != nil {
		log.Printf("pricing: compute route failed: waypoints=%d err=%v", len(placeIDs), err)
		return maps.RouteMetrics{}, ErrRouteUnavailable
	}
	return metrics, nil
}
