package pricing

import (
	"math"
	"time"

	"cabnex/internal/types"
)

type ShapeKind int

const (
	ShapeMultiStop ShapeKind = iota + 1
	ShapeFixedRoute
	ShapeRental
	ShapeFlat
)

// TripShape selects the calculation branch. Build it with MultiStop,
// FixedRoute, Rental or Flat.
type TripShape struct {
	Kind       ShapeKind
	DistanceKm int
	Days       int
	Package    RentalPackage
	FlatPrice  float64
}

func MultiStop(distanceKm, days int) TripShape {
	return TripShape{Kind: ShapeMultiStop, DistanceKm: distanceKm, Days: days}
}

func FixedRoute(distanceKm int) TripShape {
	return TripShape{Kind: ShapeFixedRoute, DistanceKm: distanceKm}
}

func Rental(pkg RentalPackage) TripShape {
	return TripShape{Kind: ShapeRental, Package: pkg}
}

func Flat(price float64) TripShape {
	return TripShape{Kind: ShapeFlat, FlatPrice: price}
}

// TripDays is the number of started days between pickup and return, never
// less than one.
func TripDays(pickup, ret time.Time) int {
	if pickup.IsZero() || ret.IsZero() {
		return 1
	}
	days := int(math.Ceil(ret.Sub(pickup).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// Calculator turns a tariff rule and a trip shape into an itemized quote.
// It performs no I/O and never mutates its inputs.
type Calculator struct {
	Currency string
}

func NewCalculator(currency string) Calculator {
	return Calculator{Currency: currency}
}

func (c Calculator) Quote(rule TariffRule, shape TripShape) PriceQuote {
	q := PriceQuote{Category: rule.Category, Currency: c.Currency}
	distance := float64(max(shape.DistanceKm, 0))

	switch shape.Kind {
	case ShapeMultiStop:
		days := max(shape.Days, 1)
		freeKm := rule.FreeDistancePerDay * float64(days)
		q.Days = days
		q.Nights = days - 1
		q.BaseFare = types.MinorUnits(freeKm * rule.PerDistanceCharge)
		q.DriverAllowance = types.MinorUnits(rule.DriverAllowance * float64(days))
		q.NightCharge = types.MinorUnits(rule.NightCharge * float64(q.Nights))
		q.ExtraDistanceCharge = types.MinorUnits(math.Max(0, distance-freeKm) * rule.ExtraDistanceCharge)
		q.HillCharge = types.MinorUnits(rule.HillCharge)
		q.PermitCharge = types.MinorUnits(rule.PermitCharge)
	case ShapeFixedRoute:
		q.BaseFare = types.MinorUnits(rule.BaseFare)
		q.ExtraDistanceCharge = types.MinorUnits(math.Max(0, distance-rule.FreeDistanceBaseline) * rule.ExtraDistanceCharge)
	case ShapeRental:
		byTime := float64(shape.Package.DurationHours) * rule.PerTimeCharge
		byDistance := float64(shape.Package.DistanceKm) * rule.PerDistanceCharge
		q.BaseFare = types.MinorUnits(math.Max(byTime, byDistance))
	case ShapeFlat:
		// tax-inclusive, no tariff arithmetic
		q.BaseFare = types.MinorUnits(shape.FlatPrice)
		q.Total = q.BaseFare
		return q
	default:
		return q
	}

	q.ExtraDistanceCharge = max(q.ExtraDistanceCharge, 0)
	q.Tax = taxOn(q.Subtotal(), rule.TaxSlab)
	q.Total = q.Subtotal() + q.Tax
	return q
}

// taxOn applies a percentage slab to a minor-unit amount; a slab <= 0 is no tax.
func taxOn(amount int64, slab float64) int64 {
	if slab <= 0 {
		return 0
	}
	return int64(math.Round(float64(amount) * slab / 100))
}
