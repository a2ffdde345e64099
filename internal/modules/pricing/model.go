// README: Tariff rules, trip requests and itemized quotes for every service type.
package pricing

import (
	"time"

	"cabnex/internal/types"
)

type ServiceType string

const (
	ServiceOutstation ServiceType = "outstation"
	ServiceRental     ServiceType = "rental"
	ServiceTransfer   ServiceType = "transfer"
	ServiceActivity   ServiceType = "activity"
)

func (t ServiceType) Valid() bool {
	switch t {
	case ServiceOutstation, ServiceRental, ServiceTransfer, ServiceActivity:
		return true
	}
	return false
}

// DirectionHomeToStation makes a transfer validate and key on the station
// (the first destination) instead of the pickup.
const DirectionHomeToStation = "home-to-station"

// DefaultKey names the fallback city and transfer rows.
const DefaultKey = "default"

type Category struct {
	ID       types.ID
	Name     string
	IconURL  string
	ImageURL string
}

// TariffRule is the price terms for one car category in one city or on one
// transfer route. Amounts are in major currency units.
type TariffRule struct {
	Category             Category
	BaseFare             float64
	MarketFare           float64
	FreeDistancePerDay   float64
	FreeHoursPerDay      float64
	FreeDistanceBaseline float64 // transfers only
	PerDistanceCharge    float64
	PerTimeCharge        float64
	ExtraDistanceCharge  float64
	ExtraTimeCharge      float64
	DriverAllowance      float64
	NightCharge          float64
	PermitCharge         float64
	HillCharge           float64
	BufferDistance       int
	TaxSlab              float64
	Active               bool
}

type TariffSource string

const (
	SourceMatched TariffSource = "matched"
	SourceDefault TariffSource = "default"
	SourceNone    TariffSource = "none"
)

// TariffSet is the active rules found for a city or route, and where they came from.
type TariffSet struct {
	Key    string
	Source TariffSource
	Rules  []TariffRule
}

func (s TariffSet) Empty() bool {
	return len(s.Rules) == 0
}

// CityCharges are the per-city addends of a multi-city outstation trip.
type CityCharges struct {
	CityKey    string
	BufferKm   int
	HillCharge float64
	Permits    map[types.ID]float64
}

type RentalPackage struct {
	ID            types.ID
	DistanceKm    int
	DurationHours int
}

type Activity struct {
	ID                 types.ID
	CityID             types.ID
	Title              string
	Description        string
	DurationHours      int
	Price              float64
	CancellationPolicy string
}

type TripRequest struct {
	ServiceType       ServiceType
	PickupLocation    string
	Destinations      []string
	PickupTime        time.Time
	ReturnTime        time.Time
	OneWay            bool
	PackageID         string
	TransferDirection string
}

// PriceQuote is one category priced for one trip. Amounts are minor units and
// Total is always the sum of the itemized fields.
type PriceQuote struct {
	Category            Category
	Currency            string
	BaseFare            int64
	ExtraDistanceCharge int64
	DriverAllowance     int64
	NightCharge         int64
	HillCharge          int64
	PermitCharge        int64
	Tax                 int64
	Total               int64
	Days                int
	Nights              int
}

func (q PriceQuote) Subtotal() int64 {
	return q.BaseFare + q.ExtraDistanceCharge + q.DriverAllowance + q.NightCharge + q.HillCharge + q.PermitCharge
}

// CategoryQuote pairs a rule with its quote. Quote is nil in a browse response.
type CategoryQuote struct {
	Rule  TariffRule
	Quote *PriceQuote
}

type ActivityQuote struct {
	Activity Activity
	Quote    PriceQuote
}

// QuoteResult is the assembled response of one quote request.
type QuoteResult struct {
	ServiceType ServiceType
	City        string
	DistanceKm  int
	DurationMin int
	Source      TariffSource
	Categories  []CategoryQuote
	Activities  []ActivityQuote
	Message     string
}
