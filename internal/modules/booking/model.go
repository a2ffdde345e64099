// README: Booking aggregate, trip types and status definitions.
package booking

import (
	"time"

	"cabnex/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "inProgress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type TripType string

const (
	TripOneWay TripType = "one"
	TripMulti  TripType = "multi"
	TripRound  TripType = "round"
)

// TripTypeFor classifies an outstation booking; other services have no trip type.
func TripTypeFor(serviceType string, oneWay bool, destinations int) TripType {
	if serviceType != "outstation" {
		return ""
	}
	switch {
	case oneWay:
		return TripOneWay
	case destinations > 1:
		return TripMulti
	default:
		return TripRound
	}
}

type Location struct {
	PlaceID string `json:"place_id"`
	Address string `json:"address"`
}

type Booking struct {
	ID             types.ID
	Code           string
	UserID         types.ID
	CarCategory    string
	ServiceType    string
	TripType       TripType
	PackageType    string
	PackageID      string
	ExactLocation  string
	StartLocation  Location
	Destinations   []Location
	PickupTime     time.Time
	ReturnTime     *time.Time
	DistanceKm     int
	TotalAmount    types.Money
	ReceivedAmount types.Money
	Status         Status
	StatusVersion  int
	AssignedVendor *types.ID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
}

// AssignedTo reports whether vendorID is the vendor assigned to the booking.
func (b *Booking) AssignedTo(vendorID types.ID) bool {
	return b.AssignedVendor != nil && vendorID != "" && *b.AssignedVendor == vendorID
}

// Payment is a gateway capture recorded against a booking.
type Payment struct {
	BookingID types.ID
	OrderID   string
	PaymentID string
	Signature string
	Amount    types.Money
}

// Event is published on every booking status change.
type Event struct {
	BookingID   types.ID  `json:"bookingId"`
	Code        string    `json:"bookingCode"`
	UserID      types.ID  `json:"userId"`
	VendorID    types.ID  `json:"vendorId,omitempty"`
	ServiceType string    `json:"serviceType"`
	FromStatus  Status    `json:"fromStatus"`
	ToStatus    Status    `json:"toStatus"`
	TotalAmount int64     `json:"totalAmount"`
	Currency    string    `json:"currency"`
	At          time.Time `json:"at"`
}

// AllowedTransitions is the booking status flow.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
