// README: Booking service implements creation, status transitions and payment confirmation.
package booking

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"cabnex/internal/modules/pricing"
	"cabnex/internal/types"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("booking not found")
	ErrForbidden        = errors.New("booking belongs to another account")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrConflict         = errors.New("booking state conflict")
	ErrInvalidSignature = errors.New("invalid signature")
)

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	ListByUser(ctx context.Context, userID types.ID) ([]Booking, error)
	ListByVendor(ctx context.Context, vendorID types.ID) ([]Booking, error)
	// UpdateStatus also records vendorID when it is non-nil.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, vendorID *types.ID) (bool, error)
	RecordPayment(ctx context.Context, p Payment, from Status, version int) (bool, error)
}

// Publisher delivers booking events; routing keys are "booking.<status>"
// plus "booking.assigned".
type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

type Service struct {
	repo          Repository
	publisher     Publisher
	paymentSecret string
	currency      string
	now           func() time.Time
}

func NewService(repo Repository, publisher Publisher, paymentSecret, currency string) *Service {
	return &Service{
		repo:          repo,
		publisher:     publisher,
		paymentSecret: paymentSecret,
		currency:      currency,
		now:           time.Now,
	}
}

type CreateCommand struct {
	UserID        types.ID
	CarCategory   string
	ServiceType   string
	PackageID     string
	ExactLocation string
	StartLocation Location
	Destinations  []Location
	PickupTime    time.Time
	ReturnTime    *time.Time
	OneWay        bool
	DistanceKm    int
	TotalAmount   int64
}

type CancelCommand struct {
	BookingID types.ID
	UserID    types.ID
}

type AssignCommand struct {
	BookingID types.ID
	VendorID  types.ID
}

// VendorCommand is issued by a vendor acting on a booking assigned to them.
type VendorCommand struct {
	BookingID types.ID
	VendorID  types.ID
}

type PaymentCommand struct {
	BookingID types.ID
	UserID    types.ID
	OrderID   string
	PaymentID string
	Signature string
	Amount    int64
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	service := pricing.ServiceType(strings.ToLower(cmd.ServiceType))
	if cmd.UserID == "" || !service.Valid() {
		return nil, ErrBadRequest
	}
	if strings.TrimSpace(cmd.StartLocation.PlaceID) == "" || cmd.PickupTime.IsZero() || cmd.TotalAmount <= 0 {
		return nil, ErrBadRequest
	}
	switch service {
	case pricing.ServiceOutstation, pricing.ServiceTransfer:
		if len(cmd.Destinations) == 0 {
			return nil, ErrBadRequest
		}
	case pricing.ServiceRental, pricing.ServiceActivity:
		if cmd.PackageID == "" {
			return nil, ErrBadRequest
		}
	}
	if cmd.ReturnTime != nil && cmd.ReturnTime.Before(cmd.PickupTime) {
		return nil, ErrBadRequest
	}

	now := s.now()
	b := &Booking{
		ID:             types.ID(uuid.NewString()),
		UserID:         cmd.UserID,
		CarCategory:    cmd.CarCategory,
		ServiceType:    string(service),
		TripType:       TripTypeFor(string(service), cmd.OneWay, len(cmd.Destinations)),
		PackageType:    packageType(service),
		PackageID:      cmd.PackageID,
		ExactLocation:  cmd.ExactLocation,
		StartLocation:  cmd.StartLocation,
		Destinations:   cmd.Destinations,
		PickupTime:     cmd.PickupTime,
		ReturnTime:     cmd.ReturnTime,
		DistanceKm:     cmd.DistanceKm,
		TotalAmount:    types.Money{Amount: cmd.TotalAmount, Currency: s.currency},
		ReceivedAmount: types.Money{Amount: 0, Currency: s.currency},
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	s.publish(ctx, statusKey(StatusPending), b, StatusNone, StatusPending)
	return b, nil
}

// load fetches a booking by id; ids that are not UUIDs cannot exist.
func (s *Service) load(ctx context.Context, id types.ID) (*Booking, error) {
	if _, err := uuid.Parse(string(id)); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Get returns a booking owned by userID.
func (s *Service) Get(ctx context.Context, id, userID types.ID) (*Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID) ([]Booking, error) {
	if userID == "" {
		return nil, ErrBadRequest
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	b, err := s.Get(ctx, cmd.BookingID, cmd.UserID)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, StatusCancelled)
}

func (s *Service) ListByVendor(ctx context.Context, vendorID types.ID) ([]Booking, error) {
	if vendorID == "" {
		return nil, ErrBadRequest
	}
	return s.repo.ListByVendor(ctx, vendorID)
}

// Assign hands a paid booking to a vendor. Reassignment is allowed until
// the trip starts.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) (*Booking, error) {
	if cmd.VendorID == "" {
		return nil, ErrBadRequest
	}
	b, err := s.load(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusConfirmed {
		return nil, ErrInvalidState
	}
	vendor := cmd.VendorID
	ok, err := s.repo.UpdateStatus(ctx, b.ID, b.Status, b.Status, b.StatusVersion, &vendor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	b.AssignedVendor = &vendor
	b.StatusVersion++
	b.UpdatedAt = s.now()
	s.publish(ctx, "booking.assigned", b, b.Status, b.Status)
	return b, nil
}

// Start moves a confirmed booking into progress; only the assigned vendor may.
func (s *Service) Start(ctx context.Context, cmd VendorCommand) error {
	b, err := s.assignedBooking(ctx, cmd)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, StatusInProgress)
}

// Complete closes a trip in progress; only the assigned vendor may.
func (s *Service) Complete(ctx context.Context, cmd VendorCommand) error {
	b, err := s.assignedBooking(ctx, cmd)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, StatusCompleted)
}

func (s *Service) assignedBooking(ctx context.Context, cmd VendorCommand) (*Booking, error) {
	if cmd.VendorID == "" {
		return nil, ErrForbidden
	}
	b, err := s.load(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.AssignedVendor == nil {
		return nil, ErrInvalidState
	}
	if !b.AssignedTo(cmd.VendorID) {
		return nil, ErrForbidden
	}
	return b, nil
}

// ConfirmPayment verifies the gateway signature over "orderId|paymentId",
// records the captured amount and confirms the booking. The signature does
// not cover the amount, so it must equal the booking total.
func (s *Service) ConfirmPayment(ctx context.Context, cmd PaymentCommand) (*Booking, error) {
	if cmd.OrderID == "" || cmd.PaymentID == "" || cmd.Signature == "" || cmd.Amount <= 0 {
		return nil, ErrBadRequest
	}
	if !VerifySignature(s.paymentSecret, cmd.OrderID, cmd.PaymentID, cmd.Signature) {
		return nil, ErrInvalidSignature
	}

	b, err := s.Get(ctx, cmd.BookingID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, StatusConfirmed) {
		return nil, ErrInvalidState
	}
	if cmd.Amount != b.TotalAmount.Amount {
		return nil, fmt.Errorf("%w: paid %d, booking total %d", ErrBadRequest, cmd.Amount, b.TotalAmount.Amount)
	}

	payment := Payment{
		BookingID: b.ID,
		OrderID:   cmd.OrderID,
		PaymentID: cmd.PaymentID,
		Signature: cmd.Signature,
		Amount:    types.Money{Amount: cmd.Amount, Currency: s.currency},
	}
	ok, err := s.repo.RecordPayment(ctx, payment, b.Status, b.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	from := b.Status
	b.Status = StatusConfirmed
	b.StatusVersion++
	b.ReceivedAmount = payment.Amount
	b.UpdatedAt = s.now()
	s.publish(ctx, statusKey(StatusConfirmed), b, from, StatusConfirmed)
	return b, nil
}

func (s *Service) transition(ctx context.Context, b *Booking, to Status) error {
	if !CanTransition(b.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.repo.UpdateStatus(ctx, b.ID, b.Status, to, b.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.publish(ctx, statusKey(to), b, b.Status, to)
	return nil
}

func statusKey(s Status) string {
	return "booking." + string(s)
}

func (s *Service) publish(ctx context.Context, key string, b *Booking, from, to Status) {
	if s.publisher == nil {
		return
	}
	ev := Event{
		BookingID:   b.ID,
		Code:        b.Code,
		UserID:      b.UserID,
		ServiceType: b.ServiceType,
		FromStatus:  from,
		ToStatus:    to,
		TotalAmount: b.TotalAmount.Amount,
		Currency:    b.TotalAmount.Currency,
		At:          s.now(),
	}
	if b.AssignedVendor != nil {
		ev.VendorID = *b.AssignedVendor
	}
	if err := s.publisher.Publish(ctx, key, ev); err != nil {
		log.Printf("booking: publish event failed: booking_id=%s key=%s err=%v", b.ID, key, err)
	}
}

// VerifySignature reports whether signature is the hex HMAC-SHA256 of
// "orderID|paymentID" under secret.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func packageType(service pricing.ServiceType) string {
	switch service {
	case pricing.ServiceRental:
		return "RentalPackage"
	case pricing.ServiceActivity:
		return "ActivityPackage"
	}
	return ""
}
