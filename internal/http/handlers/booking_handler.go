// README: Booking handlers for customers (create/list/get/cancel/payment), vendors (list/start/complete) and admins (assign).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cabnex/internal/http/middleware"
	"cabnex/internal/modules/booking"
	"cabnex/internal/types"
)

type BookingHandler struct {
	booking *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{booking: svc}
}

type locationReq struct {
	PlaceID string `json:"place_id"`
	Address string `json:"address"`
}

type createBookingReq struct {
	CarCategory    string        `json:"carCategory"`
	ServiceType    string        `json:"serviceType"`
	PackageID      string        `json:"packageId"`
	ExactLocation  string        `json:"exactLocation"`
	StartLocation  locationReq   `json:"startLocation"`
	Destinations   []locationReq `json:"destinations"`
	PickupDateTime string        `json:"pickupDateTime"`
	ReturnDateTime string        `json:"returnDateTime"`
	OneWay         bool          `json:"oneWay"`
	Distance       int           `json:"distance"`
	TotalAmount    float64       `json:"totalAmount"`
}

type paymentReq struct {
	OrderID   string  `json:"razorpayOrderId"`
	PaymentID string  `json:"razorpayPaymentId"`
	Signature string  `json:"razorpaySignature"`
	Amount    float64 `json:"amount"`
}

type bookingResp struct {
	ID             string             `json:"id"`
	BookingID      string             `json:"bookingId"`
	CarCategory    string             `json:"carCategory,omitempty"`
	ServiceType    string             `json:"serviceType"`
	TripType       string             `json:"tripType,omitempty"`
	PackageType    string             `json:"packageType,omitempty"`
	PackageID      string             `json:"packageId,omitempty"`
	ExactLocation  string             `json:"exactLocation"`
	StartLocation  booking.Location   `json:"startLocation"`
	Destinations   []booking.Location `json:"destinations"`
	PickupDateTime time.Time          `json:"pickupDateTime"`
	ReturnDateTime *time.Time         `json:"returnDateTime,omitempty"`
	Distance       int                `json:"distance"`
	TotalAmount    float64            `json:"totalAmount"`
	ReceivedAmount float64            `json:"receivedAmount"`
	Currency       string             `json:"currency"`
	Status         booking.Status     `json:"status"`
	AssignedVendor string             `json:"assignedVendor,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pickupAt, err := parseTime(req.PickupDateTime)
	if err != nil || pickupAt.IsZero() {
		writeError(c, http.StatusBadRequest, "invalid pickupDateTime")
		return
	}
	returnAt, err := parseTime(req.ReturnDateTime)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid returnDateTime")
		return
	}
	var ret *time.Time
	if !returnAt.IsZero() {
		ret = &returnAt
	}

	b, err := h.booking.Create(c.Request.Context(), booking.CreateCommand{
		UserID:        types.ID(middleware.CallerUID(c)),
		CarCategory:   req.CarCategory,
		ServiceType:   req.ServiceType,
		PackageID:     req.PackageID,
		ExactLocation: req.ExactLocation,
		StartLocation: booking.Location(req.StartLocation),
		Destinations:  toLocations(req.Destinations),
		PickupTime:    pickupAt,
		ReturnTime:    ret,
		OneWay:        req.OneWay,
		DistanceKm:    req.Distance,
		TotalAmount:   types.MinorUnits(req.TotalAmount),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toBookingResp(b))
}

func (h *BookingHandler) List(c *gin.Context) {
	list, err := h.booking.ListByUser(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	out := make([]bookingResp, 0, len(list))
	for i := range list {
		out = append(out, toBookingResp(&list[i]))
	}
	writeJSON(c, http.StatusOK, map[string]any{"bookings": out})
}

func (h *BookingHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing booking id")
		return
	}
	b, err := h.booking.Get(c.Request.Context(), types.ID(id), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toBookingResp(b))
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing booking id")
		return
	}
	err := h.booking.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: types.ID(id),
		UserID:    types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": booking.StatusCancelled})
}

func (h *BookingHandler) ConfirmPayment(c *gin.Context) {
	var req paymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.booking.ConfirmPayment(c.Request.Context(), booking.PaymentCommand{
		BookingID: types.ID(c.Param("id")),
		UserID:    types.ID(middleware.CallerUID(c)),
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		Amount:    types.MinorUnits(req.Amount),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toBookingResp(b))
}

type assignReq struct {
	VendorID string `json:"vendorId"`
}

// Assign hands a confirmed booking to a vendor (admin only).
func (h *BookingHandler) Assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.booking.Assign(c.Request.Context(), booking.AssignCommand{
		BookingID: types.ID(c.Param("id")),
		VendorID:  types.ID(req.VendorID),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toBookingResp(b))
}

// VendorList returns the bookings assigned to the calling vendor.
func (h *BookingHandler) VendorList(c *gin.Context) {
	items, err := h.booking.ListByVendor(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	out := make([]bookingResp, 0, len(items))
	for i := range items {
		out = append(out, toBookingResp(&items[i]))
	}
	writeJSON(c, http.StatusOK, map[string]any{"bookings": out})
}

func (h *BookingHandler) Start(c *gin.Context) {
	err := h.booking.Start(c.Request.Context(), h.vendorCommand(c))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": booking.StatusInProgress})
}

func (h *BookingHandler) Complete(c *gin.Context) {
	err := h.booking.Complete(c.Request.Context(), h.vendorCommand(c))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": booking.StatusCompleted})
}

func (h *BookingHandler) vendorCommand(c *gin.Context) booking.VendorCommand {
	return booking.VendorCommand{
		BookingID: types.ID(c.Param("id")),
		VendorID:  types.ID(middleware.CallerUID(c)),
	}
}

func toLocations(in []locationReq) []booking.Location {
	out := make([]booking.Location, 0, len(in))
	for _, l := range in {
		out = append(out, booking.Location(l))
	}
	return out
}

func toBookingResp(b *booking.Booking) bookingResp {
	dest := b.Destinations
	if dest == nil {
		dest = []booking.Location{}
	}
	return bookingResp{
		ID:             string(b.ID),
		BookingID:      b.Code,
		CarCategory:    b.CarCategory,
		ServiceType:    b.ServiceType,
		TripType:       string(b.TripType),
		PackageType:    b.PackageType,
		PackageID:      b.PackageID,
		ExactLocation:  b.ExactLocation,
		StartLocation:  b.StartLocation,
		Destinations:   dest,
		PickupDateTime: b.PickupTime,
		ReturnDateTime: b.ReturnTime,
		Distance:       b.DistanceKm,
		TotalAmount:    b.TotalAmount.Major(),
		ReceivedAmount: b.ReceivedAmount.Major(),
		Currency:       b.TotalAmount.Currency,
		Status:         b.Status,
		AssignedVendor: vendorOf(b),
		CreatedAt:      b.CreatedAt,
	}
}

func vendorOf(b *booking.Booking) string {
	if b.AssignedVendor == nil {
		return ""
	}
	return string(*b.AssignedVendor)
}
