// README: Trip search handler; prices every active category for a trip request.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cabnex/internal/modules/pricing"
)

type Quoter interface {
	Quote(ctx context.Context, req pricing.TripRequest) (pricing.QuoteResult, error)
}

type TripHandler struct {
	quoter  Quoter
	timeout time.Duration
}

func NewTripHandler(quoter Quoter, timeout time.Duration) *TripHandler {
	return &TripHandler{quoter: quoter, timeout: timeout}
}

type searchTripReq struct {
	PickupLocation    string   `json:"pickupLocation"`
	ServiceType       string   `json:"serviceType"`
	PickupDateTime    string   `json:"pickupDateTime"`
	ReturnDateTime    string   `json:"returnDateTime"`
	PackageID         string   `json:"packageId"`
	Destinations      []string `json:"destinations"`
	OneWay            bool     `json:"oneWay"`
	TransferDirection string   `json:"transferDirection"`
}

type categoryResp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IconURL    string    `json:"iconUrl,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	MarketFare float64   `json:"marketFare,omitempty"`
	Fare       *fareResp `json:"fare,omitempty"`
}

type fareResp struct {
	Currency            string  `json:"currency"`
	BaseFare            float64 `json:"baseFare"`
	ExtraDistanceCharge float64 `json:"extraKmCharges"`
	DriverAllowance     float64 `json:"totalDriverAllowance"`
	NightCharge         float64 `json:"totalNightCharge"`
	HillCharge          float64 `json:"totalHillCharge"`
	PermitCharge        float64 `json:"totalPermitCharge"`
	Tax                 float64 `json:"tax"`
	Total               float64 `json:"totalAmount"`
	Days                int     `json:"totalDays,omitempty"`
	Nights              int     `json:"totalNights"`
}

type activityResp struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	DurationHours      int     `json:"duration"`
	Price              float64 `json:"price"`
	CancellationPolicy string  `json:"cancellationPolicy"`
	Total              float64 `json:"totalAmount"`
}

type searchTripResp struct {
	City        string         `json:"city"`
	ServiceType string         `json:"serviceType"`
	DistanceKm  int            `json:"distance"`
	DurationMin int            `json:"time"`
	Source      string         `json:"tariffSource,omitempty"`
	Message     string         `json:"message,omitempty"`
	Categories  []categoryResp `json:"categories,omitempty"`
	Activities  []activityResp `json:"activities,omitempty"`
}

func (h *TripHandler) Search(c *gin.Context) {
	var req searchTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pickupAt, err := parseTime(req.PickupDateTime)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid pickupDateTime")
		return
	}
	returnAt, err := parseTime(req.ReturnDateTime)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid returnDateTime")
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.quoter.Quote(ctx, pricing.TripRequest{
		ServiceType:       pricing.ServiceType(strings.ToLower(strings.TrimSpace(req.ServiceType))),
		PickupLocation:    strings.TrimSpace(req.PickupLocation),
		Destinations:      req.Destinations,
		PickupTime:        pickupAt,
		ReturnTime:        returnAt,
		OneWay:            req.OneWay,
		PackageID:         strings.TrimSpace(req.PackageID),
		TransferDirection: req.TransferDirection,
	})
	if err != nil {
		writeQuoteError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toSearchResp(res))
}

func toSearchResp(res pricing.QuoteResult) searchTripResp {
	out := searchTripResp{
		City:        res.City,
		ServiceType: string(res.ServiceType),
		DistanceKm:  res.DistanceKm,
		DurationMin: res.DurationMin,
		Source:      string(res.Source),
		Message:     res.Message,
	}
	for _, cq := range res.Categories {
		cat := categoryResp{
			ID:         string(cq.Rule.Category.ID),
			Name:       cq.Rule.Category.Name,
			IconURL:    cq.Rule.Category.IconURL,
			ImageURL:   cq.Rule.Category.ImageURL,
			MarketFare: cq.Rule.MarketFare,
		}
		if q := cq.Quote; q != nil {
			cat.Fare = &fareResp{
				Currency:            q.Currency,
				BaseFare:            major(q.BaseFare),
				ExtraDistanceCharge: major(q.ExtraDistanceCharge),
				DriverAllowance:     major(q.DriverAllowance),
				NightCharge:         major(q.NightCharge),
				HillCharge:          major(q.HillCharge),
				PermitCharge:        major(q.PermitCharge),
				Tax:                 major(q.Tax),
				Total:               major(q.Total),
				Days:                q.Days,
				Nights:              q.Nights,
			}
		}
		out.Categories = append(out.Categories, cat)
	}
	for _, aq := range res.Activities {
		out.Activities = append(out.Activities, activityResp{
			ID:                 string(aq.Activity.ID),
			Title:              aq.Activity.Title,
			Description:        aq.Activity.Description,
			DurationHours:      aq.Activity.DurationHours,
			Price:              aq.Activity.Price,
			CancellationPolicy: aq.Activity.CancellationPolicy,
			Total:              major(aq.Quote.Total),
		})
	}
	return out
}

// parseTime accepts RFC 3339 timestamps; an empty value is the zero time.
func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
