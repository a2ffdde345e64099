// README: Trip search handler tests (request mapping, response shape, error mapping).
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cabnex/internal/http/handlers"
	"cabnex/internal/modules/pricing"
)

type stubQuoter struct {
	got      pricing.TripRequest
	deadline bool
	res      pricing.QuoteResult
	err      error
}

func (s *stubQuoter) Quote(ctx context.Context, req pricing.TripRequest) (pricing.QuoteResult, error) {
	s.got = req
	_, s.deadline = ctx.Deadline()
	return s.res, s.err
}

func buildTripRouter(q handlers.Quoter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewTripHandler(q, 5*time.Second)
	r.POST("/api/trips/search", h.Search)
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch v := body.(type) {
	case string:
		buf.WriteString(v)
	default:
		_ = json.NewEncoder(&buf).Encode(v)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearch_MapsRequestAndResponse(t *testing.T) {
	q := &stubQuoter{res: pricing.QuoteResult{
		ServiceType: pricing.ServiceOutstation,
		City:        "new-delhi",
		DistanceKm:  700,
		DurationMin: 720,
		Source:      pricing.SourceMatched,
		Categories: []pricing.CategoryQuote{{
			Rule: pricing.TariffRule{Category: pricing.Category{ID: "sedan", Name: "Sedan"}},
			Quote: &pricing.PriceQuote{
				Currency: "INR", BaseFare: 600000, ExtraDistanceCharge: 120000, DriverAllowance: 60000,
				NightCharge: 20000, Tax: 40000, Total: 840000, Days: 2, Nights: 1,
			},
		}},
	}}
	r := buildTripRouter(q)

	w := postJSON(r, "/api/trips/search", map[string]any{
		"pickupLocation": "p-delhi",
		"serviceType":    "Outstation",
		"pickupDateTime": "2026-05-01T06:00:00Z",
		"returnDateTime": "2026-05-02T22:00:00Z",
		"destinations":   []string{"p-shimla"},
		"oneWay":         true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if q.got.ServiceType != pricing.ServiceOutstation || q.got.PickupLocation != "p-delhi" || !q.got.OneWay {
		t.Errorf("request = %+v", q.got)
	}
	if q.got.ReturnTime.Sub(q.got.PickupTime) != 40*time.Hour {
		t.Errorf("times = %v / %v", q.got.PickupTime, q.got.ReturnTime)
	}
	if !q.deadline {
		t.Error("expected a request deadline")
	}

	var body struct {
		City       string `json:"city"`
		Distance   int    `json:"distance"`
		Time       int    `json:"time"`
		Categories []struct {
			ID   string `json:"id"`
			Fare struct {
				Total  float64 `json:"totalAmount"`
				Tax    float64 `json:"tax"`
				Nights int     `json:"totalNights"`
			} `json:"fare"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.City != "new-delhi" || body.Distance != 700 || body.Time != 720 || len(body.Categories) != 1 {
		t.Fatalf("body = %+v", body)
	}
	if f := body.Categories[0].Fare; f.Total != 8400 || f.Tax != 400 || f.Nights != 1 {
		t.Errorf("fare = %+v", f)
	}
}

func TestSearch_EmptyCatalogueIsOK(t *testing.T) {
	r := buildTripRouter(&stubQuoter{res: pricing.QuoteResult{
		ServiceType: pricing.ServiceOutstation, City: "nowhere", Source: pricing.SourceNone,
		Message: "no categories available",
	}})
	w := postJSON(r, "/api/trips/search", map[string]any{"pickupLocation": "p", "serviceType": "outstation"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("no categories available")) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSearch_Errors(t *testing.T) {
	cases := []struct {
		name     string
		body     any
		err      error
		wantCode int
		wantMsg  string
	}{
		{"malformed json", "{", nil, http.StatusBadRequest, "invalid json"},
		{"bad pickup time", map[string]any{"pickupDateTime": "tomorrow"}, nil, http.StatusBadRequest, "invalid pickupDateTime"},
		{"bad request", map[string]any{}, fmt.Errorf("%w: pickupLocation is required", pricing.ErrBadRequest), http.StatusBadRequest, "pickupLocation is required"},
		{"invalid location", map[string]any{}, pricing.ErrInvalidLocation, http.StatusBadRequest, "Invalid pickup location"},
		{"route unavailable", map[string]any{}, pricing.ErrRouteUnavailable, http.StatusBadRequest, "Error fetching distance data"},
		{"package not found", map[string]any{}, fmt.Errorf("%w: selected rental package not found", pricing.ErrNotFound), http.StatusNotFound, "Selected rental package not found"},
		{"store failure", map[string]any{}, fmt.Errorf("city tariffs: %w", context.Canceled), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := buildTripRouter(&stubQuoter{err: tc.err})
			w := postJSON(r, "/api/trips/search", tc.body)
			if w.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, w.Code)
			}
			if !bytes.Contains(w.Body.Bytes(), []byte(tc.wantMsg)) {
				t.Errorf("body = %s, want %q", w.Body.String(), tc.wantMsg)
			}
		})
	}
}
