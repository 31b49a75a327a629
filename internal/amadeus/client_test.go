package amadeus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const offersBody = `{
  "data": [
    {
      "id": "1",
      "price": {"currency": "EUR", "total": "89.40"},
      "itineraries": [
        {
          "duration": "PT2H55M",
          "segments": [
            {
              "departure": {"iataCode": "WAW", "at": "2026-06-03T06:10:00"},
              "arrival": {"iataCode": "BCN", "at": "2026-06-03T09:05:00"},
              "carrierCode": "LO",
              "number": "433"
            }
          ]
        }
      ]
    }
  ]
}`

// newFakeAmadeus serves the token and flight-offers endpoints.
func newFakeAmadeus(t *testing.T, tokenStatus int, search http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()

	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("client_id") != "key" || r.PostForm.Get("client_secret") != "secret" {
			t.Errorf("credentials not sent in params")
		}
		w.Header().Set("Content-Type", "application/json")
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			w.Write([]byte(`{"error":"invalid_client","error_description":"Client credentials are invalid"}`))
			return
		}
		w.Write([]byte(`{"type":"amadeusOAuth2Token","access_token":"tok-123","token_type":"Bearer","expires_in":1799}`))
	})
	mux.HandleFunc(flightOffersPath, search)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL:    srv.URL,
		APIKey:     "key",
		APISecret:  "secret",
		HTTPClient: srv.Client(),
	})
}

func TestSearchFlightOffers(t *testing.T) {
	srv, tokenCalls := newFakeAmadeus(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		want := map[string]string{
			"originLocationCode":      "WAW",
			"destinationLocationCode": "BCN",
			"departureDate":           "2026-06-03",
			"adults":                  "1",
			"max":                     "10",
			"currencyCode":            "EUR",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
			}
		}
		w.Header().Set("Content-Type", "application/vnd.amadeus+json")
		w.Write([]byte(offersBody))
	})

	client := newTestClient(srv)
	params := SearchParams{
		Origin:        "WAW",
		Destination:   "BCN",
		DepartureDate: time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
		Adults:        1,
		Max:           10,
		Currency:      "EUR",
	}

	offers, err := client.SearchFlightOffers(context.Background(), params)
	if err != nil {
		t.Fatalf("SearchFlightOffers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("got %d offers, want 1", len(offers))
	}
	o := offers[0]
	if o.Price.Total != "89.40" || o.Price.Currency != "EUR" {
		t.Errorf("price = %+v", o.Price)
	}
	if len(o.Itineraries) != 1 || o.Itineraries[0].Segments[0].CarrierCode != "LO" {
		t.Errorf("itineraries = %+v", o.Itineraries)
	}

	// The token is cached between searches.
	if _, err := client.SearchFlightOffers(context.Background(), params); err != nil {
		t.Fatalf("second search: %v", err)
	}
	if n := atomic.LoadInt32(tokenCalls); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
}

func TestSearchFlightOffersBadCredentials(t *testing.T) {
	srv, _ := newFakeAmadeus(t, http.StatusUnauthorized, func(w http.ResponseWriter, r *http.Request) {
		t.Error("search must not be called without a token")
	})

	_, err := newTestClient(srv).SearchFlightOffers(context.Background(), SearchParams{Origin: "WAW", Destination: "BCN", Adults: 1})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
}

func TestSearchFlightOffersAPIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
	}{
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   `{"errors":[{"status":400,"code":477,"title":"INVALID FORMAT","detail":"invalid date"}]}`,
		},
		{
			name:     "expired token",
			status:   http.StatusUnauthorized,
			body:     `{"errors":[{"status":401,"code":38192,"title":"Invalid access token"}]}`,
			wantAuth: true,
		},
		{
			name:   "gateway html",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newFakeAmadeus(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := newTestClient(srv).SearchFlightOffers(context.Background(), SearchParams{Origin: "WAW", Destination: "BCN", Adults: 1})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if errors.Is(err, ErrAuthentication) != tt.wantAuth {
				t.Errorf("errors.Is(ErrAuthentication) = %v, want %v", !tt.wantAuth, tt.wantAuth)
			}
		})
	}
}

func TestSearchFlightOffersMalformedBody(t *testing.T) {
	srv, _ := newFakeAmadeus(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [`))
	})

	if _, err := newTestClient(srv).SearchFlightOffers(context.Background(), SearchParams{Origin: "WAW", Destination: "BCN", Adults: 1}); err == nil {
		t.Fatal("expected decode error")
	}
}
