// Package amadeus is a minimal client for the Amadeus Self-Service flight
// offers search.
package amadeus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	tokenPath        = "/v1/security/oauth2/token"
	flightOffersPath = "/v2/shopping/flight-offers"
	dateLayout       = "2006-01-02"
)

// ErrAuthentication is matched by credential and token failures.
var ErrAuthentication = errors.New("amadeus authentication failed")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("amadeus: HTTP %d", e.StatusCode)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		msg := fmt.Sprintf("[%d] %s", d.Code, d.Title)
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		parts = append(parts, msg)
	}
	return fmt.Sprintf("amadeus: HTTP %d: %s", e.StatusCode, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrAuthentication) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrAuthentication && e.StatusCode == http.StatusUnauthorized
}

// Config holds client credentials and endpoint settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	// HTTPClient is the base transport for token and search calls. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client performs flight-offer searches with an auto-refreshing access token.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client. Credentials are not checked until the first call.
func NewClient(cfg Config) *Client {
	base := cfg.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	cc := clientcredentials.Config{
		ClientID:     cfg.APIKey,
		ClientSecret: cfg.APISecret,
		TokenURL:     baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &Client{
		baseURL: baseURL,
		http:    cc.Client(ctx),
	}
}

// SearchFlightOffers runs one flight-offers search.
func (c *Client) SearchFlightOffers(ctx context.Context, p SearchParams) ([]FlightOffer, error) {
	q := url.Values{}
	q.Set("originLocationCode", p.Origin)
	q.Set("destinationLocationCode", p.Destination)
	q.Set("departureDate", p.DepartureDate.Format(dateLayout))
	q.Set("adults", strconv.Itoa(p.Adults))
	if p.Max > 0 {
		q.Set("max", strconv.Itoa(p.Max))
	}
	if p.Currency != "" {
		q.Set("currencyCode", p.Currency)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+flightOffersPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.amadeus+json")

	resp, err := c.http.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return nil, fmt.Errorf("failed to call flight offers: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out FlightOffersResponse
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, &out) == nil {
			apiErr.Errors = out.Errors
		}
		return nil, apiErr
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode flight offers: %w", err)
	}

	return out.Data, nil
}
