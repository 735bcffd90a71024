package directions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"example.com/eazyy/fulfillment/config"
	"example.com/eazyy/fulfillment/internal/models"
)

const defaultTimeout = 5 * time.Second

// ErrNoRoute is returned when the provider answers without a usable route
var ErrNoRoute = errors.New("directions: no route in response")

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		WaypointOrder []int `json:"waypoint_order"`
	} `json:"routes"`
}

// Client calls the Google Directions API
type Client struct {
	http    *resty.Client
	apiKey  string
	timeout time.Duration
}

// NewClient creates a directions client. It returns nil when no API key is
// configured so callers can treat optimization as disabled.
func NewClient(cfg config.DirectionsConfig) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, apiKey: cfg.APIKey, timeout: timeout}
}

// Polyline requests a route from the first to the last stop through the
// remaining stops, letting the provider reorder the waypoints, and returns
// the encoded overview polyline.
func (c *Client) Polyline(ctx context.Context, stops []models.Stop) (string, error) {
	if len(stops) < 2 {
		return "", errors.New("directions: at least two stops are required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := map[string]string{
		"origin":      latLng(stops[0]),
		"destination": latLng(stops[len(stops)-1]),
		"key":         c.apiKey,
	}
	if middle := stops[1 : len(stops)-1]; len(middle) > 0 {
		points := make([]string, 0, len(middle)+1)
		points = append(points, "optimize:true")
		for _, s := range middle {
			points = append(points, latLng(s))
		}
		params["waypoints"] = strings.Join(points, "|")
	}

	var result directionsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get("/directions/json")
	if err != nil {
		return "", errors.Wrap(err, "directions request failed")
	}
	if resp.IsError() {
		return "", errors.Errorf("directions request failed with status %d", resp.StatusCode())
	}
	if result.Status != "OK" {
		return "", errors.Errorf("directions status %s: %s", result.Status, result.ErrorMessage)
	}
	if len(result.Routes) == 0 || result.Routes[0].OverviewPolyline.Points == "" {
		return "", ErrNoRoute
	}
	return result.Routes[0].OverviewPolyline.Points, nil
}

func latLng(s models.Stop) string {
	return fmt.Sprintf("%f,%f", s.Lat, s.Lng)
}
