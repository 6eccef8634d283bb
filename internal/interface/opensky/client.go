package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flightwatch-service/internal/domain/apperror"
	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"
)

const (
	serviceName = "opensky"
	errorCode   = "OPENSKY_ERROR"
)

// TokenSource supplies bearer tokens and drops a token the API rejected
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Invalidate(rejected string)
}

// Client fetches live state vectors from the OpenSky REST API
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
	logger     logger.Logger
	metrics    *metrics.Metrics
}

var _ repository.FlightProvider = (*Client)(nil)

// NewClient creates a new OpenSky client
func NewClient(httpClient *http.Client, tokens TokenSource, baseURL string, logger logger.Logger, m *metrics.Metrics) *Client {
	return &Client{
		httpClient: httpClient,
		tokens:     tokens,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		metrics:    m,
	}
}

// FetchAll returns every airborne flight OpenSky currently tracks
func (c *Client) FetchAll(ctx context.Context) ([]entity.Flight, error) {
	c.logger.Info("Fetching all flights from OpenSky Network")
	return c.fetch(ctx, c.baseURL+"/states/all")
}

// FetchByBoundingBox returns airborne flights inside area
func (c *Client) FetchByBoundingBox(ctx context.Context, area entity.BoundingBox) ([]entity.Flight, error) {
	query := url.Values{}
	query.Set("lamin", formatDegrees(area.MinLatitude))
	query.Set("lamax", formatDegrees(area.MaxLatitude))
	query.Set("lomin", formatDegrees(area.MinLongitude))
	query.Set("lomax", formatDegrees(area.MaxLongitude))

	c.logger.Debug("Fetching flights from OpenSky in bounding box",
		"minLat", area.MinLatitude, "minLon", area.MinLongitude,
		"maxLat", area.MaxLatitude, "maxLon", area.MaxLongitude)

	return c.fetch(ctx, c.baseURL+"/states/all?"+query.Encode())
}

func (c *Client) fetch(ctx context.Context, requestURL string) ([]entity.Flight, error) {
	start := time.Now()
	defer func() {
		c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, requestURL, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.logger.Warn("OpenSky token rejected, refreshing")
		c.tokens.Invalidate(token)

		token, err = c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = c.get(ctx, requestURL, token)
		if err != nil {
			return nil, err
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("OpenSky API returned error", "statusCode", resp.StatusCode)
		c.metrics.ErrorsCount.WithLabelValues("opensky_fetch").Inc()
		return nil, apperror.ExternalService(serviceName, errorCode,
			fmt.Sprintf("OpenSky API returned status code: %d", resp.StatusCode), resp.StatusCode, nil)
	}

	var body StatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Error("Failed to decode OpenSky response", "error", err)
		c.metrics.ErrorsCount.WithLabelValues("opensky_decode").Inc()
		return nil, apperror.ExternalService(serviceName, errorCode,
			"Failed to decode OpenSky response", resp.StatusCode, err)
	}

	vectors := body.StateVectors()
	flights := make([]entity.Flight, 0, len(vectors))
	for _, sv := range vectors {
		if sv.Airborne() {
			flights = append(flights, sv.ToFlight())
		}
	}

	c.metrics.FlightsFetched.Add(float64(len(flights)))
	c.logger.Debug("Retrieved flights from OpenSky",
		"count", len(flights),
		"totalStates", len(vectors))

	return flights, nil
}

func (c *Client) get(ctx context.Context, requestURL, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, apperror.ExternalService(serviceName, errorCode, "Failed to create OpenSky request", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Error fetching flights from OpenSky", "error", err)
		c.metrics.ErrorsCount.WithLabelValues("opensky_fetch").Inc()
		return nil, apperror.ExternalService(serviceName, errorCode,
			"Failed to fetch flights from OpenSky Network", 0, err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// formatDegrees renders decimal degrees without exponent or locale
func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
