package opensky

import (
	"net/http"
	"time"

	"flightwatch-service/pkg/logger"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPClientConfig controls outbound retry and timeout for OpenSky calls
type HTTPClientConfig struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// NewHTTPClient returns a standard *http.Client that retries connection
// errors, 429 and 5xx responses with jittered linear backoff. Timeout bounds
// each request including its retries. When retries run out the last
// response is passed through so callers still see its status code.
func NewHTTPClient(cfg HTTPClientConfig, log logger.Logger) *http.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = cfg.RetryWaitMin
	client.RetryWaitMax = cfg.RetryWaitMax
	client.Backoff = retryablehttp.LinearJitterBackoff
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = retryablehttp.LeveledLogger(log)

	standard := client.StandardClient()
	standard.Timeout = cfg.Timeout
	return standard
}
