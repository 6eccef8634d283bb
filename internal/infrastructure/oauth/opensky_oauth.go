package oauth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"flightwatch-service/internal/domain/apperror"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// RefreshMargin is how long before expiry a cached token stops being reused
	RefreshMargin = 5 * time.Minute

	// defaultTokenTTL applies when the token endpoint declares no expires_in
	defaultTokenTTL = 30 * time.Minute

	authServiceName = "opensky-auth"
)

// CachedToken is the process-wide OpenSky access token
type CachedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// OpenSkyOAuth obtains and caches OpenSky access tokens using the
// client-credentials grant. Exchanges are serialized: callers arriving
// while one is in flight wait for it and reuse its token.
type OpenSkyOAuth struct {
	config     *clientcredentials.Config
	httpClient *http.Client
	logger     logger.Logger
	metrics    *metrics.Metrics

	mu    sync.Mutex
	token *CachedToken
}

// NewOpenSkyOAuth creates a new OpenSky OAuth handler. httpClient is used for
// the token exchange; nil means http.DefaultClient.
func NewOpenSkyOAuth(clientID, clientSecret, tokenURL string, httpClient *http.Client, logger logger.Logger, m *metrics.Metrics) *OpenSkyOAuth {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OpenSkyOAuth{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

// AccessToken returns the cached token while it is valid for more than
// RefreshMargin, otherwise exchanges credentials for a new one.
func (o *OpenSkyOAuth) AccessToken(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.token != nil && o.token.ExpiresAt.After(time.Now().Add(RefreshMargin)) {
		return o.token.AccessToken, nil
	}

	o.logger.Info("Requesting new OpenSky access token")

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	token, err := o.config.Token(exchangeCtx)
	if err != nil {
		o.metrics.TokenExchanges.WithLabelValues("error").Inc()

		statusCode := 0
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			statusCode = retrieveErr.Response.StatusCode
		}

		o.logger.Error("Failed to get OpenSky token", "statusCode", statusCode, "error", err)
		return "", apperror.ExternalService(authServiceName, "OPENSKY_AUTH_ERROR",
			"Failed to authenticate with OpenSky", statusCode, err)
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenTTL)
	}

	o.token = &CachedToken{
		AccessToken: token.AccessToken,
		ExpiresAt:   expiresAt,
	}
	o.metrics.TokenExchanges.WithLabelValues("success").Inc()

	o.logger.Info("OpenSky access token obtained", "expiresAt", expiresAt.UTC().Format(time.RFC3339))

	return o.token.AccessToken, nil
}

// Invalidate drops the cached token if it is still the rejected one.
// A token refreshed by another caller in the meantime is kept.
func (o *OpenSkyOAuth) Invalidate(rejected string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.token != nil && o.token.AccessToken == rejected {
		o.token = nil
	}
}

// Cached returns a copy of the cached token, or nil
func (o *OpenSkyOAuth) Cached() *CachedToken {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.token == nil {
		return nil
	}
	cp := *o.token
	return &cp
}
